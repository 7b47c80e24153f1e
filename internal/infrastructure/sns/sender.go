package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-premium-api/internal/config"
	"github.com/go-premium-api/internal/domain"
)

// API is the subset of the SNS client the publisher needs.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// PremiumActivated is the message published after a first purchase.
type PremiumActivated struct {
	Email           string    `json:"email"`
	EventID         string    `json:"event_id"`
	SourceReference string    `json:"source_reference,omitempty"`
	AmountTotal     int64     `json:"amount_total"`
	Currency        string    `json:"currency"`
	PublishedAt     time.Time `json:"published_at"`
}

// Publisher announces new entitlements on an SNS topic.
type Publisher struct {
	client   API
	topicARN string
}

func NewPublisher(cfg *config.Config) (*Publisher, error) {
	region := cfg.SNSRegion
	if region == "" {
		region = cfg.AWSRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, err
	}
	opts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return NewPublisherWithClient(sns.NewFromConfig(awsCfg, opts...), cfg.SNSTopicARN), nil
}

func NewPublisherWithClient(client API, topicARN string) *Publisher {
	return &Publisher{client: client, topicARN: topicARN}
}

// NotifyPurchase publishes a PremiumActivated message for identity.
func (p *Publisher) NotifyPurchase(ctx context.Context, identity string, c *domain.PaymentConfirmation) error {
	body, err := json.Marshal(PremiumActivated{
		Email:           identity,
		EventID:         c.EventID,
		SourceReference: c.SourceReference,
		AmountTotal:     c.AmountTotal,
		Currency:        c.Currency,
		PublishedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String("premium.activated"),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
