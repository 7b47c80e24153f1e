package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-premium-api/internal/domain"
)

type markerItem struct {
	domain.VerifiedEmailMarker
	TTL int64 `dynamodbav:"ttl"`
}

// MarkerRepo stores verified-email markers.
// PK: identity
type MarkerRepo struct {
	client    API
	tableName string
}

func NewMarkerRepo(client API, tableName string) *MarkerRepo {
	return &MarkerRepo{client: client, tableName: tableName}
}

func (r *MarkerRepo) Put(ctx context.Context, m *domain.VerifiedEmailMarker) error {
	item, err := attributevalue.MarshalMap(markerItem{VerifiedEmailMarker: *m, TTL: m.ExpiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("marshal marker: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *MarkerRepo) Get(ctx context.Context, identity string) (*domain.VerifiedEmailMarker, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrIdentity, identity),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("marker not found: %w", domain.ErrNotFound)
	}
	var item markerItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal marker: %w", err)
	}
	return &item.VerifiedEmailMarker, nil
}

func (r *MarkerRepo) Delete(ctx context.Context, identity string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(attrIdentity, identity),
	})
	return err
}
