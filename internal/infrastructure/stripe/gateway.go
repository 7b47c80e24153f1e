package stripeinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-premium-api/internal/config"
	"github.com/go-premium-api/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	// ErrWebhookSecretMissing means webhooks cannot be authenticated at all.
	ErrWebhookSecretMissing = errors.New("stripe webhook secret not configured")
	// ErrInvalidSignature wraps every signature or payload verification failure.
	ErrInvalidSignature = errors.New("invalid stripe signature")
)

const productName = "Premium access"

// SessionAPI is the subset of the checkout session client the gateway uses.
type SessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Event is an authenticated webhook event. Confirmation is set only for
// checkout.session.completed.
type Event struct {
	ID           string
	Type         string
	Confirmation *domain.PaymentConfirmation
}

// Checkout is a freshly created hosted payment page.
type Checkout struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"checkoutUrl"`
}

// Session is the payment state of a checkout session.
type Session struct {
	ID          string
	Email       string
	Paid        bool
	AmountTotal int64
	Currency    string
}

type Gateway struct {
	sessions      SessionAPI
	webhookSecret string
	priceCents    int64
	currency      string
	successURL    string
	cancelURL     string
}

func NewGateway(cfg *config.Config) *Gateway {
	sc := &client.API{}
	sc.Init(cfg.StripeSecretKey, nil)
	return NewGatewayWithAPI(sc.CheckoutSessions, cfg)
}

func NewGatewayWithAPI(sessions SessionAPI, cfg *config.Config) *Gateway {
	base := cfg.FrontendURL
	if base == "" {
		base = "https://example.com"
	}
	return &Gateway{
		sessions:      sessions,
		webhookSecret: cfg.StripeWebhookSecret,
		priceCents:    cfg.PremiumPriceCents,
		currency:      cfg.PremiumCurrency,
		successURL:    base + "/success?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:     base + "/cancel",
	}
}

// ParseEvent authenticates payload against the Stripe-Signature header.
func (g *Gateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Type != stripe.EventTypeCheckoutSessionCompleted {
		return out, nil
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out.Confirmation = &domain.PaymentConfirmation{
		EventID:         ev.ID,
		Identity:        sessionEmail(&cs),
		SourceReference: cs.ID,
		AmountTotal:     cs.AmountTotal,
		Currency:        string(cs.Currency),
		Raw:             payload,
	}
	return out, nil
}

// CreateCheckout opens a one-time payment session for email.
func (g *Gateway) CreateCheckout(ctx context.Context, email string) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CustomerEmail:      stripe.String(email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productName),
					},
					UnitAmount: stripe.Int64(g.priceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
	}
	params.Context = ctx
	params.AddMetadata("email", email)
	params.AddMetadata("product", "premium")

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Checkout{SessionID: s.ID, URL: s.URL}, nil
}

// RetrieveSession loads the payment state of a checkout session.
func (g *Gateway) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := g.sessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return &Session{
		ID:          cs.ID,
		Email:       sessionEmail(cs),
		Paid:        cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: cs.AmountTotal,
		Currency:    string(cs.Currency),
	}, nil
}

// sessionEmail prefers the address we put in metadata at checkout creation.
func sessionEmail(cs *stripe.CheckoutSession) string {
	if e := cs.Metadata["email"]; e != "" {
		return e
	}
	if cs.CustomerEmail != "" {
		return cs.CustomerEmail
	}
	if cs.CustomerDetails != nil {
		return cs.CustomerDetails.Email
	}
	return ""
}
