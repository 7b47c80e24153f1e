package payment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-premium-api/internal/domain"
	"github.com/go-premium-api/internal/infrastructure/metrics"
)

// OutcomeKind classifies how a payment confirmation was handled.
type OutcomeKind string

const (
	// Granted: the identity holds an entitlement, new or pre-existing.
	Granted OutcomeKind = "granted"
	// Warned: the confirmation was unusable and retrying will not help.
	Warned OutcomeKind = "warned"
	// Failed: a transient failure; the sender should redeliver.
	Failed OutcomeKind = "failed"
)

const (
	ReasonMissingEmail     = "missing email"
	ReasonInvalidEmail     = "invalid email"
	ReasonActivationFailed = "premium activation failed"
)

type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Retryable reports whether the sender should deliver the confirmation again.
func (o Outcome) Retryable() bool {
	return o.Kind == Failed
}

// Granter creates entitlements and reports whether the call created one.
type Granter interface {
	Activate(ctx context.Context, identity string, sourceReference *string) (bool, error)
}

// Notifier announces a first-time purchase. Implementations must not assume
// the request context is still alive.
type Notifier interface {
	NotifyPurchase(ctx context.Context, identity string, c *domain.PaymentConfirmation) error
}

// Archiver keeps a copy of the authenticated confirmation payload.
type Archiver interface {
	Archive(ctx context.Context, c *domain.PaymentConfirmation) error
}

type Handler interface {
	Handle(ctx context.Context, c *domain.PaymentConfirmation) Outcome
}

type HandlerDeps struct {
	Granter Granter
	// Notifiers keyed by channel name, e.g. "email" or "sns".
	Notifiers map[string]Notifier
	Archiver  Archiver
	Metrics   *metrics.Metrics
}

type handler struct {
	granter   Granter
	notifiers map[string]Notifier
	archiver  Archiver
	metrics   *metrics.Metrics
	spawn     func(func())
}

func NewHandler(deps HandlerDeps) Handler {
	return &handler{
		granter:   deps.Granter,
		notifiers: deps.Notifiers,
		archiver:  deps.Archiver,
		metrics:   deps.Metrics,
		spawn:     func(f func()) { go f() },
	}
}

// Handle turns an authenticated confirmation into an entitlement. The
// outcome is Failed only when the grant could not be made durable.
func (h *handler) Handle(ctx context.Context, c *domain.PaymentConfirmation) Outcome {
	if h.archiver != nil {
		if err := h.archiver.Archive(ctx, c); err != nil {
			slog.Warn("failed to archive payment confirmation", "event_id", c.EventID, "err", err)
		}
	}

	out, created := h.grant(ctx, c)
	h.metrics.Confirmation(string(out.Kind))

	switch out.Kind {
	case Granted:
		slog.Info("premium activated", "identity", domain.NormalizeEmail(c.Identity), "event_id", c.EventID, "created", created)
		if created {
			h.notify(ctx, c)
		}
	case Warned:
		slog.Warn("payment confirmation ignored", "event_id", c.EventID, "reason", out.Reason)
	case Failed:
		slog.Error("payment confirmation failed", "event_id", c.EventID, "reason", out.Reason)
	}
	return out
}

func (h *handler) grant(ctx context.Context, c *domain.PaymentConfirmation) (Outcome, bool) {
	identity := domain.NormalizeEmail(c.Identity)
	if identity == "" {
		return Outcome{Kind: Warned, Reason: ReasonMissingEmail}, false
	}
	if !domain.ValidEmail(identity) {
		return Outcome{Kind: Warned, Reason: ReasonInvalidEmail}, false
	}

	var ref *string
	if c.SourceReference != "" {
		r := c.SourceReference
		ref = &r
	}
	created, err := h.granter.Activate(ctx, identity, ref)
	if errors.Is(err, domain.ErrBadRequest) {
		return Outcome{Kind: Warned, Reason: ReasonInvalidEmail}, false
	}
	if err != nil {
		slog.Error("grant entitlement", "identity", identity, "err", err)
		return Outcome{Kind: Failed, Reason: ReasonActivationFailed}, false
	}
	return Outcome{Kind: Granted}, created
}

// notify runs every notifier off the request path. Failures are logged and
// counted only.
func (h *handler) notify(ctx context.Context, c *domain.PaymentConfirmation) {
	if len(h.notifiers) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	identity := domain.NormalizeEmail(c.Identity)
	h.spawn(func() {
		for channel, n := range h.notifiers {
			err := n.NotifyPurchase(detached, identity, c)
			h.metrics.Notification(channel, err)
			if err != nil {
				slog.Warn("purchase notification failed", "channel", channel, "identity", identity, "err", err)
			}
		}
	})
}
