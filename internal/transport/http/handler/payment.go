package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-premium-api/internal/application/payment"
	"github.com/go-premium-api/internal/domain"
	stripeinfra "github.com/go-premium-api/internal/infrastructure/stripe"
)

// maxWebhookBody bounds the webhook payload read before verification.
const maxWebhookBody = 1 << 16

// PaymentGateway is the provider surface the payment endpoints need.
type PaymentGateway interface {
	ParseEvent(payload []byte, signature string) (*stripeinfra.Event, error)
	CreateCheckout(ctx context.Context, email string) (*stripeinfra.Checkout, error)
	RetrieveSession(ctx context.Context, id string) (*stripeinfra.Session, error)
}

type PaymentHandler struct {
	gateway      PaymentGateway
	confirmation payment.Handler
}

func NewPaymentHandler(gateway PaymentGateway, confirmation payment.Handler) *PaymentHandler {
	return &PaymentHandler{gateway: gateway, confirmation: confirmation}
}

type checkoutRequest struct {
	Email string `json:"email" validate:"required"`
}

type checkoutResponse struct {
	Success bool `json:"success"`
	*stripeinfra.Checkout
}

func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decode(w, r, &req) {
		return
	}
	email := domain.NormalizeEmail(req.Email)
	if !domain.ValidEmail(email) {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	co, err := h.gateway.CreateCheckout(r.Context(), email)
	if err != nil {
		slog.Error("create checkout session", "identity", email, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create payment session")
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{Success: true, Checkout: co})
}

// Webhook authenticates a provider event and hands completed checkouts to
// the confirmation handler. Only a retryable outcome yields a 5xx.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	ev, err := h.gateway.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, stripeinfra.ErrWebhookSecretMissing):
		slog.Error("webhook secret not configured")
		writeError(w, http.StatusInternalServerError, "missing webhook configuration")
		return
	case err != nil:
		slog.Warn("webhook rejected", "err", err)
		writeError(w, http.StatusBadRequest, "webhook error: "+err.Error())
		return
	}

	if ev.Confirmation == nil {
		slog.Info("webhook event acknowledged", "event_id", ev.ID, "type", ev.Type)
		writeJSON(w, http.StatusOK, WebhookEnvelope{Received: true, EventType: ev.Type})
		return
	}

	out := h.confirmation.Handle(r.Context(), ev.Confirmation)
	if out.Retryable() {
		writeError(w, http.StatusInternalServerError, out.Reason)
		return
	}
	writeJSON(w, http.StatusOK, WebhookEnvelope{Received: true, EventType: ev.Type, Warning: out.Reason})
}

var resultPage = template.Must(template.New("result").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>{{.Title}}</title>
  </head>
  <body>
    <h1>{{.Title}}</h1>
    <p>{{.Message}}</p>
  </body>
</html>`))

// Success is the provider's redirect target. A paid session is granted here
// as well, so access does not wait on webhook delivery.
func (h *PaymentHandler) Success(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		http.Error(w, "Missing session_id", http.StatusBadRequest)
		return
	}
	s, err := h.gateway.RetrieveSession(r.Context(), id)
	if err != nil {
		slog.Error("retrieve checkout session", "session_id", id, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	title, message := "Payment pending", "Your payment is still processing. Please wait a moment and refresh."
	if s.Paid && s.Email != "" {
		out := h.confirmation.Handle(r.Context(), &domain.PaymentConfirmation{
			EventID:         fmt.Sprintf("success:%s", s.ID),
			Identity:        s.Email,
			SourceReference: s.ID,
			AmountTotal:     s.AmountTotal,
			Currency:        s.Currency,
		})
		if out.Retryable() {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		title, message = "Payment successful", "Your premium access is now active. You can close this page."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = resultPage.Execute(w, struct{ Title, Message string }{title, message})
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Payment canceled. You can return to the app and try again.")
}
