package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-premium-api/internal/domain"
)

// Mailer is the subset of the SMTP mailer used for purchase receipts.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type mailNotifier struct {
	mailer Mailer
}

// NewMailNotifier sends a plain confirmation email after a first purchase.
func NewMailNotifier(m Mailer) Notifier {
	return &mailNotifier{mailer: m}
}

func (n *mailNotifier) NotifyPurchase(_ context.Context, identity string, c *domain.PaymentConfirmation) error {
	body := "Your premium access is now active. Sign in with this email address to use it."
	if c.AmountTotal > 0 && c.Currency != "" {
		body += fmt.Sprintf("\r\n\r\nAmount paid: %d.%02d %s", c.AmountTotal/100, c.AmountTotal%100, strings.ToUpper(c.Currency))
	}
	return n.mailer.SendEmail(identity, "Premium activated", body)
}
