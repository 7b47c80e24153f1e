package domain

// PaymentConfirmation is a payment-completed signal whose origin has already
// been authenticated by the transport layer.
type PaymentConfirmation struct {
	EventID         string
	Identity        string
	SourceReference string
	AmountTotal     int64
	Currency        string
	// Raw is the authenticated payload as delivered, kept for archiving.
	Raw []byte
}
