package domain

import "time"

// VerifiedEmailMarker records that an identity recently completed an email
// confirmation challenge. It proves reachability, not purchase.
type VerifiedEmailMarker struct {
	Identity   string    `json:"identity" dynamodbav:"identity"`
	VerifiedAt time.Time `json:"verified_at" dynamodbav:"verified_at"`
	ExpiresAt  time.Time `json:"expires_at" dynamodbav:"expires_at"`
}

// Expired reports whether the marker has lapsed at now.
func (m *VerifiedEmailMarker) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}
