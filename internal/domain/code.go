package domain

import "time"

// CodePurpose scopes what a one-time code may be redeemed for.
type CodePurpose string

const (
	PurposeLogin CodePurpose = "login"
	PurposeEmail CodePurpose = "email"
)

// Valid reports whether p is a known purpose.
func (p CodePurpose) Valid() bool {
	return p == PurposeLogin || p == PurposeEmail
}

// OneTimeCode is the single pending code of an identity.
// PK: identity. A new issuance overwrites the previous record.
type OneTimeCode struct {
	Identity  string      `json:"identity" dynamodbav:"identity"`
	Purpose   CodePurpose `json:"purpose" dynamodbav:"purpose"`
	Code      string      `json:"code" dynamodbav:"code"`
	ExpiresAt time.Time   `json:"expires_at" dynamodbav:"expires_at"`
}

// Expired reports whether the code can no longer be redeemed at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
