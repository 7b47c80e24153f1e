package domain

import "time"

// Entitlement is a permanent grant of premium access.
// PK: identity (lower-cased). Never updated once written.
type Entitlement struct {
	Identity        string    `json:"email" dynamodbav:"identity"`
	ActivatedAt     time.Time `json:"activated_at" dynamodbav:"activated_at"`
	SourceReference *string   `json:"source_reference" dynamodbav:"source_reference"`
}
