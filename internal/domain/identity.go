package domain

import "strings"

// NormalizeEmail performs case-insensitive canonicalization. Every record set
// is keyed by the normalized form.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail is the basic format check applied to identities before a code is
// issued or an entitlement is granted.
func ValidEmail(s string) bool {
	return strings.Contains(s, "@")
}
