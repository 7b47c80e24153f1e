package domain

import "errors"

// Sentinels wrapped by the services with fmt.Errorf("...: %w"). Handlers map
// them to status codes with errors.Is; anything unwrapped is a storage or
// delivery failure.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)
