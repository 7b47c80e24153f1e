package http

import (
	"context"

	"github.com/go-premium-api/internal/application/emailgate"
	"github.com/go-premium-api/internal/application/entitlement"
	"github.com/go-premium-api/internal/application/otp"
	"github.com/go-premium-api/internal/application/payment"
	"github.com/go-premium-api/internal/infrastructure/metrics"
	jwtinfra "github.com/go-premium-api/internal/infrastructure/jwt"
	"github.com/go-premium-api/internal/pkg/clock"
	"github.com/go-premium-api/internal/transport/http/handler"
)

// Stores groups the three record sets. Each backend (DynamoDB, Redis,
// memory) provides all of them.
type Stores struct {
	Codes        otp.Store
	Markers      emailgate.Store
	Entitlements entitlement.Store
	// Ping backs the readiness probe; nil means always ready.
	Ping func(context.Context) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Stores      Stores
	Mailer      payment.Mailer
	JWTProvider *jwtinfra.Provider
	Gateway     handler.PaymentGateway
	// Notifiers run after a first-time grant, keyed by channel name.
	Notifiers map[string]payment.Notifier
	Archiver  payment.Archiver
	Metrics   *metrics.Metrics
	Clock     clock.Clock
}
