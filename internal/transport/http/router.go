package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-premium-api/internal/application/auth"
	"github.com/go-premium-api/internal/application/emailgate"
	"github.com/go-premium-api/internal/application/entitlement"
	"github.com/go-premium-api/internal/application/otp"
	"github.com/go-premium-api/internal/application/payment"
	"github.com/go-premium-api/internal/config"
	"github.com/go-premium-api/internal/transport/http/handler"
	appmiddleware "github.com/go-premium-api/internal/transport/http/middleware"
)

const limitWindow = 15 * time.Minute

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	generalRL := appmiddleware.NewRateLimiter(100, limitWindow, "too many requests, please try again later")
	strictRL := appmiddleware.NewRateLimiter(10, limitWindow, "too many attempts, please try again later")
	premiumRL := appmiddleware.NewKeyedRateLimiter(60, time.Minute, "request limit reached, please wait", appmiddleware.ByIdentity)

	codeSvc := otp.NewService(otp.ServiceDeps{
		Store: deps.Stores.Codes, Clock: deps.Clock, TTL: cfg.CodeTTL, Metrics: deps.Metrics,
	})
	gateSvc := emailgate.NewService(emailgate.ServiceDeps{
		Store: deps.Stores.Markers, Clock: deps.Clock, Window: cfg.EmailMarkerTTL,
	})
	entSvc := entitlement.NewService(entitlement.ServiceDeps{
		Store: deps.Stores.Entitlements, Clock: deps.Clock, Metrics: deps.Metrics,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		Codes:        codeSvc,
		Gate:         gateSvc,
		Entitlements: entSvc,
		Mailer:       deps.Mailer,
		Signer:       deps.JWTProvider,
		DevMode:      cfg.IsDevelopment(),
	})
	confirmation := payment.NewHandler(payment.HandlerDeps{
		Granter:   entSvc,
		Notifiers: deps.Notifiers,
		Archiver:  deps.Archiver,
		Metrics:   deps.Metrics,
	})

	healthH := handler.NewHealthHandler(deps.Stores.Ping)
	authH := handler.NewAuthHandler(authSvc)
	payH := handler.NewPaymentHandler(deps.Gateway, confirmation)
	meH := handler.NewMeHandler(entSvc)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		// The webhook is authenticated by signature and stays outside the
		// per-IP limits so provider redeliveries are never throttled.
		r.Post("/webhook/stripe", payH.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(generalRL.Limit)

			r.With(strictRL.Limit).Post("/auth/request-otp", authH.RequestOTP)
			r.With(strictRL.Limit).Post("/auth/login", authH.Login)
			r.Get("/auth/check", authH.Check)
			r.With(strictRL.Limit).Post("/auth/verify-email", authH.VerifyEmail)
			r.With(strictRL.Limit).Post("/auth/confirm-email", authH.ConfirmEmail)

			r.With(strictRL.Limit).Post("/checkout", payH.Checkout)
			r.Get("/payment/success", payH.Success)
			r.Get("/payment/cancel", payH.Cancel)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.Auth(deps.JWTProvider))
				r.Use(appmiddleware.RequirePremium(entSvc))
				r.Use(premiumRL.Limit)

				r.Get("/me", meH.Get)
			})
		})
	})

	return r
}
