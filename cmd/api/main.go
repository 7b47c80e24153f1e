package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-premium-api/internal/application/payment"
	"github.com/go-premium-api/internal/config"
	"github.com/go-premium-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-premium-api/internal/infrastructure/jwt"
	"github.com/go-premium-api/internal/infrastructure/memory"
	"github.com/go-premium-api/internal/infrastructure/metrics"
	"github.com/go-premium-api/internal/infrastructure/redisstore"
	s3infra "github.com/go-premium-api/internal/infrastructure/s3"
	"github.com/go-premium-api/internal/infrastructure/smtp"
	"github.com/go-premium-api/internal/infrastructure/sns"
	stripeinfra "github.com/go-premium-api/internal/infrastructure/stripe"
	"github.com/go-premium-api/internal/pkg/clock"
	transporthttp "github.com/go-premium-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("store backend unavailable", "backend", cfg.StoreBackend, "err", err)
		os.Exit(1)
	}
	defer closeStores()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Error("JWT provider not available", "err", err)
		os.Exit(1)
	}

	mailer := smtp.NewMailer(cfg)
	notifiers := map[string]payment.Notifier{"email": payment.NewMailNotifier(mailer)}
	if cfg.SNSTopicARN != "" {
		if pub, err := sns.NewPublisher(cfg); err == nil {
			notifiers["sns"] = pub
		} else {
			slog.Warn("SNS publisher not available", "err", err)
		}
	}

	var archiver payment.Archiver
	if cfg.S3ArchiveBucket != "" {
		if client, err := s3infra.NewClient(cfg); err == nil {
			archiver = s3infra.NewStore(client, cfg.S3ArchiveBucket)
		} else {
			slog.Warn("S3 archive not available", "err", err)
		}
	}
	if cfg.StripeWebhookSecret == "" {
		slog.Warn("STRIPE_WEBHOOK_SECRET is not set; webhooks will be rejected")
	}

	deps := &transporthttp.Deps{
		Stores:      stores,
		Mailer:      mailer,
		JWTProvider: jwtProvider,
		Gateway:     stripeinfra.NewGateway(cfg),
		Notifiers:   notifiers,
		Archiver:    archiver,
		Metrics:     metrics.New(),
		Clock:       clock.System{},
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
	slog.Info("server stopped")
}

// openStores builds the configured backend. The returned func releases it.
func openStores(ctx context.Context, cfg *config.Config) (transporthttp.Stores, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		codes, markers := memory.NewCodeStore(), memory.NewMarkerStore()
		janitor := &memory.Janitor{Codes: codes, Markers: markers, Clock: clock.System{}, Interval: cfg.JanitorInterval}
		go janitor.Run(ctx)
		return transporthttp.Stores{
			Codes:        codes,
			Markers:      markers,
			Entitlements: memory.NewEntitlementStore(),
		}, func() {}, nil

	case config.StoreRedis:
		rdb := redisstore.NewClient(cfg)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return transporthttp.Stores{}, nil, fmt.Errorf("redis ping: %w", err)
		}
		return transporthttp.Stores{
			Codes:        redisstore.NewCodeStore(rdb),
			Markers:      redisstore.NewMarkerStore(rdb),
			Entitlements: redisstore.NewEntitlementStore(rdb),
			Ping:         func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, func() { _ = rdb.Close() }, nil

	case config.StoreDynamo:
		client, err := dynamo.NewClient(cfg)
		if err != nil {
			return transporthttp.Stores{}, nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return transporthttp.Stores{
			Codes:        dynamo.NewCodeRepo(client, cfg.DynamoTables.Codes),
			Markers:      dynamo.NewMarkerRepo(client, cfg.DynamoTables.EmailMarkers),
			Entitlements: dynamo.NewEntitlementRepo(client, cfg.DynamoTables.Entitlements),
			Ping:         func(ctx context.Context) error { return dynamo.Ping(ctx, client, cfg.DynamoTables.Entitlements) },
		}, func() {}, nil
	}
	return transporthttp.Stores{}, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
