package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable through STORE_BACKEND.
const (
	StoreDynamo = "dynamo"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	StoreBackend    string
	JanitorInterval time.Duration

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CodeTTL        time.Duration
	EmailMarkerTTL time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion   string
	SNSTopicARN string // entitlement-granted events; publishing is skipped when empty

	S3ArchiveBucket string // raw payment events; archiving is skipped when empty

	StripeSecretKey     string
	StripeWebhookSecret string
	PremiumPriceCents   int64
	PremiumCurrency     string
	FrontendURL         string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each record set.
type DynamoTables struct {
	Codes        string
	EmailMarkers string
	Entitlements string
}

// IsDevelopment reports whether pending codes may be echoed back to callers.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", StoreDynamo)),
		JanitorInterval: getEnvDuration("JANITOR_INTERVAL", 5*time.Minute),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Codes:        getEnv("DYNAMO_TABLE_CODES", "otp_codes"),
			EmailMarkers: getEnv("DYNAMO_TABLE_EMAIL_MARKERS", "verified_emails"),
			Entitlements: getEnv("DYNAMO_TABLE_ENTITLEMENTS", "entitlements"),
		},

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CodeTTL:        getEnvDuration("CODE_TTL", 10*time.Minute),
		EmailMarkerTTL: getEnvDuration("EMAIL_MARKER_TTL", 30*time.Minute),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 90)) * 24 * time.Hour,

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:   getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		S3ArchiveBucket: getEnv("S3_ARCHIVE_BUCKET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		PremiumPriceCents:   int64(getEnvInt("PREMIUM_PRICE_CENTS", 400)),
		PremiumCurrency:     getEnv("PREMIUM_CURRENCY", "eur"),
		FrontendURL:         getEnv("FRONTEND_URL", "https://example.com"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
