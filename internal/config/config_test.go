package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CODE_TTL", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("JWT_EXPIRY_DAYS", "")
	t.Setenv("PREMIUM_PRICE_CENTS", "")
	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.CodeTTL)
	assert.Equal(t, 30*time.Minute, cfg.EmailMarkerTTL)
	assert.Equal(t, 90*24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, StoreDynamo, cfg.StoreBackend)
	assert.Equal(t, int64(400), cfg.PremiumPriceCents)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CODE_TTL", "2m")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("JWT_EXPIRY_DAYS", "7")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test,https://b.test")
	cfg := Load()

	assert.Equal(t, 2*time.Minute, cfg.CodeTTL)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("EMAIL_MARKER_TTL", "soon")
	assert.Equal(t, 30*time.Minute, Load().EmailMarkerTTL)
}
