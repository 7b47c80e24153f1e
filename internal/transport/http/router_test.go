package http

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-premium-api/internal/config"
	"github.com/go-premium-api/internal/domain"
	"github.com/go-premium-api/internal/infrastructure/memory"
	"github.com/go-premium-api/internal/infrastructure/metrics"
	jwtinfra "github.com/go-premium-api/internal/infrastructure/jwt"
	stripeinfra "github.com/go-premium-api/internal/infrastructure/stripe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct{}

func (fakeGateway) ParseEvent(payload []byte, signature string) (*stripeinfra.Event, error) {
	if signature != "valid" {
		return nil, stripeinfra.ErrInvalidSignature
	}
	return &stripeinfra.Event{
		ID:   "evt_1",
		Type: "checkout.session.completed",
		Confirmation: &domain.PaymentConfirmation{
			EventID: "evt_1", Identity: string(payload), SourceReference: "cs_1",
		},
	}, nil
}

func (fakeGateway) CreateCheckout(context.Context, string) (*stripeinfra.Checkout, error) {
	return &stripeinfra.Checkout{SessionID: "cs_1", URL: "https://pay.test/cs_1"}, nil
}

func (fakeGateway) RetrieveSession(context.Context, string) (*stripeinfra.Session, error) {
	return &stripeinfra.Session{ID: "cs_1"}, nil
}

type nopMailer struct{}

func (nopMailer) SendEmail(string, string, string) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cfg := &config.Config{
		AppEnv:         "development",
		CodeTTL:        10 * time.Minute,
		EmailMarkerTTL: 30 * time.Minute,
		AllowedOrigins: []string{"*"},
	}
	return NewRouter(cfg, &Deps{
		Stores: Stores{
			Codes:        memory.NewCodeStore(),
			Markers:      memory.NewMarkerStore(),
			Entitlements: memory.NewEntitlementStore(),
		},
		Mailer:      nopMailer{},
		JWTProvider: jwtinfra.NewProviderFromKeys(k, &k.PublicKey, time.Hour),
		Gateway:     fakeGateway{},
		Metrics:     metrics.New(),
	})
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:4000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_PurchaseThenLoginThenMe(t *testing.T) {
	h := newTestRouter(t)

	rr := do(h, http.MethodGet, "/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(h, http.MethodPost, "/v1/webhook/stripe", "buyer@example.com", map[string]string{"Stripe-Signature": "valid"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(h, http.MethodPost, "/v1/auth/request-otp", `{"email":"buyer@example.com"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var codeResp struct {
		DevCode string `json:"devCode"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &codeResp))

	rr = do(h, http.MethodPost, "/v1/auth/login", `{"email":"buyer@example.com","code":"`+codeResp.DevCode+`"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))

	rr = do(h, http.MethodGet, "/v1/me", "", map[string]string{"Authorization": "Bearer " + login.Token})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"buyer@example.com"`)
}

func TestRouter_WebhookBadSignature(t *testing.T) {
	h := newTestRouter(t)
	rr := do(h, http.MethodPost, "/v1/webhook/stripe", "x@y.z", map[string]string{"Stripe-Signature": "forged"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_StrictLimitOnCodeRequests(t *testing.T) {
	h := newTestRouter(t)
	last := 0
	for i := 0; i < 11; i++ {
		last = do(h, http.MethodPost, "/v1/auth/request-otp", `{"email":"a@b.com"}`, nil).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)

	// The general bucket is separate and still has room.
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/v1/auth/check?email=a@b.com", "", nil).Code)
}

func TestRouter_MetricsExposed(t *testing.T) {
	h := newTestRouter(t)
	do(h, http.MethodPost, "/v1/auth/request-otp", `{"email":"a@b.com"}`, nil)

	rr := do(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `premium_codes_issued_total{purpose="login"} 1`)
}

func TestRouter_HealthCheck(t *testing.T) {
	h := newTestRouter(t)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/v1/health-check/ping", "", nil).Code)
}
