package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-premium-api/internal/domain"
	"github.com/go-premium-api/internal/infrastructure/metrics"
	"github.com/go-premium-api/internal/pkg/clock"
	"github.com/go-premium-api/internal/pkg/keylock"
)

// DefaultTTL is how long an issued code stays redeemable.
const DefaultTTL = 10 * time.Minute

// codeSpace is the number of distinct six-digit codes.
var codeSpace = big.NewInt(1_000_000)

// Store persists the pending code of each identity.
// PK: normalized identity.
type Store interface {
	Put(ctx context.Context, c *domain.OneTimeCode) error
	// Get returns an error wrapping domain.ErrNotFound when no code is pending.
	Get(ctx context.Context, identity string) (*domain.OneTimeCode, error)
	// Consume deletes the pending code only if it still equals code and
	// reports whether this call removed it.
	Consume(ctx context.Context, identity, code string) (bool, error)
}

type Service interface {
	Issue(ctx context.Context, identity string, purpose domain.CodePurpose) (*domain.OneTimeCode, error)
	Verify(ctx context.Context, identity string, purpose domain.CodePurpose, code string) (bool, error)
}

type ServiceDeps struct {
	Store   Store
	Clock   clock.Clock
	TTL     time.Duration
	Metrics *metrics.Metrics
}

type service struct {
	store    Store
	clock    clock.Clock
	ttl      time.Duration
	metrics  *metrics.Metrics
	locks    *keylock.Locker
	generate func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	c := deps.Clock
	if c == nil {
		c = clock.System{}
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &service{
		store:    deps.Store,
		clock:    c,
		ttl:      ttl,
		metrics:  deps.Metrics,
		locks:    keylock.New(),
		generate: generateCode,
	}
}

// Issue replaces any pending code for identity with a fresh one. Delivery is
// the caller's job.
func (s *service) Issue(ctx context.Context, identity string, purpose domain.CodePurpose) (*domain.OneTimeCode, error) {
	identity = domain.NormalizeEmail(identity)
	if !domain.ValidEmail(identity) {
		return nil, fmt.Errorf("invalid email: %w", domain.ErrBadRequest)
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown code purpose %q: %w", purpose, domain.ErrBadRequest)
	}
	code, err := s.generate()
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(identity)
	defer unlock()

	c := &domain.OneTimeCode{
		Identity:  identity,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}
	if err := s.store.Put(ctx, c); err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}
	s.metrics.CodeIssued(string(purpose))
	return c, nil
}

// Verify redeems code. Every rejection is reported as false so callers cannot
// tell a missing code from a wrong or expired one; the error is reserved for
// storage failures.
func (s *service) Verify(ctx context.Context, identity string, purpose domain.CodePurpose, code string) (bool, error) {
	identity = domain.NormalizeEmail(identity)
	if identity == "" {
		return false, fmt.Errorf("email required: %w", domain.ErrBadRequest)
	}

	unlock := s.locks.Lock(identity)
	defer unlock()

	stored, err := s.store.Get(ctx, identity)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.CodeVerified(string(purpose), metrics.ResultMissing)
		return false, nil
	}
	if err != nil {
		s.metrics.CodeVerified(string(purpose), metrics.ResultError)
		return false, fmt.Errorf("load code: %w", err)
	}

	if stored.Expired(s.clock.Now()) {
		// Conditional on the stored code so a concurrent reissue survives.
		if _, err := s.store.Consume(ctx, identity, stored.Code); err != nil {
			slog.Warn("failed to delete expired code", "identity", identity, "err", err)
		}
		s.metrics.CodeVerified(string(purpose), metrics.ResultExpired)
		return false, nil
	}

	if stored.Purpose != purpose || subtle.ConstantTimeCompare([]byte(stored.Code), []byte(code)) != 1 {
		s.metrics.CodeVerified(string(purpose), metrics.ResultMismatch)
		return false, nil
	}

	consumed, err := s.store.Consume(ctx, identity, stored.Code)
	if err != nil {
		s.metrics.CodeVerified(string(purpose), metrics.ResultError)
		return false, fmt.Errorf("consume code: %w", err)
	}
	if !consumed {
		// Another process redeemed or replaced it between Get and Consume.
		s.metrics.CodeVerified(string(purpose), metrics.ResultRaced)
		return false, nil
	}
	s.metrics.CodeVerified(string(purpose), metrics.ResultMatched)
	return true, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
