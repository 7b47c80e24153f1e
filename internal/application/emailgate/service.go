package emailgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-premium-api/internal/domain"
	"github.com/go-premium-api/internal/pkg/clock"
	"github.com/go-premium-api/internal/pkg/keylock"
)

// DefaultWindow is how long a confirmed address stays verified.
const DefaultWindow = 30 * time.Minute

// Store persists verified-email markers.
// PK: normalized identity.
type Store interface {
	Put(ctx context.Context, m *domain.VerifiedEmailMarker) error
	// Get returns an error wrapping domain.ErrNotFound when no marker exists.
	Get(ctx context.Context, identity string) (*domain.VerifiedEmailMarker, error)
	Delete(ctx context.Context, identity string) error
}

type Service interface {
	MarkVerified(ctx context.Context, identity string) error
	IsVerified(ctx context.Context, identity string) (bool, error)
}

type ServiceDeps struct {
	Store  Store
	Clock  clock.Clock
	Window time.Duration
}

type service struct {
	store  Store
	clock  clock.Clock
	window time.Duration
	locks  *keylock.Locker
}

func NewService(deps ServiceDeps) Service {
	c := deps.Clock
	if c == nil {
		c = clock.System{}
	}
	window := deps.Window
	if window <= 0 {
		window = DefaultWindow
	}
	return &service{store: deps.Store, clock: c, window: window, locks: keylock.New()}
}

// MarkVerified opens (or restarts) the verification window for identity.
func (s *service) MarkVerified(ctx context.Context, identity string) error {
	identity = domain.NormalizeEmail(identity)
	if identity == "" {
		return fmt.Errorf("email required: %w", domain.ErrBadRequest)
	}

	unlock := s.locks.Lock(identity)
	defer unlock()

	now := s.clock.Now()
	m := &domain.VerifiedEmailMarker{
		Identity:   identity,
		VerifiedAt: now,
		ExpiresAt:  now.Add(s.window),
	}
	if err := s.store.Put(ctx, m); err != nil {
		return fmt.Errorf("store marker: %w", err)
	}
	return nil
}

// IsVerified reports whether identity is inside its window. A lapsed marker
// is removed on the way out.
func (s *service) IsVerified(ctx context.Context, identity string) (bool, error) {
	identity = domain.NormalizeEmail(identity)
	if identity == "" {
		return false, nil
	}

	unlock := s.locks.Lock(identity)
	defer unlock()

	m, err := s.store.Get(ctx, identity)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load marker: %w", err)
	}
	if m.Expired(s.clock.Now()) {
		if err := s.store.Delete(ctx, identity); err != nil {
			slog.Warn("failed to delete lapsed email marker", "identity", identity, "err", err)
		}
		return false, nil
	}
	return true, nil
}
