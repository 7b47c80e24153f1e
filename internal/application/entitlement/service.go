package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-premium-api/internal/domain"
	"github.com/go-premium-api/internal/infrastructure/metrics"
	"github.com/go-premium-api/internal/pkg/clock"
	"github.com/go-premium-api/internal/pkg/keylock"
)

// Store is the append-only entitlement ledger.
// PK: normalized identity.
type Store interface {
	// Get returns an error wrapping domain.ErrNotFound when nothing was granted.
	Get(ctx context.Context, identity string) (*domain.Entitlement, error)
	// PutIfAbsent inserts e atomically and reports whether it was created.
	PutIfAbsent(ctx context.Context, e *domain.Entitlement) (bool, error)
}

type Service interface {
	IsEntitled(ctx context.Context, identity string) (bool, error)
	Get(ctx context.Context, identity string) (*domain.Entitlement, error)
	// Grant is idempotent: an existing entitlement is left untouched.
	Grant(ctx context.Context, identity string, sourceReference *string) error
	// Activate behaves like Grant and also reports whether this call created
	// the entitlement.
	Activate(ctx context.Context, identity string, sourceReference *string) (bool, error)
}

type ServiceDeps struct {
	Store   Store
	Clock   clock.Clock
	Metrics *metrics.Metrics
}

type service struct {
	store   Store
	clock   clock.Clock
	metrics *metrics.Metrics
	locks   *keylock.Locker
}

func NewService(deps ServiceDeps) Service {
	c := deps.Clock
	if c == nil {
		c = clock.System{}
	}
	return &service{store: deps.Store, clock: c, metrics: deps.Metrics, locks: keylock.New()}
}

func (s *service) IsEntitled(ctx context.Context, identity string) (bool, error) {
	_, err := s.Get(ctx, identity)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) Get(ctx context.Context, identity string) (*domain.Entitlement, error) {
	identity = domain.NormalizeEmail(identity)
	if identity == "" {
		return nil, fmt.Errorf("entitlement not found: %w", domain.ErrNotFound)
	}
	e, err := s.store.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load entitlement: %w", err)
	}
	return e, nil
}

func (s *service) Grant(ctx context.Context, identity string, sourceReference *string) error {
	_, err := s.Activate(ctx, identity, sourceReference)
	return err
}

func (s *service) Activate(ctx context.Context, identity string, sourceReference *string) (bool, error) {
	identity = domain.NormalizeEmail(identity)
	if !domain.ValidEmail(identity) {
		return false, fmt.Errorf("invalid email: %w", domain.ErrBadRequest)
	}

	unlock := s.locks.Lock(identity)
	defer unlock()

	e := &domain.Entitlement{
		Identity:        identity,
		ActivatedAt:     s.clock.Now(),
		SourceReference: sourceReference,
	}
	created, err := s.store.PutIfAbsent(ctx, e)
	if err != nil {
		s.metrics.Grant(metrics.GrantError)
		return false, fmt.Errorf("store entitlement: %w", err)
	}
	if created {
		s.metrics.Grant(metrics.GrantCreated)
	} else {
		s.metrics.Grant(metrics.GrantDuplicate)
	}
	return created, nil
}
