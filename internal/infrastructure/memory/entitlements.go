package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-premium-api/internal/domain"
)

// EntitlementStore is an append-only, in-memory entitlement set.
type EntitlementStore struct {
	mu      sync.Mutex
	records map[string]domain.Entitlement
}

func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{records: make(map[string]domain.Entitlement)}
}

func (s *EntitlementStore) Get(ctx context.Context, identity string) (*domain.Entitlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[identity]
	if !ok {
		return nil, fmt.Errorf("entitlement not found: %w", domain.ErrNotFound)
	}
	return copyEntitlement(e), nil
}

// PutIfAbsent stores e unless an entitlement for the identity exists already.
func (s *EntitlementStore) PutIfAbsent(ctx context.Context, e *domain.Entitlement) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[e.Identity]; ok {
		return false, nil
	}
	s.records[e.Identity] = *copyEntitlement(*e)
	return true, nil
}

// Len returns the number of stored entitlements.
func (s *EntitlementStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func copyEntitlement(e domain.Entitlement) *domain.Entitlement {
	if e.SourceReference != nil {
		ref := *e.SourceReference
		e.SourceReference = &ref
	}
	return &e
}
