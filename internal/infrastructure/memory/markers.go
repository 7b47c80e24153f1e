package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-premium-api/internal/domain"
)

// MarkerStore keeps verified-email markers in process memory.
type MarkerStore struct {
	mu      sync.Mutex
	markers map[string]domain.VerifiedEmailMarker
}

func NewMarkerStore() *MarkerStore {
	return &MarkerStore{markers: make(map[string]domain.VerifiedEmailMarker)}
}

func (s *MarkerStore) Put(ctx context.Context, m *domain.VerifiedEmailMarker) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[m.Identity] = *m
	return nil
}

func (s *MarkerStore) Get(ctx context.Context, identity string) (*domain.VerifiedEmailMarker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markers[identity]
	if !ok {
		return nil, fmt.Errorf("marker not found: %w", domain.ErrNotFound)
	}
	return &m, nil
}

func (s *MarkerStore) Delete(ctx context.Context, identity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, identity)
	return nil
}

// PurgeExpired drops every marker that has lapsed at now.
func (s *MarkerStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, m := range s.markers {
		if m.Expired(now) {
			delete(s.markers, k)
			n++
		}
	}
	return n
}
