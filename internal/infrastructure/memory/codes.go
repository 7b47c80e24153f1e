package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-premium-api/internal/domain"
)

// CodeStore keeps pending one-time codes in process memory. It is the
// development backend and the reference implementation for tests.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]domain.OneTimeCode
}

func NewCodeStore() *CodeStore {
	return &CodeStore{codes: make(map[string]domain.OneTimeCode)}
}

func (s *CodeStore) Put(ctx context.Context, c *domain.OneTimeCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[c.Identity] = *c
	return nil
}

func (s *CodeStore) Get(ctx context.Context, identity string) (*domain.OneTimeCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[identity]
	if !ok {
		return nil, fmt.Errorf("code not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (s *CodeStore) Consume(ctx context.Context, identity, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[identity]
	if !ok || c.Code != code {
		return false, nil
	}
	delete(s.codes, identity)
	return true, nil
}

// PurgeExpired drops every code that has expired at now and returns how many
// were removed.
func (s *CodeStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, c := range s.codes {
		if c.Expired(now) {
			delete(s.codes, k)
			n++
		}
	}
	return n
}

// Len returns the number of pending codes.
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
