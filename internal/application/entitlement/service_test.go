package entitlement

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-premium-api/internal/domain"
	"github.com/go-premium-api/internal/infrastructure/memory"
	"github.com/go-premium-api/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Get(ctx context.Context, identity string) (*domain.Entitlement, error) {
	args := m.Called(ctx, identity)
	if e, _ := args.Get(0).(*domain.Entitlement); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) PutIfAbsent(ctx context.Context, e *domain.Entitlement) (bool, error) {
	args := m.Called(ctx, e)
	return args.Bool(0), args.Error(1)
}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func ref(s string) *string { return &s }

func TestGrant_IsIdempotentAndKeepsFirstValues(t *testing.T) {
	store := memory.NewEntitlementStore()
	clk := clock.NewManual(t0)
	svc := NewService(ServiceDeps{Store: store, Clock: clk})
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, "carol@example.com", ref("cs_1")))
	clk.Advance(time.Hour)
	require.NoError(t, svc.Grant(ctx, "CAROL@example.com", ref("cs_2")))

	e, err := svc.Get(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, t0, e.ActivatedAt)
	require.NotNil(t, e.SourceReference)
	assert.Equal(t, "cs_1", *e.SourceReference)
	assert.Equal(t, 1, store.Len())
}

func TestActivate_ReportsCreation(t *testing.T) {
	svc := NewService(ServiceDeps{Store: memory.NewEntitlementStore()})
	ctx := context.Background()

	created, err := svc.Activate(ctx, "carol@example.com", nil)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.Activate(ctx, "carol@example.com", nil)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestIsEntitled_CaseInsensitive(t *testing.T) {
	svc := NewService(ServiceDeps{Store: memory.NewEntitlementStore()})
	ctx := context.Background()

	require.NoError(t, svc.Grant(ctx, "Carol@Example.com", nil))

	for _, id := range []string{"carol@example.com", "CAROL@EXAMPLE.COM", " carol@example.com "} {
		ok, err := svc.IsEntitled(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, id)
	}

	ok, err := svc.IsEntitled(ctx, "dave@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrant_RejectsIdentityWithoutAt(t *testing.T) {
	store := memory.NewEntitlementStore()
	svc := NewService(ServiceDeps{Store: store})

	err := svc.Grant(context.Background(), "carol.example.com", nil)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	assert.Equal(t, 0, store.Len())
}

func TestGrant_ConcurrentCallsCreateOneRecord(t *testing.T) {
	store := memory.NewEntitlementStore()
	svc := NewService(ServiceDeps{Store: store})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.Activate(ctx, "carol@example.com", nil)
			assert.NoError(t, err)
			if ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, 1, store.Len())
}

func TestGrant_StorageErrorPropagates(t *testing.T) {
	store := &mockStore{}
	store.On("PutIfAbsent", mock.Anything, mock.AnythingOfType("*domain.Entitlement")).Return(false, errors.New("unavailable"))
	svc := NewService(ServiceDeps{Store: store})
	err := svc.Grant(context.Background(), "carol@example.com", nil)
	assert.ErrorContains(t, err, "unavailable")
	assert.False(t, errors.Is(err, domain.ErrBadRequest))
}

func TestIsEntitled_StorageErrorPropagates(t *testing.T) {
	store := &mockStore{}
	store.On("Get", mock.Anything, "carol@example.com").Return(nil, errors.New("unavailable"))

	svc := NewService(ServiceDeps{Store: store})
	ok, err := svc.IsEntitled(context.Background(), "carol@example.com")
	assert.False(t, ok)
	assert.Error(t, err)
}
