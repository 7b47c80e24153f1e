package otp

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

// --- mocks ---

type mockCodeStore struct{ mock.Mock }

func (m *mockCodeStore) Put(ctx context.Context, c *domain.OneTimeCode) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockCodeStore) Get(ctx context.Context, identity string) (*domain.OneTimeCode, error) {
	args := m.Called(ctx, identity)
	if c, _ := args.Get(0).(*domain.OneTimeCode); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodeStore) Consume(ctx context.Context, identity, code string) (bool, error) {
	args := m.Called(ctx, identity, code)
	return args.Bool(0), args.Error(1)
}

// --- helpers ---

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, codes ...string) (*service, *memory.CodeStore, *clock.Manual) {
	t.Helper()
	store := memory.NewCodeStore()
	clk := clock.NewManual(t0)
	svc := NewService(ServiceDeps{Store: store, Clock: clk}).(*service)
	if len(codes) > 0 {
		i := 0
		svc.generate = func() (string, error) {
			c := codes[i%len(codes)]
			i++
			return c, nil
		}
	}
	return svc, store, clk
}

// --- Issue ---

func TestIssue_SetsExpiryAndNormalizesIdentity(t *testing.T) {
	svc, store, _ := newTestService(t, "482913")

	c, err := svc.Issue(context.Background(), "  A@B.com", domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", c.Identity)
	assert.Equal(t, "482913", c.Code)
	assert.Equal(t, t0.Add(10*time.Minute), c.ExpiresAt)

	stored, err := store.Get(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, c, stored)
}

func TestIssue_RejectsInvalidEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Issue(context.Background(), "not-an-email", domain.PurposeLogin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestIssue_RejectsUnknownPurpose(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Issue(context.Background(), "a@b.com", domain.CodePurpose("reset"))
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestIssue_StoreFailure(t *testing.T) {
	store := &mockCodeStore{}
	store.On("Put", mock.Anything, mock.AnythingOfType("*domain.OneTimeCode")).Return(errors.New("disk full"))

	svc := NewService(ServiceDeps{Store: store})
	_, err := svc.Issue(context.Background(), "a@b.com", domain.PurposeLogin)
	assert.ErrorContains(t, err, "disk full")
}

func TestGenerateCode_IsSixDigits(t *testing.T) {
	for i := 0; i < 200; i++ {
		c, err := generateCode()
		require.NoError(t, err)
		require.Len(t, c, 6)
		for _, r := range c {
			require.True(t, r >= '0' && r <= '9', "code %q", c)
		}
	}
}

// --- Verify ---

func TestVerify_SingleUse(t *testing.T) {
	svc, _, clk := newTestService(t, "482913")
	ctx := context.Background()

	_, err := svc.Issue(ctx, "a@b.com", domain.PurposeLogin)
	require.NoError(t, err)
	clk.Advance(5 * time.Second)

	ok, err := svc.Verify(ctx, "a@b.com", domain.PurposeLogin, "482913")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify(ctx, "a@b.com", domain.PurposeLogin, "482913")
	require.NoError(t, err)
	assert.False(t, ok, "a consumed code must not verify twice")
}

func TestVerify_ExpiredCodeIsRejectedAndDeleted(t *testing.T) {
	svc, store, clk := newTestService(t, "482913")
	ctx := context.Background()

	_, err := svc.Issue(ctx, "a@b.com", domain.PurposeLogin)
	require.NoError(t, err)
	clk.Advance(601 * time.Second)

	ok, err := svc.Verify(ctx, "a@b.com", domain.PurposeLogin, "482913")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestVerify_ExpiresExactlyAtDeadline(t *testing.T) {
	svc, _, clk := newTestService(t, "482913")
	ctx := context.Background()

	_, err := svc.Issue(ctx, "a@b.com", domain.PurposeLogin)
	require.NoError(t, err)
	clk.Advance(10 * time.Minute)

	ok, err := svc.Verify(ctx, "a@b.com", domain.PurposeLogin, "482913")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_MismatchKeepsRecord(t *testing.T) {
	svc, store, _ := newTestService(t, "482913")
	ctx := context.Background()

	_, err := svc.Issue(ctx, "a@b.com", domain.PurposeLogin)
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, "a@b.com", domain.PurposeLogin, "000000")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())

	ok, err = svc.Verify(ctx, "a@b.com", domain.PurposeLogin, "482913")
	require.NoError(t, err)
	assert.True(t, ok, "the right code still works after a wrong attempt")
}

func TestVerify_PurposeMismatchKeepsRecord(t *testing.T) {
	svc, store, _ := newTestService(t, "482913")
	ctx := context.Background()

	_, err := svc.Issue(ctx, "a@b.com", domain.PurposeLogin)
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, "a@b.com", domain.PurposeEmail, "482913")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestVerify_NoRecord(t *testing.T) {
	svc, _, _ := newTestService(t)
	ok, err := svc.Verify(context.Background(), "nobody@b.com", domain.PurposeLogin, "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_CaseInsensitiveIdentity(t *testing.T) {
	svc, _, _ := newTestService(t, "482913")
	ctx := context.Background()

	_, err := svc.Issue(ctx, "Alice@Example.com", domain.PurposeLogin)
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, "alice@EXAMPLE.com", domain.PurposeLogin, "482913")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_ReissueInvalidatesPreviousCode(t *testing.T) {
	svc, _, _ := newTestService(t, "111111", "222222")
	ctx := context.Background()

	_, err := svc.Issue(ctx, "a@b.com", domain.PurposeLogin)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, "a@b.com", domain.PurposeLogin)
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, "a@b.com", domain.PurposeLogin, "111111")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Verify(ctx, "a@b.com", domain.PurposeLogin, "222222")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_ConcurrentAttemptsYieldOneSuccess(t *testing.T) {
	svc, _, _ := newTestService(t, "482913")
	ctx := context.Background()

	_, err := svc.Issue(ctx, "a@b.com", domain.PurposeLogin)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := svc.Verify(ctx, "a@b.com", domain.PurposeLogin, "482913")
			assert.NoError(t, err)
			if ok {
				successes.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load())
}

func TestVerify_LostConsumeRaceReturnsFalse(t *testing.T) {
	store := &mockCodeStore{}
	store.On("Get", mock.Anything, "a@b.com").Return(&domain.OneTimeCode{
		Identity: "a@b.com", Purpose: domain.PurposeLogin, Code: "482913", ExpiresAt: t0.Add(time.Minute),
	}, nil)
	store.On("Consume", mock.Anything, "a@b.com", "482913").Return(false, nil)

	svc := NewService(ServiceDeps{Store: store, Clock: clock.NewManual(t0)})
	ok, err := svc.Verify(context.Background(), "a@b.com", domain.PurposeLogin, "482913")
	require.NoError(t, err)
	assert.False(t, ok)
	store.AssertExpectations(t)
}

func TestVerify_StorageErrorsPropagate(t *testing.T) {
	store := &mockCodeStore{}
	store.On("Get", mock.Anything, "a@b.com").Return(nil, errors.New("connection reset"))

	svc := NewService(ServiceDeps{Store: store, Clock: clock.NewManual(t0)})
	ok, err := svc.Verify(context.Background(), "a@b.com", domain.PurposeLogin, "482913")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection reset")
}

func TestVerify_ExpiredDeleteFailureStillRejects(t *testing.T) {
	store := &mockCodeStore{}
	store.On("Get", mock.Anything, "a@b.com").Return(&domain.OneTimeCode{
		Identity: "a@b.com", Purpose: domain.PurposeLogin, Code: "482913", ExpiresAt: t0,
	}, nil)
	store.On("Consume", mock.Anything, "a@b.com", "482913").Return(false, errors.New("timeout"))

	svc := NewService(ServiceDeps{Store: store, Clock: clock.NewManual(t0.Add(time.Second))})
	ok, err := svc.Verify(context.Background(), "a@b.com", domain.PurposeLogin, "482913")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_EmptyIdentity(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Verify(context.Background(), "  ", domain.PurposeLogin, "123456")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}
