package engine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	"github.com/dev-mohitbeniwal/trackgate/model"
	"github.com/dev-mohitbeniwal/trackgate/pdp/cache"
	"github.com/dev-mohitbeniwal/trackgate/pdp/engine"
	mocks "github.com/dev-mohitbeniwal/trackgate/test/mock"
)

const secretID = "mlflow-token"

var testConfig = engine.AuthorizerConfig{
	SecretID:     secretID,
	AllowTTL:     5 * time.Minute,
	DenyTTL:      10 * time.Second,
	FetchTimeout: 200 * time.Millisecond,
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T, store engine.SecretStore) (*engine.Authorizer, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	a, err := engine.NewAuthorizer(store, cache.NewVerdictCache(100, cache.WithClock(clk.Now)), testConfig)
	require.NoError(t, err)
	return a, clk
}

func record(current, previous string) *model.CredentialRecord {
	return &model.CredentialRecord{SecretID: secretID, Current: current, Previous: previous}
}

func TestNewAuthorizer(t *testing.T) {
	store := new(mocks.MockSecretStore)
	verdicts := cache.NewVerdictCache(10)

	t.Run("Valid", func(t *testing.T) {
		_, err := engine.NewAuthorizer(store, verdicts, testConfig)
		assert.NoError(t, err)
	})

	t.Run("DenyTTLNotShorterThanAllowTTL", func(t *testing.T) {
		cfg := testConfig
		cfg.DenyTTL = cfg.AllowTTL
		_, err := engine.NewAuthorizer(store, verdicts, cfg)
		assert.ErrorIs(t, err, gate_errors.ErrInvalidConfig)
	})

	t.Run("ZeroFetchTimeout", func(t *testing.T) {
		cfg := testConfig
		cfg.FetchTimeout = 0
		_, err := engine.NewAuthorizer(store, verdicts, cfg)
		assert.ErrorIs(t, err, gate_errors.ErrInvalidConfig)
	})

	t.Run("MissingStore", func(t *testing.T) {
		_, err := engine.NewAuthorizer(nil, verdicts, testConfig)
		assert.ErrorIs(t, err, gate_errors.ErrInvalidConfig)
	})
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("CurrentValueAllows", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		store.On("GetCredential", mock.Anything, secretID).Return(record("abc", ""), nil)
		a, clk := setup(t, store)

		v := a.Authorize(ctx, "abc")
		assert.True(t, v.Allow)
		assert.Equal(t, model.KindNone, v.Reason)
		assert.Equal(t, clk.Now().Add(testConfig.AllowTTL), v.ExpiresAt)
		assert.False(t, v.Cached)
	})

	t.Run("PreviousValueAllows", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		store.On("GetCredential", mock.Anything, secretID).Return(record("xyz", "abc"), nil)
		a, _ := setup(t, store)

		assert.True(t, a.Authorize(ctx, "abc").Allow)
		assert.True(t, a.Authorize(ctx, "xyz").Allow)
	})

	t.Run("MismatchDenies", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		store.On("GetCredential", mock.Anything, secretID).Return(record("xyz", "abc"), nil)
		a, _ := setup(t, store)

		v := a.Authorize(ctx, "old")
		assert.False(t, v.Allow)
		assert.Equal(t, model.KindCredentialMismatch, v.Reason)
	})

	t.Run("MissingCredentialSkipsStore", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		a, _ := setup(t, store)

		v := a.Authorize(ctx, "")
		assert.False(t, v.Allow)
		assert.Equal(t, model.KindMissingCredential, v.Reason)
		store.AssertNotCalled(t, "GetCredential", mock.Anything, mock.Anything)
	})

	t.Run("StoreErrorFailsClosedAndIsNotCached", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		store.On("GetCredential", mock.Anything, secretID).Return(nil, errors.New("connection refused"))
		a, _ := setup(t, store)

		for i := 0; i < 2; i++ {
			v := a.Authorize(ctx, "abc")
			assert.False(t, v.Allow)
			assert.Equal(t, model.KindUpstreamUnavailable, v.Reason)
		}
		store.AssertNumberOfCalls(t, "GetCredential", 2)
	})

	t.Run("SecretNotFoundFailsClosed", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		store.On("GetCredential", mock.Anything, secretID).Return(nil, gate_errors.ErrSecretNotFound)
		a, _ := setup(t, store)

		v := a.Authorize(ctx, "abc")
		assert.False(t, v.Allow)
		assert.Equal(t, model.KindUpstreamUnavailable, v.Reason)
	})

	t.Run("NilRecordFailsClosed", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		store.On("GetCredential", mock.Anything, secretID).Return(nil, nil)
		a, _ := setup(t, store)

		assert.Equal(t, model.KindUpstreamUnavailable, a.Authorize(ctx, "abc").Reason)
	})

	t.Run("AllowIsCachedForAllowTTL", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		store.On("GetCredential", mock.Anything, secretID).Return(record("abc", ""), nil)
		a, clk := setup(t, store)

		first := a.Authorize(ctx, "abc")
		clk.Advance(testConfig.AllowTTL - time.Second)
		second := a.Authorize(ctx, "abc")

		assert.True(t, second.Allow)
		assert.True(t, second.Cached)
		assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
		store.AssertNumberOfCalls(t, "GetCredential", 1)

		clk.Advance(time.Second)
		a.Authorize(ctx, "abc")
		store.AssertNumberOfCalls(t, "GetCredential", 2)
	})

	t.Run("DenyIsRefetchedAfterDenyTTL", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		store.On("GetCredential", mock.Anything, secretID).Return(record("xyz", ""), nil).Once()
		store.On("GetCredential", mock.Anything, secretID).Return(record("abc", "xyz"), nil).Once()
		a, clk := setup(t, store)

		assert.False(t, a.Authorize(ctx, "abc").Allow)
		clk.Advance(testConfig.DenyTTL / 2)
		assert.False(t, a.Authorize(ctx, "abc").Allow)
		store.AssertNumberOfCalls(t, "GetCredential", 1)

		clk.Advance(testConfig.DenyTTL / 2)
		assert.True(t, a.Authorize(ctx, "abc").Allow, "rotation is observed once the deny entry expires")
		store.AssertNumberOfCalls(t, "GetCredential", 2)
	})

	t.Run("Idempotent", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		store.On("GetCredential", mock.Anything, secretID).Return(record("abc", ""), nil)
		a, _ := setup(t, store)

		first := a.Authorize(ctx, "nope")
		second := a.Authorize(ctx, "nope")
		assert.Equal(t, first.Allow, second.Allow)
		assert.Equal(t, first.Reason, second.Reason)
		assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
	})

	t.Run("SlowStoreTimesOut", func(t *testing.T) {
		store := new(mocks.MockSecretStore)
		store.On("GetCredential", mock.Anything, secretID).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return(nil, context.DeadlineExceeded)
		a, _ := setup(t, store)

		start := time.Now()
		v := a.Authorize(ctx, "abc")
		assert.Equal(t, model.KindUpstreamUnavailable, v.Reason)
		assert.Less(t, time.Since(start), 5*testConfig.FetchTimeout)
	})
}

// gatedStore blocks every fetch until release is closed and counts calls.
type gatedStore struct {
	calls   int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
	record  *model.CredentialRecord
}

func (s *gatedStore) GetCredential(ctx context.Context, _ string) (*model.CredentialRecord, error) {
	atomic.AddInt32(&s.calls, 1)
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return s.record, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAuthorize_ConcurrentMissFetchesOnce(t *testing.T) {
	store := &gatedStore{
		started: make(chan struct{}),
		release: make(chan struct{}),
		record:  record("abc", ""),
	}
	cfg := testConfig
	cfg.FetchTimeout = 5 * time.Second
	a, err := engine.NewAuthorizer(store, cache.NewVerdictCache(100), cfg)
	require.NoError(t, err)

	const callers = 32
	var wg sync.WaitGroup
	var allowed int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a.Authorize(context.Background(), "abc").Allow {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}

	<-store.started
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&store.calls))
	assert.Equal(t, int32(callers), atomic.LoadInt32(&allowed))
}

func TestAuthorize_CancelledWaiterDoesNotPoisonFlight(t *testing.T) {
	store := &gatedStore{
		started: make(chan struct{}),
		release: make(chan struct{}),
		record:  record("abc", ""),
	}
	cfg := testConfig
	cfg.FetchTimeout = 5 * time.Second
	a, err := engine.NewAuthorizer(store, cache.NewVerdictCache(100), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan model.ErrorKind, 1)
	go func() {
		done <- a.Authorize(ctx, "abc").Reason
	}()

	<-store.started
	cancel()
	assert.Equal(t, model.KindUpstreamUnavailable, <-done)

	close(store.release)
	require.Eventually(t, func() bool {
		return a.Authorize(context.Background(), "abc").Allow
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.calls), "the detached fetch completes and is cached")
}

func TestAuthorize_RotationScenario(t *testing.T) {
	ctx := context.Background()
	store := new(mocks.MockSecretStore)
	store.On("GetCredential", mock.Anything, secretID).Return(record("abc", ""), nil).Once()
	store.On("GetCredential", mock.Anything, secretID).Return(record("xyz", "abc"), nil)
	a, clk := setup(t, store)

	assert.True(t, a.Authorize(ctx, "abc").Allow)

	// Rotation happens; the cached allow for abc keeps serving.
	clk.Advance(time.Minute)
	assert.True(t, a.Authorize(ctx, "abc").Allow)

	assert.True(t, a.Authorize(ctx, "xyz").Allow)
	v := a.Authorize(ctx, "old")
	assert.False(t, v.Allow)
	assert.Equal(t, model.KindCredentialMismatch, v.Reason)

	clk.Advance(testConfig.AllowTTL)
	assert.True(t, a.Authorize(ctx, "abc").Allow, "previous value still passes after expiry")
}
