package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/infrastructure/lock"
	"github.com/bibbank/bnpl/internal/infrastructure/scheduler"
)

var now = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return now }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type mockRunner struct {
	mu          sync.Mutex
	executeFunc func(ctx context.Context, req dto.RunLateInterestAccrualRequest) (dto.RunAccrualResponse, error)
	requests    []dto.RunLateInterestAccrualRequest
}

func (m *mockRunner) Execute(ctx context.Context, req dto.RunLateInterestAccrualRequest) (dto.RunAccrualResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.executeFunc != nil {
		return m.executeFunc(ctx, req)
	}
	return dto.RunAccrualResponse{AsOf: req.AsOf, Processed: 3, Mutated: 2, InterestAdded: decimal.RequireFromString("9.16")}, nil
}

func (m *mockRunner) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func testConfig() scheduler.Config {
	return scheduler.Config{
		Rule:            "FREQ=DAILY;BYHOUR=1;BYMINUTE=0;BYSECOND=0",
		LockTTL:         time.Minute,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxRetries:      3,
		BatchSize:       50,
	}
}

func newLocks(t *testing.T) *lock.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredislib.NewClient(&goredislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.NewManager(client, discardLogger())
}

func newScheduler(t *testing.T, runner *mockRunner, locks *lock.Manager) *scheduler.AccrualScheduler {
	t.Helper()
	s, err := scheduler.New(testConfig(), runner, locks, fixedClock{}, discardLogger())
	require.NoError(t, err)
	return s
}

func TestNew_RejectsInvalidRule(t *testing.T) {
	cfg := testConfig()
	cfg.Rule = "FREQ=FORTNIGHTLY"

	_, err := scheduler.New(cfg, &mockRunner{}, nil, fixedClock{}, discardLogger())

	require.Error(t, err)
}

func TestAccrualScheduler_Next(t *testing.T) {
	s := newScheduler(t, &mockRunner{}, nil)

	next := s.Next(now)
	assert.Equal(t, time.Date(2024, 2, 2, 1, 0, 0, 0, time.UTC), next)
	assert.Equal(t, time.Date(2024, 2, 3, 1, 0, 0, 0, time.UTC), s.Next(next))
}

func TestAccrualScheduler_Tick(t *testing.T) {
	ctx := context.Background()

	t.Run("runs accrual at the current date", func(t *testing.T) {
		runner := &mockRunner{}
		s := newScheduler(t, runner, newLocks(t))

		resp, ran, err := s.Tick(ctx)

		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, 2, resp.Mutated)
		require.Len(t, runner.requests, 1)
		assert.Equal(t, now, runner.requests[0].AsOf)
		assert.Equal(t, 50, runner.requests[0].BatchSize)
	})

	t.Run("retries transient failures with the same as-of date", func(t *testing.T) {
		var attempts atomic.Int32
		runner := &mockRunner{
			executeFunc: func(_ context.Context, req dto.RunLateInterestAccrualRequest) (dto.RunAccrualResponse, error) {
				if attempts.Add(1) < 3 {
					return dto.RunAccrualResponse{}, errors.New("connection reset")
				}
				return dto.RunAccrualResponse{AsOf: req.AsOf, Processed: 1}, nil
			},
		}
		s := newScheduler(t, runner, newLocks(t))

		resp, ran, err := s.Tick(ctx)

		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, 1, resp.Processed)
		require.Len(t, runner.requests, 3)
		for _, req := range runner.requests {
			assert.Equal(t, now, req.AsOf)
		}
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		runner := &mockRunner{
			executeFunc: func(context.Context, dto.RunLateInterestAccrualRequest) (dto.RunAccrualResponse, error) {
				return dto.RunAccrualResponse{}, errors.New("connection reset")
			},
		}
		s := newScheduler(t, runner, nil)

		_, ran, err := s.Tick(ctx)

		require.Error(t, err)
		assert.True(t, ran)
		assert.Contains(t, err.Error(), "connection reset")
		assert.Equal(t, 4, runner.calls())
	})

	t.Run("never retries an invariant violation", func(t *testing.T) {
		runner := &mockRunner{
			executeFunc: func(context.Context, dto.RunLateInterestAccrualRequest) (dto.RunAccrualResponse, error) {
				return dto.RunAccrualResponse{}, model.InvariantViolation("plan-1", nil, "balance mismatch")
			},
		}
		s := newScheduler(t, runner, nil)

		_, _, err := s.Tick(ctx)

		require.Error(t, err)
		assert.True(t, model.IsFatal(err))
		assert.Equal(t, 1, runner.calls())
	})

	t.Run("skips when another replica holds the lock", func(t *testing.T) {
		locks := newLocks(t)
		held, ok, err := locks.TryAcquire(ctx, scheduler.DefaultLockKey, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		defer func() { _ = held.Release(ctx) }()

		runner := &mockRunner{}
		s := newScheduler(t, runner, locks)

		_, ran, err := s.Tick(ctx)

		require.NoError(t, err)
		assert.False(t, ran)
		assert.Zero(t, runner.calls())
	})

	t.Run("releases the lock after the run", func(t *testing.T) {
		locks := newLocks(t)
		s := newScheduler(t, &mockRunner{}, locks)

		_, ran, err := s.Tick(ctx)
		require.NoError(t, err)
		require.True(t, ran)

		h, ok, err := locks.TryAcquire(ctx, scheduler.DefaultLockKey, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, h.Release(ctx))
	})

	t.Run("suppresses an overlapping tick in the same process", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		runner := &mockRunner{
			executeFunc: func(context.Context, dto.RunLateInterestAccrualRequest) (dto.RunAccrualResponse, error) {
				close(started)
				<-release
				return dto.RunAccrualResponse{}, nil
			},
		}
		s := newScheduler(t, runner, nil)

		done := make(chan bool, 1)
		go func() {
			_, ran, _ := s.Tick(ctx)
			done <- ran
		}()
		<-started

		_, ran, err := s.Tick(ctx)
		require.NoError(t, err)
		assert.False(t, ran)

		close(release)
		assert.True(t, <-done)
		assert.Equal(t, 1, runner.calls())
	})
}

func TestAccrualScheduler_RunStopsOnCancel(t *testing.T) {
	runner := &mockRunner{}
	s := newScheduler(t, runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
	assert.Zero(t, runner.calls())
}
