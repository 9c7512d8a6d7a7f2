// Package lock provides a cross-replica mutex backed by Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the lock expired or was taken over
// before it was released.
var ErrNotHeld = errors.New("lock: not held")

// Config holds Redis connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient opens a Redis client and checks it answers.
func NewClient(ctx context.Context, cfg Config) (*goredislib.Client, error) {
	client := goredislib.NewClient(&goredislib.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("lock: ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Manager hands out Redlock mutexes.
type Manager struct {
	rs     *redsync.Redsync
	logger *slog.Logger
}

// NewManager creates a Manager on top of client.
func NewManager(client goredislib.UniversalClient, logger *slog.Logger) *Manager {
	return &Manager{
		rs:     redsync.New(goredis.NewPool(client)),
		logger: logger,
	}
}

// Handle is a lock held by this process.
type Handle struct {
	mutex  *redsync.Mutex
	logger *slog.Logger
}

// TryAcquire makes a single attempt to take key for ttl. It returns
// (nil, false, nil) when another holder has the key.
func (m *Manager) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Handle, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, errors.New("lock: empty key")
	}

	mutex := m.rs.NewMutex(key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			m.logger.DebugContext(ctx, "lock held elsewhere", "key", key)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lock: acquire %s: %w", key, err)
	}

	m.logger.DebugContext(ctx, "lock acquired", "key", key, "ttl", ttl)
	return &Handle{mutex: mutex, logger: m.logger}, true, nil
}

// Release gives the lock back.
func (h *Handle) Release(ctx context.Context) error {
	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", h.mutex.Name(), err)
	}
	if !ok {
		h.logger.WarnContext(ctx, "lock expired before release", "key", h.mutex.Name())
		return ErrNotHeld
	}
	return nil
}

func isContention(err error) bool {
	if errors.Is(err, redsync.ErrFailed) {
		return true
	}
	var taken *redsync.ErrTaken
	if errors.As(err, &taken) {
		return true
	}
	return strings.Contains(err.Error(), "lock already taken")
}
