// Package scheduler runs late-interest accrual on an RFC 5545 cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/teambition/rrule-go"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
	"github.com/bibbank/bnpl/internal/infrastructure/lock"
)

// DefaultLockKey is the Redis key guarding accrual across replicas.
const DefaultLockKey = "bnpl:late-interest-accrual"

// AccrualRunner is satisfied by *usecase.RunLateInterestAccrualUseCase.
type AccrualRunner interface {
	Execute(ctx context.Context, req dto.RunLateInterestAccrualRequest) (dto.RunAccrualResponse, error)
}

// Config controls cadence and retry behaviour.
type Config struct {
	// Rule is an RFC 5545 recurrence without DTSTART, e.g.
	// "FREQ=DAILY;BYHOUR=1;BYMINUTE=0;BYSECOND=0".
	Rule            string
	LockKey         string
	LockTTL         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
	BatchSize       int
}

// AccrualScheduler triggers accrual runs. At most one run is in flight per
// process, and the distributed lock keeps other replicas out.
type AccrualScheduler struct {
	runner  AccrualRunner
	locks   *lock.Manager
	clock   port.Clock
	logger  *slog.Logger
	rule    *rrule.RRule
	cfg     Config
	running atomic.Bool
}

// New parses cfg.Rule anchored at the current time. locks may be nil, in
// which case only in-process overlap is prevented.
func New(cfg Config, runner AccrualRunner, locks *lock.Manager, clock port.Clock, logger *slog.Logger) (*AccrualScheduler, error) {
	opt, err := rrule.StrToROption(cfg.Rule)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse rule %q: %w", cfg.Rule, err)
	}
	opt.Dtstart = clock.Now().UTC().Truncate(time.Second)
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("scheduler: build rule %q: %w", cfg.Rule, err)
	}

	if cfg.LockKey == "" {
		cfg.LockKey = DefaultLockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}

	return &AccrualScheduler{
		runner: runner,
		locks:  locks,
		clock:  clock,
		logger: logger,
		rule:   rule,
		cfg:    cfg,
	}, nil
}

// Next returns the first occurrence strictly after t, or the zero time when
// the rule is exhausted.
func (s *AccrualScheduler) Next(t time.Time) time.Time {
	return s.rule.After(t, false)
}

// Run fires a tick at every occurrence until ctx is cancelled or the rule
// runs out. Ticks run in the background so a slow run never shifts the
// cadence; an overlapping tick is skipped.
func (s *AccrualScheduler) Run(ctx context.Context) error {
	s.logger.Info("accrual scheduler starting", "rule", s.cfg.Rule)
	for {
		now := s.clock.Now()
		next := s.Next(now)
		if next.IsZero() {
			s.logger.Warn("accrual rule has no further occurrences")
			return nil
		}
		s.logger.Debug("next accrual run", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("accrual scheduler stopping")
			return nil
		case <-timer.C:
			go func() {
				if _, _, err := s.Tick(ctx); err != nil {
					s.logger.ErrorContext(ctx, "accrual run failed", "error", err)
				}
			}()
		}
	}
}

// Tick performs one accrual run. ran is false when another run held the
// in-process guard or the distributed lock.
func (s *AccrualScheduler) Tick(ctx context.Context) (resp dto.RunAccrualResponse, ran bool, err error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.InfoContext(ctx, "accrual run already in progress, skipping tick")
		return resp, false, nil
	}
	defer s.running.Store(false)

	if s.locks != nil {
		handle, ok, err := s.locks.TryAcquire(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			return resp, false, fmt.Errorf("scheduler: %w", err)
		}
		if !ok {
			s.logger.InfoContext(ctx, "accrual running on another replica, skipping tick")
			return resp, false, nil
		}
		defer func() {
			if relErr := handle.Release(context.WithoutCancel(ctx)); relErr != nil {
				s.logger.WarnContext(ctx, "failed to release accrual lock", "error", relErr)
			}
		}()
	}

	// Retries reuse the same as-of date so a run interrupted around midnight
	// does not split across two days.
	req := dto.RunLateInterestAccrualRequest{AsOf: s.clock.Now(), BatchSize: s.cfg.BatchSize}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.InitialInterval
	eb.MaxInterval = s.cfg.MaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, s.cfg.MaxRetries), ctx)

	op := func() error {
		var runErr error
		resp, runErr = s.runner.Execute(ctx, req)
		if runErr == nil {
			return nil
		}
		if model.IsFatal(runErr) || model.IsLogical(runErr) {
			return backoff.Permanent(runErr)
		}
		return runErr
	}
	notify := func(err error, wait time.Duration) {
		s.logger.WarnContext(ctx, "accrual run failed, retrying", "error", err, "retry_in", wait)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		if model.IsFatal(err) {
			s.logger.ErrorContext(ctx, "accrual halted on corrupted ledger state",
				"operator_alert", true,
				"as_of", req.AsOf,
				"error", err,
			)
		}
		return resp, true, fmt.Errorf("scheduler: accrual run: %w", err)
	}

	s.logger.InfoContext(ctx, "accrual run complete",
		"as_of", req.AsOf,
		"processed", resp.Processed,
		"mutated", resp.Mutated,
		"interest_added", resp.InterestAdded.StringFixed(2),
		"failures", len(resp.Failures),
	)
	return resp, true, nil
}
