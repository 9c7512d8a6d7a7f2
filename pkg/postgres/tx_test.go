package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	txs      []*fakeTx
	beginErr error
}

func (b *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	tx := &fakeTx{}
	b.txs = append(b.txs, tx)
	return tx, nil
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: true},
		{name: "lock not available", err: &pgconn.PgError{Code: "55P03"}, want: true},
		{name: "wrapped serialization failure", err: fmt.Errorf("save plan: %w", &pgconn.PgError{Code: "40001"}), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithTransaction(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db := &fakeBeginner{}
		err := WithTransaction(context.Background(), db, func(pgx.Tx) error { return nil })
		require.NoError(t, err)
		require.Len(t, db.txs, 1)
		assert.True(t, db.txs[0].committed)
		assert.False(t, db.txs[0].rolledBack)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db := &fakeBeginner{}
		cause := errors.New("invariant broken")
		err := WithTransaction(context.Background(), db, func(pgx.Tx) error { return cause })
		require.ErrorIs(t, err, cause)
		assert.True(t, db.txs[0].rolledBack)
		assert.False(t, db.txs[0].committed)
	})

	t.Run("begin failure", func(t *testing.T) {
		db := &fakeBeginner{beginErr: errors.New("pool closed")}
		err := WithTransaction(context.Background(), db, func(pgx.Tx) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "begin tx")
	})
}

func TestWithRetryingTransaction(t *testing.T) {
	t.Run("retries contention and then succeeds", func(t *testing.T) {
		db := &fakeBeginner{}
		calls := 0
		err := WithRetryingTransaction(context.Background(), db, fastPolicy(), func(pgx.Tx) error {
			calls++
			if calls < 3 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		require.Len(t, db.txs, 3)
		assert.True(t, db.txs[0].rolledBack)
		assert.True(t, db.txs[2].committed)
	})

	t.Run("does not retry logical errors", func(t *testing.T) {
		db := &fakeBeginner{}
		cause := errors.New("over-allocation")
		calls := 0
		err := WithRetryingTransaction(context.Background(), db, fastPolicy(), func(pgx.Tx) error {
			calls++
			return cause
		})
		require.ErrorIs(t, err, cause)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after the retry bound", func(t *testing.T) {
		db := &fakeBeginner{}
		calls := 0
		err := WithRetryingTransaction(context.Background(), db, fastPolicy(), func(pgx.Tx) error {
			calls++
			return &pgconn.PgError{Code: "40P01"}
		})
		require.Error(t, err)
		assert.True(t, IsRetryable(err))
		assert.Equal(t, 4, calls)
	})
}
