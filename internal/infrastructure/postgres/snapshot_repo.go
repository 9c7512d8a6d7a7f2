package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
)

const selectSnapshot = `
	SELECT id, plan_id, reason, canonical_state, content_hash, created_at
	FROM settlement_snapshots`

var _ port.SnapshotReader = (*SnapshotRepo)(nil)

// SnapshotRepo reads the append-only snapshot log.
type SnapshotRepo struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepo creates a new PostgreSQL-backed snapshot reader.
func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

// ListByPlan returns the plan's snapshots in append order.
func (r *SnapshotRepo) ListByPlan(ctx context.Context, planID string) ([]model.SettlementSnapshot, error) {
	rows, err := r.pool.Query(ctx, selectSnapshot+` WHERE plan_id = $1 ORDER BY seq`, planID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.SettlementSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Latest returns the newest snapshot, or a zero snapshot when none exists.
func (r *SnapshotRepo) Latest(ctx context.Context, planID string) (model.SettlementSnapshot, error) {
	return latestSnapshot(ctx, r.pool, planID)
}
