package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
)

const selectPlanType = `
	SELECT id, name, duration_days, interest_rate, late_interest_rate, description, created_at
	FROM plan_types`

var _ port.PlanTypeRepository = (*PlanTypeRepo)(nil)

// PlanTypeRepo implements port.PlanTypeRepository.
type PlanTypeRepo struct {
	pool *pgxpool.Pool
}

// NewPlanTypeRepo creates a new PostgreSQL-backed plan type catalog.
func NewPlanTypeRepo(pool *pgxpool.Pool) *PlanTypeRepo {
	return &PlanTypeRepo{pool: pool}
}

// Save inserts or updates a plan type.
func (r *PlanTypeRepo) Save(ctx context.Context, pt model.PlanType) error {
	query := `
		INSERT INTO plan_types (id, name, duration_days, interest_rate, late_interest_rate, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name               = EXCLUDED.name,
			duration_days      = EXCLUDED.duration_days,
			interest_rate      = EXCLUDED.interest_rate,
			late_interest_rate = EXCLUDED.late_interest_rate,
			description        = EXCLUDED.description
	`
	_, err := r.pool.Exec(ctx, query,
		pt.ID(), pt.Name(), pt.DurationDays(),
		pt.InterestRate(), pt.LateInterestRate(),
		pt.Description(), pt.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("save plan type: %w", err)
	}
	return nil
}

// FindByID retrieves a plan type.
func (r *PlanTypeRepo) FindByID(ctx context.Context, id string) (model.PlanType, error) {
	return scanPlanType(r.pool.QueryRow(ctx, selectPlanType+` WHERE id = $1`, id))
}

// List returns the catalog ordered by name.
func (r *PlanTypeRepo) List(ctx context.Context) ([]model.PlanType, error) {
	rows, err := r.pool.Query(ctx, selectPlanType+` ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query plan types: %w", err)
	}
	defer rows.Close()

	var out []model.PlanType
	for rows.Next() {
		pt, err := scanPlanType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}
