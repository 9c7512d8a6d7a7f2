package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
)

var _ port.PlanReader = (*PlanRepo)(nil)

// PlanRepo implements port.PlanReader over committed state.
type PlanRepo struct {
	pool *pgxpool.Pool
}

// NewPlanRepo creates a new PostgreSQL-backed plan reader.
func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

// FindByID retrieves a plan and its installments.
func (r *PlanRepo) FindByID(ctx context.Context, tenantID, planID string) (model.Plan, error) {
	return loadPlan(ctx, r.pool, "tenant_id = $1 AND id = $2", "", tenantID, planID)
}

// FindByOrderID retrieves the plan financing an order.
func (r *PlanRepo) FindByOrderID(ctx context.Context, tenantID, orderID string) (model.Plan, error) {
	return loadPlan(ctx, r.pool, "tenant_id = $1 AND order_id = $2", "", tenantID, orderID)
}

// ListOverduePlanIDs pages through payable plans holding an open installment
// due before asOf.
func (r *PlanRepo) ListOverduePlanIDs(ctx context.Context, asOf time.Time, afterPlanID string, limit int) ([]port.PlanRef, error) {
	query := `
		SELECT p.tenant_id, p.id
		FROM plans p
		WHERE p.status IN ('ACTIVE', 'DEFAULTED')
		  AND p.id > $2
		  AND EXISTS (
			SELECT 1 FROM installments i
			WHERE i.plan_id = p.id
			  AND i.status NOT IN ('PAID_ON_TIME', 'PAID_LATE', 'REFUNDED', 'ROLLED_OVER')
			  AND i.due_date < $1
		  )
		ORDER BY p.id
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, asOf, afterPlanID, limit)
	if err != nil {
		return nil, fmt.Errorf("query overdue plans: %w", err)
	}
	defer rows.Close()

	var refs []port.PlanRef
	for rows.Next() {
		var ref port.PlanRef
		if err := rows.Scan(&ref.TenantID, &ref.PlanID); err != nil {
			return nil, fmt.Errorf("scan plan ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
