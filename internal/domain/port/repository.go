package port

import (
	"context"
	"time"

	"github.com/bibbank/bnpl/internal/domain/event"
	"github.com/bibbank/bnpl/internal/domain/model"
)

// ---------------------------------------------------------------------------
// Unit of work (driven/secondary adapter)
// ---------------------------------------------------------------------------

// LedgerStore runs a function as one atomic unit. Everything written through
// the LedgerTx commits together or not at all, and a plan loaded for update
// stays locked against other mutators until the unit ends.
type LedgerStore interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the transactional view of the ledger handed to Atomic.
type LedgerTx interface {
	LoadPlanForUpdate(ctx context.Context, tenantID, planID string) (model.Plan, error)
	InsertPlan(ctx context.Context, plan model.Plan) error
	// SavePlan writes plan and its installments, failing with
	// model.ErrConcurrentModification when the stored version moved on.
	SavePlan(ctx context.Context, plan model.Plan) error
	FindPlanType(ctx context.Context, planTypeID string) (model.PlanType, error)
	// LatestSnapshot returns a zero snapshot when the plan has none.
	LatestSnapshot(ctx context.Context, planID string) (model.SettlementSnapshot, error)
	AppendSnapshot(ctx context.Context, snapshot model.SettlementSnapshot) error
	// RecordPayment fails with model.ErrDuplicatePayment when the
	// idempotency token was already used on the plan.
	RecordPayment(ctx context.Context, receipt model.PaymentReceipt) error
	EnqueueEvents(ctx context.Context, events ...event.DomainEvent) error
}

// ---------------------------------------------------------------------------
// Read-side ports
// ---------------------------------------------------------------------------

// PlanReader reads committed plan state.
type PlanReader interface {
	FindByID(ctx context.Context, tenantID, planID string) (model.Plan, error)
	FindByOrderID(ctx context.Context, tenantID, orderID string) (model.Plan, error)
	// ListOverduePlanIDs pages through plans accepting payments that hold an
	// open installment due before asOf, ordered by plan ID and starting after
	// afterPlanID.
	ListOverduePlanIDs(ctx context.Context, asOf time.Time, afterPlanID string, limit int) ([]PlanRef, error)
}

// PlanRef identifies a plan across tenants.
type PlanRef struct {
	TenantID string
	PlanID   string
}

// PlanTypeRepository persists the plan type catalog.
type PlanTypeRepository interface {
	Save(ctx context.Context, planType model.PlanType) error
	FindByID(ctx context.Context, id string) (model.PlanType, error)
	List(ctx context.Context) ([]model.PlanType, error)
}

// SnapshotReader reads the append-only snapshot log.
type SnapshotReader interface {
	ListByPlan(ctx context.Context, planID string) ([]model.SettlementSnapshot, error)
	Latest(ctx context.Context, planID string) (model.SettlementSnapshot, error)
}

// ---------------------------------------------------------------------------
// Time
// ---------------------------------------------------------------------------

// Clock supplies the current instant. The domain never reads ambient time.
type Clock interface {
	Now() time.Time
}
