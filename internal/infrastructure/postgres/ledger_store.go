package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibbank/bnpl/internal/domain/event"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
	"github.com/bibbank/bnpl/pkg/events"
	pgutil "github.com/bibbank/bnpl/pkg/postgres"
)

var _ port.LedgerStore = (*LedgerStore)(nil)

// LedgerStore implements port.LedgerStore on a pgx transaction. Contention
// failures re-run the whole unit from a fresh transaction.
type LedgerStore struct {
	pool   *pgxpool.Pool
	policy pgutil.RetryPolicy
}

// NewLedgerStore creates a PostgreSQL-backed unit of work.
func NewLedgerStore(pool *pgxpool.Pool, policy pgutil.RetryPolicy) *LedgerStore {
	return &LedgerStore{pool: pool, policy: policy}
}

// Atomic runs fn inside one transaction.
func (s *LedgerStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	return pgutil.WithRetryingTransaction(ctx, s.pool, s.policy, func(tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx pgx.Tx
}

// LoadPlanForUpdate locks the plan row until the transaction ends.
func (t *ledgerTx) LoadPlanForUpdate(ctx context.Context, tenantID, planID string) (model.Plan, error) {
	return loadPlan(ctx, t.tx, "tenant_id = $1 AND id = $2", "FOR UPDATE", tenantID, planID)
}

func (t *ledgerTx) InsertPlan(ctx context.Context, plan model.Plan) error {
	query := `INSERT INTO plans (` + planColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`
	_, err := t.tx.Exec(ctx, query,
		plan.ID(), plan.TenantID(), plan.OrderID(), plan.PlanTypeID(),
		plan.OrderTotal(), plan.InitialPayment(), plan.InstallmentCount(),
		plan.AmountPerInstallment(), plan.TotalPayable(), plan.TotalInterest(),
		plan.InterestRate(), plan.LateInterestRate(), plan.ReferencePeriodDays(),
		plan.StartDate(), nullTime(plan.NextDueDate()), plan.RemainingBalance(),
		plan.Status().String(), plan.Version(), plan.CreatedAt(), plan.UpdatedAt(),
	)
	if isUniqueViolation(err) {
		return &model.LedgerError{
			Kind:   model.ErrInvalidPlanParameters,
			PlanID: plan.ID(),
			Detail: "order " + plan.OrderID() + " already has a plan",
		}
	}
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	batch := &pgx.Batch{}
	for _, inst := range plan.Installments() {
		batch.Queue(`INSERT INTO installments (plan_id, `+installmentColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
			plan.ID(), inst.ID(), inst.Number(), inst.DueDate(),
			inst.BaseAmount(), inst.ArrearsCarried(), inst.OverPaymentCarried(), inst.LateInterest(),
			inst.ArrearsPaid(), inst.LateInterestPaid(), inst.BasePaid(),
			inst.PrincipalRolledOver(), inst.InterestRolledOver(), inst.AccrualResidue(),
			inst.Status().String(), nullTime(inst.LastPaymentDate()), nullTime(inst.LastAccrualDate()),
			nullTime(inst.RefundDate()),
		)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert installments: %w", err)
	}
	return nil
}

// SavePlan updates the plan header and every installment, bumping the
// version. A stale version yields model.ErrConcurrentModification.
func (t *ledgerTx) SavePlan(ctx context.Context, plan model.Plan) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE plans SET
			next_due_date     = $3,
			remaining_balance = $4,
			status            = $5,
			updated_at        = $6,
			version           = version + 1
		WHERE id = $1 AND version = $2`,
		plan.ID(), plan.Version(),
		nullTime(plan.NextDueDate()), plan.RemainingBalance(),
		plan.Status().String(), plan.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &model.LedgerError{Kind: model.ErrConcurrentModification, PlanID: plan.ID()}
	}

	batch := &pgx.Batch{}
	for _, inst := range plan.Installments() {
		batch.Queue(`
			UPDATE installments SET
				arrears_carried       = $2,
				over_payment_carried  = $3,
				late_interest         = $4,
				arrears_paid          = $5,
				late_interest_paid    = $6,
				base_paid             = $7,
				principal_rolled_over = $8,
				interest_rolled_over  = $9,
				accrual_residue       = $10,
				status                = $11,
				last_payment_date     = $12,
				last_accrual_date     = $13,
				refund_date           = $14
			WHERE id = $1`,
			inst.ID(),
			inst.ArrearsCarried(), inst.OverPaymentCarried(), inst.LateInterest(),
			inst.ArrearsPaid(), inst.LateInterestPaid(), inst.BasePaid(),
			inst.PrincipalRolledOver(), inst.InterestRolledOver(), inst.AccrualResidue(),
			inst.Status().String(),
			nullTime(inst.LastPaymentDate()), nullTime(inst.LastAccrualDate()), nullTime(inst.RefundDate()),
		)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("update installments: %w", err)
	}
	return nil
}

func (t *ledgerTx) FindPlanType(ctx context.Context, planTypeID string) (model.PlanType, error) {
	return scanPlanType(t.tx.QueryRow(ctx, selectPlanType+` WHERE id = $1`, planTypeID))
}

func (t *ledgerTx) LatestSnapshot(ctx context.Context, planID string) (model.SettlementSnapshot, error) {
	return latestSnapshot(ctx, t.tx, planID)
}

func (t *ledgerTx) AppendSnapshot(ctx context.Context, s model.SettlementSnapshot) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO settlement_snapshots (id, plan_id, reason, canonical_state, content_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID(), s.PlanID(), s.Reason().String(), s.CanonicalState(), s.ContentHash(), s.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// receiptLine is the stored form of one allocation line.
type receiptLine struct {
	InstallmentID string `json:"installment_id"`
	Number        int    `json:"number"`
	Arrears       string `json:"applied_to_arrears"`
	LateInterest  string `json:"applied_to_late_interest"`
	Base          string `json:"applied_to_base"`
	OverPayment   string `json:"over_payment"`
	Status        string `json:"new_status"`
}

func (t *ledgerTx) RecordPayment(ctx context.Context, r model.PaymentReceipt) error {
	lines := make([]receiptLine, 0, len(r.Result.Breakdown))
	for _, b := range r.Result.Breakdown {
		lines = append(lines, receiptLine{
			InstallmentID: b.InstallmentID,
			Number:        b.Number,
			Arrears:       b.AppliedToArrears.StringFixed(2),
			LateInterest:  b.AppliedToLateInterest.StringFixed(2),
			Base:          b.AppliedToBase.StringFixed(2),
			OverPayment:   b.OverPayment.StringFixed(2),
			Status:        b.NewStatus.String(),
		})
	}
	breakdown, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	tag, err := t.tx.Exec(ctx, `
		INSERT INTO payment_receipts (plan_id, idempotency_token, amount, payment_date, applied_at, breakdown)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (plan_id, idempotency_token) DO NOTHING`,
		r.PlanID, r.IdempotencyToken, r.Amount, r.PaymentDate, r.AppliedAt, breakdown,
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &model.LedgerError{
			Kind:   model.ErrDuplicatePayment,
			PlanID: r.PlanID,
			Detail: "idempotency token " + r.IdempotencyToken,
		}
	}
	return nil
}

// EnqueueEvents writes the events to the outbox in the same transaction.
func (t *ledgerTx) EnqueueEvents(ctx context.Context, evts ...event.DomainEvent) error {
	for _, evt := range evts {
		entry, err := events.NewOutboxEntry(evt)
		if err != nil {
			return err
		}
		_, err = t.tx.Exec(ctx, `
			INSERT INTO outbox (id, aggregate_id, aggregate_type, event_type, tenant_id, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entry.ID, entry.AggregateID, entry.AggregateType, entry.EventType,
			entry.TenantID, entry.Payload, entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}
	return nil
}

func latestSnapshot(ctx context.Context, q pgutil.Querier, planID string) (model.SettlementSnapshot, error) {
	s, err := scanSnapshot(q.QueryRow(ctx, selectSnapshot+` WHERE plan_id = $1 ORDER BY seq DESC LIMIT 1`, planID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SettlementSnapshot{}, nil
	}
	if err != nil {
		return model.SettlementSnapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return s, nil
}
