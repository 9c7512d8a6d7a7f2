package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
	"github.com/bibbank/bnpl/internal/domain/service"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

// ApplyPaymentUseCase allocates an incoming payment across a plan.
type ApplyPaymentUseCase struct {
	store     port.LedgerStore
	allocator *service.PaymentAllocator
	snapshot  *service.SnapshotBuilder
	clock     port.Clock
	logger    *slog.Logger
}

// NewApplyPaymentUseCase wires dependencies.
func NewApplyPaymentUseCase(
	store port.LedgerStore,
	allocator *service.PaymentAllocator,
	snapshot *service.SnapshotBuilder,
	clock port.Clock,
	logger *slog.Logger,
) *ApplyPaymentUseCase {
	return &ApplyPaymentUseCase{
		store:     store,
		allocator: allocator,
		snapshot:  snapshot,
		clock:     clock,
		logger:    logger,
	}
}

// Execute runs the allocation cascade under the plan lock. The plan, its
// receipt, the AFTER_PAYMENT snapshot and the events commit together; an
// over-allocation or invariant failure leaves the ledger untouched.
//
// Once started the allocation is not cancelled by the caller.
func (uc *ApplyPaymentUseCase) Execute(
	ctx context.Context,
	req dto.ApplyPaymentRequest,
) (resp dto.PaymentResponse, err error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := startSpan(ctx, "ApplyPayment",
		attribute.String("tenant_id", req.TenantID),
		attribute.String("plan_id", req.PlanID),
		attribute.String("amount", req.Amount.String()),
	)
	defer func() { endSpan(span, err) }()

	now := uc.clock.Now()
	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}
	token := req.IdempotencyToken
	if token == "" {
		token = uuid.NewString()
	}

	err = uc.store.Atomic(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		// 1. Lock the plan.
		plan, err := tx.LoadPlanForUpdate(ctx, req.TenantID, req.PlanID)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}

		// 2. Run the cascade.
		next, result, err := uc.allocator.Allocate(plan, req.Amount, paymentDate)
		if err != nil {
			return fmt.Errorf("allocate payment: %w", err)
		}
		if err := service.CheckInvariants(next); err != nil {
			return fmt.Errorf("check invariants: %w", err)
		}

		// 3. Record the receipt first so a replayed token aborts the unit.
		if err := tx.RecordPayment(ctx, model.PaymentReceipt{
			PlanID:           next.ID(),
			IdempotencyToken: token,
			Amount:           req.Amount,
			PaymentDate:      paymentDate,
			AppliedAt:        now,
			Result:           result,
		}); err != nil {
			return fmt.Errorf("record payment: %w", err)
		}

		// 4. Persist plan, snapshot and events.
		if err := tx.SavePlan(ctx, next); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
		hash, err := appendSnapshot(ctx, tx, uc.snapshot, next, valueobject.SnapshotReasonAfterPayment, now)
		if err != nil {
			return err
		}
		if err := tx.EnqueueEvents(ctx, next.DomainEvents()...); err != nil {
			return fmt.Errorf("enqueue events: %w", err)
		}

		resp = dto.PaymentResponse{
			PlanID:           next.ID(),
			PlanStatus:       next.Status().String(),
			SnapshotHash:     hash,
			Amount:           req.Amount,
			Applied:          result.TotalApplied(),
			RemainingBalance: next.RemainingBalance(),
			Breakdown:        toAllocationLines(result),
		}
		return nil
	})
	if err != nil {
		reportFatal(ctx, uc.logger, req.TenantID, req.PlanID, err)
		return dto.PaymentResponse{}, err
	}

	addInt(ctx, metrics().paymentsApplied, 1, attribute.String("plan_status", resp.PlanStatus))
	addFloat(ctx, metrics().amountApplied, resp.Applied.InexactFloat64())
	return resp, nil
}
