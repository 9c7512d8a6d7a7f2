package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/port"
	"github.com/bibbank/bnpl/internal/domain/service"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

// AccrueLateInterestUseCase charges late interest on one plan.
type AccrueLateInterestUseCase struct {
	store     port.LedgerStore
	processor *service.LateInterestAccrualProcessor
	snapshot  *service.SnapshotBuilder
	clock     port.Clock
	logger    *slog.Logger
}

// NewAccrueLateInterestUseCase wires dependencies.
func NewAccrueLateInterestUseCase(
	store port.LedgerStore,
	processor *service.LateInterestAccrualProcessor,
	snapshot *service.SnapshotBuilder,
	clock port.Clock,
	logger *slog.Logger,
) *AccrueLateInterestUseCase {
	return &AccrueLateInterestUseCase{
		store:     store,
		processor: processor,
		snapshot:  snapshot,
		clock:     clock,
		logger:    logger,
	}
}

// Execute accrues interest up to req.AsOf, or now when unset. A run that
// changes nothing writes nothing.
func (uc *AccrueLateInterestUseCase) Execute(
	ctx context.Context,
	req dto.AccrueLateInterestRequest,
) (resp dto.AccrualResponse, err error) {
	ctx, span := startSpan(ctx, "AccrueLateInterest",
		attribute.String("tenant_id", req.TenantID),
		attribute.String("plan_id", req.PlanID),
	)
	defer func() { endSpan(span, err) }()

	now := uc.clock.Now()
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = now
	}

	err = uc.store.Atomic(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		plan, err := tx.LoadPlanForUpdate(ctx, req.TenantID, req.PlanID)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}

		next, result, err := uc.processor.AccrueOverdue(plan, asOf)
		if err != nil {
			return fmt.Errorf("accrue overdue: %w", err)
		}
		for _, skipped := range result.Skipped {
			uc.logger.WarnContext(ctx, "accrual skipped",
				"tenant_id", req.TenantID,
				"plan_id", req.PlanID,
				"installment", skipped.Number,
				"error", skipped.Reason,
			)
		}

		resp = toAccrualResponse(next, result, asOf)
		if result.NoOp {
			return nil
		}

		if err := service.CheckInvariants(next); err != nil {
			return fmt.Errorf("check invariants: %w", err)
		}
		if err := tx.SavePlan(ctx, next); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
		hash, err := appendSnapshot(ctx, tx, uc.snapshot, next, valueobject.SnapshotReasonAfterLateInterest, now)
		if err != nil {
			return err
		}
		if err := tx.EnqueueEvents(ctx, next.DomainEvents()...); err != nil {
			return fmt.Errorf("enqueue events: %w", err)
		}
		resp.SnapshotHash = hash
		return nil
	})
	if err != nil {
		reportFatal(ctx, uc.logger, req.TenantID, req.PlanID, err)
		return dto.AccrualResponse{}, err
	}

	if resp.InterestAdded.IsPositive() {
		addFloat(ctx, metrics().interestAccrued, resp.InterestAdded.InexactFloat64())
	}
	return resp, nil
}
