package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
	"github.com/bibbank/bnpl/internal/domain/service"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

// CreatePlanUseCase finances an order with a new installment plan.
type CreatePlanUseCase struct {
	store    port.LedgerStore
	snapshot *service.SnapshotBuilder
	clock    port.Clock
}

// NewCreatePlanUseCase wires dependencies.
func NewCreatePlanUseCase(
	store port.LedgerStore,
	snapshot *service.SnapshotBuilder,
	clock port.Clock,
) *CreatePlanUseCase {
	return &CreatePlanUseCase{store: store, snapshot: snapshot, clock: clock}
}

// Execute computes the schedule and persists the plan, its INITIAL snapshot
// and its events in one unit.
func (uc *CreatePlanUseCase) Execute(
	ctx context.Context,
	req dto.CreatePlanRequest,
) (resp dto.PlanResponse, err error) {
	ctx, span := startSpan(ctx, "CreatePlan",
		attribute.String("tenant_id", req.TenantID),
		attribute.String("order_id", req.OrderID),
	)
	defer func() { endSpan(span, err) }()

	now := uc.clock.Now()
	start := req.StartDate
	if start.IsZero() {
		start = now
	}

	err = uc.store.Atomic(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		// 1. Load the plan type.
		pt, err := tx.FindPlanType(ctx, req.PlanTypeID)
		if err != nil {
			return fmt.Errorf("find plan type: %w", err)
		}

		// 2. Compute and lay out the plan.
		plan, err := model.NewPlan(
			req.TenantID, req.OrderID, pt,
			req.OrderTotal, req.InitialPayment, req.InstallmentCount,
			start, now,
		)
		if err != nil {
			return fmt.Errorf("new plan: %w", err)
		}
		if req.ActivateImmediately {
			if plan, err = plan.Activate(now); err != nil {
				return fmt.Errorf("activate plan: %w", err)
			}
		}
		if err := service.CheckInvariants(plan); err != nil {
			return fmt.Errorf("check invariants: %w", err)
		}

		// 3. Persist plan, snapshot and events.
		if err := tx.InsertPlan(ctx, plan); err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}
		if _, err := appendSnapshot(ctx, tx, uc.snapshot, plan, valueobject.SnapshotReasonInitial, now); err != nil {
			return err
		}
		if err := tx.EnqueueEvents(ctx, plan.DomainEvents()...); err != nil {
			return fmt.Errorf("enqueue events: %w", err)
		}

		resp = toPlanResponse(plan)
		return nil
	})
	if err != nil {
		return dto.PlanResponse{}, err
	}
	span.SetAttributes(attribute.String("plan_id", resp.ID))
	return resp, nil
}
