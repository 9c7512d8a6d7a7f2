package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
	"github.com/bibbank/bnpl/internal/domain/service"
)

// TransitionPlanUseCase moves a plan through its lifecycle.
type TransitionPlanUseCase struct {
	store port.LedgerStore
	clock port.Clock
}

// NewTransitionPlanUseCase wires dependencies.
func NewTransitionPlanUseCase(store port.LedgerStore, clock port.Clock) *TransitionPlanUseCase {
	return &TransitionPlanUseCase{store: store, clock: clock}
}

// Execute applies the requested transition under the plan lock.
func (uc *TransitionPlanUseCase) Execute(
	ctx context.Context,
	req dto.TransitionPlanRequest,
) (resp dto.PlanResponse, err error) {
	ctx, span := startSpan(ctx, "TransitionPlan",
		attribute.String("plan_id", req.PlanID),
		attribute.String("transition", string(req.Transition)),
	)
	defer func() { endSpan(span, err) }()

	now := uc.clock.Now()

	err = uc.store.Atomic(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		plan, err := tx.LoadPlanForUpdate(ctx, req.TenantID, req.PlanID)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}

		var next model.Plan
		switch req.Transition {
		case dto.TransitionActivate:
			next, err = plan.Activate(now)
		case dto.TransitionCancel:
			next, err = plan.Cancel(now)
		case dto.TransitionDefault:
			next, err = plan.MarkDefaulted(now)
		case dto.TransitionRefund:
			next, err = plan.Refund(now)
		default:
			return fmt.Errorf("unknown transition %q", req.Transition)
		}
		if err != nil {
			return fmt.Errorf("%s plan: %w", req.Transition, err)
		}

		if err := service.CheckInvariants(next); err != nil {
			return fmt.Errorf("check invariants: %w", err)
		}
		if err := tx.SavePlan(ctx, next); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
		if err := tx.EnqueueEvents(ctx, next.DomainEvents()...); err != nil {
			return fmt.Errorf("enqueue events: %w", err)
		}

		resp = toPlanResponse(next)
		return nil
	})
	if err != nil {
		return dto.PlanResponse{}, err
	}
	return resp, nil
}
