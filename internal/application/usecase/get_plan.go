package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
)

// GetPlanUseCase retrieves a plan with its installments.
type GetPlanUseCase struct {
	reader port.PlanReader
}

// NewGetPlanUseCase wires dependencies.
func NewGetPlanUseCase(reader port.PlanReader) *GetPlanUseCase {
	return &GetPlanUseCase{reader: reader}
}

// Execute looks the plan up by ID, falling back to the order ID.
func (uc *GetPlanUseCase) Execute(ctx context.Context, req dto.GetPlanRequest) (dto.PlanResponse, error) {
	var (
		plan model.Plan
		err  error
	)
	switch {
	case req.PlanID != "":
		plan, err = uc.reader.FindByID(ctx, req.TenantID, req.PlanID)
	case req.OrderID != "":
		plan, err = uc.reader.FindByOrderID(ctx, req.TenantID, req.OrderID)
	default:
		return dto.PlanResponse{}, fmt.Errorf("plan ID or order ID is required: %w", model.ErrPlanNotFound)
	}
	if err != nil {
		return dto.PlanResponse{}, fmt.Errorf("find plan: %w", err)
	}

	return toPlanResponse(plan), nil
}
