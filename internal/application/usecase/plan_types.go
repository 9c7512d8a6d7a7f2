package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
)

// CreatePlanTypeUseCase adds an entry to the plan type catalog.
type CreatePlanTypeUseCase struct {
	repo  port.PlanTypeRepository
	clock port.Clock
}

// NewCreatePlanTypeUseCase wires dependencies.
func NewCreatePlanTypeUseCase(repo port.PlanTypeRepository, clock port.Clock) *CreatePlanTypeUseCase {
	return &CreatePlanTypeUseCase{repo: repo, clock: clock}
}

// Execute validates and persists a new plan type.
func (uc *CreatePlanTypeUseCase) Execute(
	ctx context.Context,
	req dto.CreatePlanTypeRequest,
) (dto.PlanTypeResponse, error) {
	pt, err := model.NewPlanType(
		req.Name, req.DurationDays,
		req.InterestRate, req.LateInterestRate,
		req.Description, uc.clock.Now(),
	)
	if err != nil {
		return dto.PlanTypeResponse{}, fmt.Errorf("create plan type: %w", err)
	}

	if err := uc.repo.Save(ctx, pt); err != nil {
		return dto.PlanTypeResponse{}, fmt.Errorf("save plan type: %w", err)
	}

	return toPlanTypeResponse(pt), nil
}

// ListPlanTypesUseCase lists the plan type catalog.
type ListPlanTypesUseCase struct {
	repo port.PlanTypeRepository
}

// NewListPlanTypesUseCase wires dependencies.
func NewListPlanTypesUseCase(repo port.PlanTypeRepository) *ListPlanTypesUseCase {
	return &ListPlanTypesUseCase{repo: repo}
}

// Execute returns every plan type.
func (uc *ListPlanTypesUseCase) Execute(ctx context.Context) (dto.ListPlanTypesResponse, error) {
	types, err := uc.repo.List(ctx)
	if err != nil {
		return dto.ListPlanTypesResponse{}, fmt.Errorf("list plan types: %w", err)
	}

	out := make([]dto.PlanTypeResponse, 0, len(types))
	for _, pt := range types {
		out = append(out, toPlanTypeResponse(pt))
	}
	return dto.ListPlanTypesResponse{PlanTypes: out}, nil
}

// QuotePlanUseCase prices a prospective plan without persisting anything.
type QuotePlanUseCase struct {
	repo  port.PlanTypeRepository
	clock port.Clock
}

// NewQuotePlanUseCase wires dependencies.
func NewQuotePlanUseCase(repo port.PlanTypeRepository, clock port.Clock) *QuotePlanUseCase {
	return &QuotePlanUseCase{repo: repo, clock: clock}
}

// Execute computes the amortization and schedule for the request.
func (uc *QuotePlanUseCase) Execute(
	ctx context.Context,
	req dto.QuotePlanRequest,
) (dto.QuoteResponse, error) {
	pt, err := uc.repo.FindByID(ctx, req.PlanTypeID)
	if err != nil {
		return dto.QuoteResponse{}, fmt.Errorf("find plan type: %w", err)
	}

	quote, err := model.ComputePlan(&pt, req.OrderTotal, req.InitialPayment, req.InstallmentCount)
	if err != nil {
		return dto.QuoteResponse{}, fmt.Errorf("compute plan: %w", err)
	}

	start := req.StartDate
	if start.IsZero() {
		start = uc.clock.Now()
	}
	schedule, err := model.BuildSchedule(quote, start, pt.DurationDays())
	if err != nil {
		return dto.QuoteResponse{}, fmt.Errorf("build schedule: %w", err)
	}

	rows := make([]dto.ScheduleEntryResponse, 0, len(schedule))
	for _, row := range schedule {
		rows = append(rows, dto.ScheduleEntryResponse{Number: row.Number, DueDate: row.DueDate, Amount: row.Amount})
	}

	return dto.QuoteResponse{
		RemainingPrincipal:     quote.RemainingPrincipal,
		TotalInterest:          quote.TotalInterest,
		TotalPayable:           quote.TotalPayable,
		AmountPerInstallment:   quote.AmountPerInstallment,
		FinalInstallmentAmount: quote.FinalInstallmentAmount,
		InstallmentCount:       quote.InstallmentCount,
		Schedule:               rows,
	}, nil
}
