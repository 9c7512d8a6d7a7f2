package usecase

import (
	"time"

	"github.com/bibbank/bnpl/internal/application/dto"
	"github.com/bibbank/bnpl/internal/domain/model"
)

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toPlanTypeResponse(pt model.PlanType) dto.PlanTypeResponse {
	return dto.PlanTypeResponse{
		ID:               pt.ID(),
		Name:             pt.Name(),
		DurationDays:     pt.DurationDays(),
		InterestRate:     pt.InterestRate(),
		LateInterestRate: pt.LateInterestRate(),
		Description:      pt.Description(),
		CreatedAt:        pt.CreatedAt(),
	}
}

func toPlanResponse(plan model.Plan) dto.PlanResponse {
	insts := plan.Installments()
	out := make([]dto.InstallmentResponse, 0, len(insts))
	for _, inst := range insts {
		out = append(out, dto.InstallmentResponse{
			ID:                  inst.ID(),
			Number:              inst.Number(),
			DueDate:             inst.DueDate(),
			Status:              inst.Status().String(),
			BaseAmount:          inst.BaseAmount(),
			ArrearsCarried:      inst.ArrearsCarried(),
			OverPaymentCarried:  inst.OverPaymentCarried(),
			LateInterest:        inst.LateInterest(),
			PrincipalRolledOver: inst.PrincipalRolledOver(),
			InterestRolledOver:  inst.InterestRolledOver(),
			TotalDue:            inst.TotalDue(),
			AmountPaid:          inst.AmountPaid(),
			Outstanding:         inst.Outstanding(),
			LastPaymentDate:     optionalTime(inst.LastPaymentDate()),
			LastAccrualDate:     optionalTime(inst.LastAccrualDate()),
			RefundDate:          optionalTime(inst.RefundDate()),
		})
	}

	return dto.PlanResponse{
		ID:                   plan.ID(),
		TenantID:             plan.TenantID(),
		OrderID:              plan.OrderID(),
		PlanTypeID:           plan.PlanTypeID(),
		Status:               plan.Status().String(),
		OrderTotal:           plan.OrderTotal(),
		InitialPayment:       plan.InitialPayment(),
		InstallmentCount:     plan.InstallmentCount(),
		AmountPerInstallment: plan.AmountPerInstallment(),
		TotalPayable:         plan.TotalPayable(),
		TotalInterest:        plan.TotalInterest(),
		InterestRate:         plan.InterestRate(),
		LateInterestRate:     plan.LateInterestRate(),
		RemainingBalance:     plan.RemainingBalance(),
		StartDate:            plan.StartDate(),
		NextDueDate:          optionalTime(plan.NextDueDate()),
		Installments:         out,
		Version:              plan.Version(),
		CreatedAt:            plan.CreatedAt(),
		UpdatedAt:            plan.UpdatedAt(),
	}
}

func toAllocationLines(result model.AllocationResult) []dto.AllocationLineResponse {
	lines := make([]dto.AllocationLineResponse, 0, len(result.Breakdown))
	for _, b := range result.Breakdown {
		lines = append(lines, dto.AllocationLineResponse{
			InstallmentID:         b.InstallmentID,
			Number:                b.Number,
			AppliedToArrears:      b.AppliedToArrears,
			AppliedToLateInterest: b.AppliedToLateInterest,
			AppliedToBase:         b.AppliedToBase,
			OverPayment:           b.OverPayment,
			NewStatus:             b.NewStatus.String(),
		})
	}
	return lines
}

func toAccrualResponse(plan model.Plan, result model.AccrualResult, asOf time.Time) dto.AccrualResponse {
	lines := make([]dto.AccrualLineResponse, 0, len(result.Accruals))
	for _, a := range result.Accruals {
		lines = append(lines, dto.AccrualLineResponse{
			InstallmentID: a.InstallmentID,
			Number:        a.Number,
			OverdueDays:   a.OverdueDays,
			UnpaidBase:    a.UnpaidBase,
			InterestAdded: a.InterestAdded,
			NewStatus:     a.NewStatus.String(),
		})
	}
	var rolled []dto.RollOverResponse
	for _, r := range result.RollOvers {
		rolled = append(rolled, dto.RollOverResponse{
			FromNumber:   r.FromNumber,
			ToNumber:     r.ToNumber,
			Principal:    r.Principal,
			LateInterest: r.LateInterest,
		})
	}
	var skipped []int
	for _, s := range result.Skipped {
		skipped = append(skipped, s.Number)
	}

	return dto.AccrualResponse{
		PlanID:           plan.ID(),
		AsOf:             asOf,
		InterestAdded:    result.TotalInterest(),
		RemainingBalance: plan.RemainingBalance(),
		Accruals:         lines,
		RollOvers:        rolled,
		SkippedNumbers:   skipped,
		NoOp:             result.NoOp,
	}
}

func toSnapshotResponse(s model.SettlementSnapshot) dto.SnapshotResponse {
	return dto.SnapshotResponse{
		SnapshotID:     s.ID(),
		PlanID:         s.PlanID(),
		Reason:         s.Reason().String(),
		CanonicalState: s.CanonicalState(),
		ContentHash:    s.ContentHash(),
		CreatedAt:      s.CreatedAt(),
	}
}
