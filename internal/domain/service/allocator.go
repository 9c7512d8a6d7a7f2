package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/pkg/money"
)

// ---------------------------------------------------------------------------
// PaymentAllocator – domain service for the payment cascade
// ---------------------------------------------------------------------------

// PaymentAllocator spreads a payment over a plan's open installments.
type PaymentAllocator struct{}

// NewPaymentAllocator returns a new allocator instance.
func NewPaymentAllocator() *PaymentAllocator {
	return &PaymentAllocator{}
}

// Allocate applies payment to the plan's open installments in ascending
// order. Within an installment the buckets are paid in a fixed order:
//
//	1. arrears carried from earlier periods
//	2. accrued late interest
//	3. base amount, net of credit already received
//
// Money left over once an installment is fully covered is forwarded to the
// next open installment as a base credit, capped at that installment's
// remaining base, and the cascade continues there.
//
// A payment is late for an installment when the UTC calendar day of
// paymentDate is after the UTC calendar day of its due date. The time of day
// is ignored, so a payment at 23:59 UTC on the due date is on time.
//
// If money is still left after the last open installment the plan is returned
// unchanged together with the computed result and an ErrOverAllocation
// LedgerError carrying the remainder.
func (a *PaymentAllocator) Allocate(
	plan model.Plan,
	payment decimal.Decimal,
	paymentDate time.Time,
) (model.Plan, model.AllocationResult, error) {
	if !payment.IsPositive() {
		return plan, model.AllocationResult{}, &model.LedgerError{
			Kind:   model.ErrInvalidPaymentAmount,
			PlanID: plan.ID(),
			Detail: "got " + payment.String(),
		}
	}
	if !plan.Status().AcceptsPayments() {
		return plan, model.AllocationResult{}, &model.LedgerError{
			Kind:   model.ErrPlanNotPayable,
			PlanID: plan.ID(),
			Detail: "status " + plan.Status().String(),
		}
	}

	installments := plan.Installments()
	remaining := payment
	var breakdown []model.InstallmentAllocation

	for idx := range installments {
		inst := installments[idx]
		if inst.Status().IsSettled() {
			continue
		}
		// A fully credited installment still needs closing with nothing left.
		if !remaining.IsPositive() && inst.Outstanding().IsPositive() {
			break
		}

		toArrears := money.Min(remaining, inst.ArrearsOutstanding())
		remaining = remaining.Sub(toArrears)
		toInterest := money.Min(remaining, inst.LateInterestOutstanding())
		remaining = remaining.Sub(toInterest)
		toBase := money.Min(remaining, inst.BaseOutstanding())
		remaining = remaining.Sub(toBase)

		inst = inst.ApplyPayment(toArrears, toInterest, toBase, paymentDate)
		line := model.InstallmentAllocation{
			InstallmentID:         inst.ID(),
			Number:                inst.Number(),
			AppliedToArrears:      toArrears,
			AppliedToLateInterest: toInterest,
			AppliedToBase:         toBase,
			OverPayment:           decimal.Zero,
		}

		if inst.Status().IsPaid() && remaining.IsPositive() {
			if nextIdx := nextOpen(installments, idx); nextIdx >= 0 {
				credit := money.Min(remaining, installments[nextIdx].BaseOutstanding())
				if credit.IsPositive() {
					installments[nextIdx] = installments[nextIdx].ReceiveCredit(credit)
					remaining = remaining.Sub(credit)
					line.OverPayment = credit
				}
			}
		}

		line.NewStatus = inst.Status()
		installments[idx] = inst
		breakdown = append(breakdown, line)
	}

	result := model.AllocationResult{Breakdown: breakdown, Remainder: remaining}

	if remaining.IsPositive() {
		ids := make([]string, 0, len(breakdown))
		for _, line := range breakdown {
			ids = append(ids, line.InstallmentID)
		}
		return plan, result, &model.LedgerError{
			Kind:           model.ErrOverAllocation,
			PlanID:         plan.ID(),
			InstallmentIDs: ids,
			Remainder:      remaining,
		}
	}

	next, err := plan.ApplyAllocation(installments, payment, paymentDate)
	if err != nil {
		return plan, result, err
	}
	return next, result, nil
}

func nextOpen(installments []model.Installment, after int) int {
	for j := after + 1; j < len(installments); j++ {
		if !installments[j].Status().IsSettled() {
			return j
		}
	}
	return -1
}
