package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

// CheckInvariants validates the structural rules of a plan's ledger. Any
// violation is fatal: the returned error matches model.ErrInvariantViolation
// and names the offending installments.
func CheckInvariants(plan model.Plan) error {
	var (
		problems []string
		ids      []string
	)
	flag := func(inst model.Installment, format string, args ...any) {
		problems = append(problems, fmt.Sprintf("installment %d: ", inst.Number())+fmt.Sprintf(format, args...))
		ids = append(ids, inst.ID())
	}

	installments := plan.Installments()
	baseSum := decimal.Zero
	allSettled := len(installments) > 0

	for idx, inst := range installments {
		if inst.Number() != idx+1 {
			flag(inst, "expected number %d", idx+1)
		}
		baseSum = baseSum.Add(inst.BaseAmount())

		due := inst.TotalDue()
		paid := inst.AmountPaid()
		status := inst.Status()

		if inst.ArrearsPaid().GreaterThan(inst.ArrearsCarried()) ||
			inst.LateInterestPaid().GreaterThan(inst.LateInterest()) {
			flag(inst, "bucket paid beyond its balance")
		}
		if status.IsPaid() && paid.GreaterThan(due) {
			flag(inst, "paid %s exceeds total due %s", paid.StringFixed(2), due.StringFixed(2))
		}
		if status.IsPaid() && inst.Outstanding().IsPositive() {
			flag(inst, "status %s with %s outstanding", status, inst.Outstanding().StringFixed(2))
		}
		if status.IsPartiallyPaid() && (!paid.IsPositive() || !paid.LessThan(due)) {
			flag(inst, "status %s requires 0 < paid < due, got paid %s due %s", status, paid.StringFixed(2), due.StringFixed(2))
		}
		if inst.ArrearsCarried().IsPositive() && inst.OverPaymentCarried().IsPositive() {
			flag(inst, "carries both arrears and an overpayment credit")
		}

		if status.IsRolledOver() {
			if idx == len(installments)-1 {
				flag(inst, "last installment cannot be rolled over")
			}
			if unpaid := due.Sub(paid); !unpaid.Equal(inst.RolledOver()) {
				flag(inst, "rolled over %s but %s was unpaid", inst.RolledOver().StringFixed(2), unpaid.StringFixed(2))
			}
		}

		if idx == 0 && inst.ArrearsCarried().IsPositive() {
			flag(inst, "first installment carries arrears")
		}
		if idx > 0 {
			prevInst := installments[idx-1]
			prev := prevInst.Status()
			if inst.ArrearsCarried().IsPositive() && !prev.IsRolledOver() {
				flag(inst, "carries arrears although the previous installment is %s", prev)
			}
			if prev.IsRolledOver() && !inst.ArrearsCarried().Equal(prevInst.PrincipalRolledOver()) {
				flag(inst, "carries arrears %s but installment %d rolled over %s",
					inst.ArrearsCarried().StringFixed(2), prevInst.Number(), prevInst.PrincipalRolledOver().StringFixed(2))
			}
			if inst.OverPaymentCarried().IsPositive() && !prev.IsPaid() {
				flag(inst, "carries credit although the previous installment is %s", prev)
			}
		}

		if !status.IsSettled() {
			allSettled = false
		}
	}

	var planProblems []string
	if len(installments) > 0 && !baseSum.Equal(plan.TotalPayable()) {
		planProblems = append(planProblems, fmt.Sprintf("base amounts sum to %s, plan principal is %s",
			baseSum.StringFixed(2), plan.TotalPayable().StringFixed(2)))
	}
	completed := plan.Status().Equal(valueobject.PlanStatusCompleted)
	if completed != allSettled && !plan.Status().Equal(valueobject.PlanStatusCancelled) {
		planProblems = append(planProblems, fmt.Sprintf("plan status %s does not match installment settlement", plan.Status()))
	}
	if plan.RemainingBalance().IsNegative() {
		planProblems = append(planProblems, "remaining balance is negative: "+plan.RemainingBalance().StringFixed(2))
	}

	problems = append(planProblems, problems...)
	if len(problems) == 0 {
		return nil
	}
	return model.InvariantViolation(plan.ID(), ids, strings.Join(problems, "; "))
}
