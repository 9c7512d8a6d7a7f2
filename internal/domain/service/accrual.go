package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/pkg/money"
)

var hundred = decimal.NewFromInt(100)

// ---------------------------------------------------------------------------
// LateInterestAccrualProcessor – domain service for late-interest accrual
// ---------------------------------------------------------------------------

// LateInterestAccrualProcessor charges simple late interest on overdue
// installments.
type LateInterestAccrualProcessor struct{}

// NewLateInterestAccrualProcessor returns a new processor instance.
func NewLateInterestAccrualProcessor() *LateInterestAccrualProcessor {
	return &LateInterestAccrualProcessor{}
}

// AccrueOverdue charges late interest for every open installment whose due
// date's UTC calendar day lies before asOf's:
//
//	windowStart = max(dueDate, lastAccrualDate)
//	days        = whole UTC days from windowStart to asOf
//	unpaid      = base outstanding + arrears outstanding
//	interest    = round2(unpaid × lateRate/100 × days / referencePeriodDays + residue)
//
// The cursor moves by whole days only, and the unrounded remainder of each
// charge is kept as the installment's residue, so splitting a window over
// several runs charges the same as one run over the whole window. Late
// interest is never charged on late interest.
//
// An installment still open when the next installment is overdue as of asOf
// is accrued up to that due date and then rolled over: its unpaid principal
// becomes the next installment's arrears and its unpaid late interest moves
// along with it. The last installment is never rolled over.
//
// An asOf earlier than an installment's cursor is recorded as skipped with
// ErrAccrualWindowInvalid. The result is NoOp, and the plan returned as
// given, when nothing changed.
func (p *LateInterestAccrualProcessor) AccrueOverdue(
	plan model.Plan,
	asOf time.Time,
) (model.Plan, model.AccrualResult, error) {
	if !plan.Status().AcceptsPayments() || plan.ReferencePeriodDays() <= 0 {
		return plan, model.AccrualResult{NoOp: true}, nil
	}

	asOf = asOf.UTC()
	installments := plan.Installments()
	divisor := hundred.Mul(decimal.NewFromInt(int64(plan.ReferencePeriodDays())))
	rate := plan.LateInterestRate()

	var result model.AccrualResult
	mutated := false

	for idx := range installments {
		inst := installments[idx]
		if inst.Status().IsSettled() || !inst.IsLateOn(asOf) {
			continue
		}

		cursor := inst.LastAccrualDate()
		if !cursor.IsZero() && asOf.Before(cursor) {
			result.Skipped = append(result.Skipped, model.SkippedAccrual{
				InstallmentID: inst.ID(),
				Number:        inst.Number(),
				Reason: &model.LedgerError{
					Kind:           model.ErrAccrualWindowInvalid,
					PlanID:         plan.ID(),
					InstallmentIDs: []string{inst.ID()},
					Detail:         "as of " + asOf.Format(time.RFC3339) + " precedes cursor " + cursor.UTC().Format(time.RFC3339),
				},
			})
			continue
		}

		successor := idx + 1
		rollOver := successor < len(installments) &&
			!installments[successor].Status().IsSettled() &&
			installments[successor].IsLateOn(asOf) &&
			inst.Outstanding().IsPositive()

		windowStart := inst.DueDate()
		if cursor.After(windowStart) {
			windowStart = cursor
		}
		windowEnd := asOf
		if rollOver {
			windowEnd = installments[successor].DueDate()
		}

		accrued := inst.MarkOverdue()
		days := wholeDays(windowStart, windowEnd)
		unpaid := inst.BaseOutstanding().Add(inst.ArrearsOutstanding())
		interest := decimal.Zero

		if days > 0 && unpaid.IsPositive() && rate.IsPositive() {
			exact := unpaid.Mul(rate).Mul(decimal.NewFromInt(int64(days))).Div(divisor).Add(inst.AccrualResidue())
			interest = money.FloorAtZero(money.Round(exact))
			// A window that charges nothing stays open for the next run.
			if interest.IsPositive() || rollOver {
				accrued = accrued.AccrueLateInterest(interest, exact.Sub(interest), windowStart.Add(time.Duration(days)*day))
			}
		}

		if interest.IsPositive() || !accrued.Status().Equal(inst.Status()) {
			mutated = true
			result.Accruals = append(result.Accruals, model.InstallmentAccrual{
				InstallmentID: inst.ID(),
				Number:        inst.Number(),
				OverdueDays:   days,
				UnpaidBase:    unpaid,
				InterestAdded: interest,
				NewStatus:     accrued.Status(),
			})
		}

		if rollOver {
			residue := accrued.AccrualResidue()
			closed := accrued.RollOver()
			installments[successor] = installments[successor].TakeOver(
				closed.PrincipalRolledOver(), closed.InterestRolledOver(), residue,
			)
			accrued = closed
			mutated = true
			result.RollOvers = append(result.RollOvers, model.InstallmentRollOver{
				FromInstallmentID: inst.ID(),
				FromNumber:        inst.Number(),
				ToInstallmentID:   installments[successor].ID(),
				ToNumber:          installments[successor].Number(),
				Principal:         closed.PrincipalRolledOver(),
				LateInterest:      closed.InterestRolledOver(),
			})
		}

		installments[idx] = accrued
	}

	if !mutated {
		result.NoOp = true
		return plan, result, nil
	}

	next, err := plan.ApplyAccrual(installments, asOf)
	if err != nil {
		return plan, result, err
	}
	return next, result, nil
}

const day = 24 * time.Hour

// wholeDays counts complete UTC days from from to to; zero when to is not
// after from.
func wholeDays(from, to time.Time) int {
	elapsed := to.Sub(from)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / day)
}
