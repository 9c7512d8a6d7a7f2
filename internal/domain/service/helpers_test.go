package service_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time { return start.AddDate(0, 0, n) }

// activePlan is 1000.00 at 10% over four 30-day installments of 275.00,
// due 2024-01-31, 2024-03-01, 2024-03-31 and 2024-04-30.
func activePlan(t *testing.T) model.Plan {
	t.Helper()
	pt, err := model.NewPlanType("Four payments", 30, dec("10"), dec("5"), "", start)
	require.NoError(t, err)
	plan, err := model.NewPlan("tenant-1", "order-1", pt, dec("1000"), decimal.Zero, 4, start, start)
	require.NoError(t, err)
	plan, err = plan.Activate(start)
	require.NoError(t, err)
	return plan.ClearEvents()
}

type instSpec struct {
	due        time.Time
	base       string
	arrears    string
	late       string
	basePaid   string
	rolled     string
	rolledLate string
	status     valueobject.InstallmentStatus
	cursor     time.Time
}

// reconstructed builds an ACTIVE plan with 5% late interest over a 30-day
// reference period from explicit installment states.
func reconstructed(specs ...instSpec) model.Plan {
	insts := make([]model.Installment, 0, len(specs))
	base := decimal.Zero
	balance := decimal.Zero
	for i, s := range specs {
		orZero := func(v string) decimal.Decimal {
			if v == "" {
				return decimal.Zero
			}
			return dec(v)
		}
		status := s.status
		if status.IsZero() {
			status = valueobject.InstallmentStatusPending
		}
		inst := model.ReconstructInstallment(
			"inst-"+string(rune('a'+i)), i+1, s.due,
			dec(s.base), orZero(s.arrears), decimal.Zero, orZero(s.late),
			decimal.Zero, decimal.Zero, orZero(s.basePaid),
			orZero(s.rolled), orZero(s.rolledLate), decimal.Zero,
			status, time.Time{}, s.cursor, time.Time{},
		)
		insts = append(insts, inst)
		base = base.Add(inst.BaseAmount())
		balance = balance.Add(inst.Outstanding())
	}

	return model.ReconstructPlan(
		"plan-1", "tenant-1", "order-1", "pt-1",
		base, decimal.Zero, len(insts),
		insts[0].BaseAmount(), base, decimal.Zero,
		decimal.Zero, dec("5"), 30,
		start, insts[0].DueDate(), balance,
		valueobject.PlanStatusActive, insts, 1, start, start,
	)
}

// heldBalance is what the open installments still owe plus the credit they
// hold; it must always equal the plan's remaining balance.
func heldBalance(plan model.Plan) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range plan.Installments() {
		if inst.Status().IsSettled() {
			continue
		}
		total = total.Add(inst.Outstanding()).Add(inst.OverPaymentCarried())
	}
	return total
}
