package model_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bnpl/internal/domain/event"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

var planStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newRequestedPlan(t *testing.T) model.Plan {
	t.Helper()
	pt := planTypeWith(t, "10", "5", 30)
	plan, err := model.NewPlan("tenant-1", "order-1", pt, dec("1000"), decimal.Zero, 4, planStart, planStart)
	require.NoError(t, err)
	return plan
}

func eventTypes(evts []event.DomainEvent) []string {
	out := make([]string, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.EventType())
	}
	return out
}

func TestNewPlan(t *testing.T) {
	plan := newRequestedPlan(t)

	assert.NotEmpty(t, plan.ID())
	assert.Equal(t, "tenant-1", plan.TenantID())
	assert.Equal(t, "order-1", plan.OrderID())
	assert.True(t, plan.Status().Equal(valueobject.PlanStatusRequested))
	assert.True(t, dec("1100").Equal(plan.TotalPayable()))
	assert.True(t, dec("1100").Equal(plan.RemainingBalance()))
	assert.True(t, dec("100").Equal(plan.TotalInterest()))
	assert.Equal(t, 30, plan.ReferencePeriodDays())
	assert.Equal(t, 1, plan.Version())
	assert.True(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC).Equal(plan.NextDueDate()))

	insts := plan.Installments()
	require.Len(t, insts, 4)
	for i, inst := range insts {
		assert.Equal(t, i+1, inst.Number())
		assert.True(t, dec("275").Equal(inst.TotalDue()))
		assert.True(t, inst.Status().Equal(valueobject.InstallmentStatusPending))
	}

	assert.Equal(t, []string{event.TypePlanCreated}, eventTypes(plan.DomainEvents()))
}

func TestNewPlan_Validation(t *testing.T) {
	pt := planTypeWith(t, "10", "5", 30)

	_, err := model.NewPlan("", "order-1", pt, dec("100"), decimal.Zero, 2, planStart, planStart)
	require.Error(t, err)

	_, err = model.NewPlan("tenant-1", "", pt, dec("100"), decimal.Zero, 2, planStart, planStart)
	require.Error(t, err)

	_, err = model.NewPlan("tenant-1", "order-1", pt, dec("100"), decimal.Zero, 0, planStart, planStart)
	require.ErrorIs(t, err, model.ErrInvalidPlanParameters)
}

func TestPlan_Lifecycle(t *testing.T) {
	now := planStart.Add(time.Hour)

	t.Run("activate then default", func(t *testing.T) {
		plan, err := newRequestedPlan(t).Activate(now)
		require.NoError(t, err)
		assert.True(t, plan.Status().Equal(valueobject.PlanStatusActive))

		plan, err = plan.MarkDefaulted(now)
		require.NoError(t, err)
		assert.True(t, plan.Status().Equal(valueobject.PlanStatusDefaulted))
		assert.Equal(t, []string{event.TypePlanCreated, event.TypePlanActivated, event.TypePlanDefaulted}, eventTypes(plan.DomainEvents()))
	})

	t.Run("cancel requested plan", func(t *testing.T) {
		plan, err := newRequestedPlan(t).Cancel(now)
		require.NoError(t, err)
		assert.True(t, plan.Status().Equal(valueobject.PlanStatusCancelled))
		assert.True(t, plan.NextDueDate().IsZero())
	})

	t.Run("illegal transitions", func(t *testing.T) {
		requested := newRequestedPlan(t)
		_, err := requested.MarkDefaulted(now)
		assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)
		_, err = requested.Refund(now)
		assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)

		active, err := requested.Activate(now)
		require.NoError(t, err)
		_, err = active.Activate(now)
		assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)
		_, err = active.Cancel(now)
		assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)
	})

	t.Run("transition leaves the original untouched", func(t *testing.T) {
		requested := newRequestedPlan(t)
		_, err := requested.Activate(now)
		require.NoError(t, err)
		assert.True(t, requested.Status().Equal(valueobject.PlanStatusRequested))
		assert.Len(t, requested.DomainEvents(), 1)
	})
}

func TestPlan_Refund(t *testing.T) {
	now := planStart.AddDate(0, 0, 40)
	plan, err := newRequestedPlan(t).Activate(planStart)
	require.NoError(t, err)

	insts := plan.Installments()
	insts[0] = insts[0].ApplyPayment(decimal.Zero, decimal.Zero, dec("275"), planStart.AddDate(0, 0, 10))
	plan, err = plan.ApplyAllocation(insts, dec("275"), planStart.AddDate(0, 0, 10))
	require.NoError(t, err)

	refunded, err := plan.Refund(now)
	require.NoError(t, err)

	assert.True(t, refunded.Status().Equal(valueobject.PlanStatusCompleted))
	assert.True(t, refunded.RemainingBalance().IsZero())
	assert.True(t, refunded.NextDueDate().IsZero())

	after := refunded.Installments()
	assert.True(t, after[0].Status().Equal(valueobject.InstallmentStatusPaidOnTime))
	for _, inst := range after[1:] {
		assert.True(t, inst.Status().Equal(valueobject.InstallmentStatusRefunded))
		assert.True(t, now.Equal(inst.RefundDate()))
	}

	evts := refunded.DomainEvents()
	last, ok := evts[len(evts)-1].(event.PlanRefunded)
	require.True(t, ok)
	assert.Equal(t, []int{2, 3, 4}, last.RefundedInstallments)
	assert.True(t, dec("825").Equal(last.UnpaidAmount))
}

func TestPlan_ApplyAllocation(t *testing.T) {
	paidOn := planStart.AddDate(0, 0, 5)
	plan, err := newRequestedPlan(t).Activate(planStart)
	require.NoError(t, err)

	t.Run("rejects foreign installments", func(t *testing.T) {
		_, err := plan.ApplyAllocation(plan.Installments()[:2], dec("10"), paidOn)
		require.Error(t, err)

		foreign := plan.Installments()
		foreign[1] = model.NewInstallment(2, foreign[1].DueDate(), foreign[1].BaseAmount())
		_, err = plan.ApplyAllocation(foreign, dec("10"), paidOn)
		require.Error(t, err)
	})

	t.Run("completes when every installment is paid", func(t *testing.T) {
		insts := plan.Installments()
		for i := range insts {
			insts[i] = insts[i].ApplyPayment(decimal.Zero, decimal.Zero, insts[i].BaseOutstanding(), paidOn)
		}

		paid, err := plan.ApplyAllocation(insts, dec("1100"), paidOn)
		require.NoError(t, err)
		assert.True(t, paid.Status().Equal(valueobject.PlanStatusCompleted))
		assert.True(t, paid.RemainingBalance().IsZero())
		assert.True(t, paid.NextDueDate().IsZero())

		types := eventTypes(paid.DomainEvents())
		assert.Equal(t, event.TypePaymentApplied, types[len(types)-2])
		assert.Equal(t, event.TypePlanCompleted, types[len(types)-1])
	})

	t.Run("credit is realized when the receiving installment closes", func(t *testing.T) {
		insts := plan.Installments()
		insts[0] = insts[0].ApplyPayment(decimal.Zero, decimal.Zero, dec("275"), paidOn)
		insts[1] = insts[1].ReceiveCredit(dec("25"))

		step1, err := plan.ApplyAllocation(insts, dec("300"), paidOn)
		require.NoError(t, err)
		assert.True(t, dec("825").Equal(step1.RemainingBalance()))
		assert.True(t, step1.NextDueDate().Equal(insts[1].DueDate()))

		insts = step1.Installments()
		insts[1] = insts[1].ApplyPayment(decimal.Zero, decimal.Zero, dec("250"), paidOn)
		step2, err := step1.ApplyAllocation(insts, dec("250"), paidOn)
		require.NoError(t, err)
		assert.True(t, dec("550").Equal(step2.RemainingBalance()))
	})
}

func TestPlan_ApplyAccrual(t *testing.T) {
	plan, err := newRequestedPlan(t).Activate(planStart)
	require.NoError(t, err)
	asOf := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	insts := plan.Installments()
	insts[0] = insts[0].AccrueLateInterest(dec("4.58"), decimal.Zero, asOf).MarkOverdue()

	accrued, err := plan.ApplyAccrual(insts, asOf)
	require.NoError(t, err)
	assert.True(t, dec("1104.58").Equal(accrued.RemainingBalance()))

	evts := accrued.DomainEvents()
	last, ok := evts[len(evts)-1].(event.LateInterestAccrued)
	require.True(t, ok)
	assert.Equal(t, []int{1}, last.InstallmentNumbers)
	assert.True(t, dec("4.58").Equal(last.InterestAdded))
}

func TestPlan_ApplyAccrual_RollOverKeepsBalance(t *testing.T) {
	plan, err := newRequestedPlan(t).Activate(planStart)
	require.NoError(t, err)
	plan = plan.ClearEvents()
	insts := plan.Installments()
	asOf := insts[1].DueDate().AddDate(0, 0, 1)

	insts[0] = insts[0].AccrueLateInterest(dec("4.58"), decimal.Zero, insts[1].DueDate()).MarkOverdue().RollOver()
	insts[1] = insts[1].TakeOver(insts[0].PrincipalRolledOver(), insts[0].InterestRolledOver(), decimal.Zero)

	accrued, err := plan.ApplyAccrual(insts, asOf)
	require.NoError(t, err)

	// Only the 4.58 charged is new debt; the roll-over moves it.
	assert.True(t, plan.RemainingBalance().Add(dec("4.58")).Equal(accrued.RemainingBalance()))
	assert.True(t, insts[1].DueDate().Equal(accrued.NextDueDate()))

	evts := accrued.DomainEvents()
	require.Len(t, evts, 2)
	interest, ok := evts[0].(event.LateInterestAccrued)
	require.True(t, ok)
	assert.Equal(t, []int{1}, interest.InstallmentNumbers)

	rolled, ok := evts[1].(event.InstallmentsRolledOver)
	require.True(t, ok)
	require.Len(t, rolled.RollOvers, 1)
	assert.Equal(t, 1, rolled.RollOvers[0].From)
	assert.Equal(t, 2, rolled.RollOvers[0].To)
	assert.True(t, insts[0].BaseAmount().Equal(rolled.RollOvers[0].Principal))
	assert.True(t, dec("4.58").Equal(rolled.RollOvers[0].LateInterest))
}

func TestReconstructPlan_SortsInstallments(t *testing.T) {
	due := planStart.AddDate(0, 0, 30)
	insts := []model.Installment{
		model.NewInstallment(2, due.AddDate(0, 0, 30), dec("50")),
		model.NewInstallment(1, due, dec("50")),
	}

	plan := model.ReconstructPlan(
		"plan-1", "tenant-1", "order-1", "pt-1",
		dec("100"), decimal.Zero, 2,
		dec("50"), dec("100"), decimal.Zero,
		decimal.Zero, dec("5"), 30,
		planStart, due, dec("100"),
		valueobject.PlanStatusActive, insts, 3, planStart, planStart,
	)

	got := plan.Installments()
	assert.Equal(t, 1, got[0].Number())
	assert.Equal(t, 2, got[1].Number())
	assert.Equal(t, 2, insts[0].Number(), "input slice is not reordered")
	assert.Empty(t, plan.DomainEvents())
}
