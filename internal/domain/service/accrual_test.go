package service_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/service"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

func TestAccrueOverdue_TenDaysLate(t *testing.T) {
	plan := reconstructed(instSpec{due: start, base: "100"})
	asOf := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

	next, result, err := service.NewLateInterestAccrualProcessor().AccrueOverdue(plan, asOf)
	require.NoError(t, err)
	require.False(t, result.NoOp)
	require.Len(t, result.Accruals, 1)

	accrual := result.Accruals[0]
	assert.Equal(t, 10, accrual.OverdueDays)
	assert.True(t, dec("100").Equal(accrual.UnpaidBase))
	assert.True(t, dec("1.67").Equal(accrual.InterestAdded))
	assert.True(t, accrual.NewStatus.Equal(valueobject.InstallmentStatusOverdue))

	inst := next.Installments()[0]
	assert.True(t, dec("101.67").Equal(inst.TotalDue()))
	assert.True(t, asOf.Equal(inst.LastAccrualDate()))
	assert.True(t, dec("101.67").Equal(next.RemainingBalance()))
	require.NoError(t, service.CheckInvariants(next))
}

func TestAccrueOverdue_NoOpBeforeOrOnDueDate(t *testing.T) {
	processor := service.NewLateInterestAccrualProcessor()
	plan := reconstructed(instSpec{due: day(30), base: "100"})

	for _, asOf := range []time.Time{day(0), day(30), day(30).Add(23 * time.Hour)} {
		got, result, err := processor.AccrueOverdue(plan, asOf)
		require.NoError(t, err)
		assert.True(t, result.NoOp, "as of %s", asOf)
		assert.Empty(t, result.Accruals)
		assert.True(t, dec("100").Equal(got.RemainingBalance()))
	}
}

func TestAccrueOverdue_SameAsOfTwiceChargesOnce(t *testing.T) {
	processor := service.NewLateInterestAccrualProcessor()
	plan := reconstructed(instSpec{due: start, base: "100"})
	asOf := day(10)

	once, _, err := processor.AccrueOverdue(plan, asOf)
	require.NoError(t, err)

	twice, result, err := processor.AccrueOverdue(once, asOf)
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	assert.True(t, once.RemainingBalance().Equal(twice.RemainingBalance()))
}

func TestAccrueOverdue_NoCompounding(t *testing.T) {
	processor := service.NewLateInterestAccrualProcessor()
	plan := reconstructed(instSpec{due: start, base: "100"})

	plan, _, err := processor.AccrueOverdue(plan, day(10))
	require.NoError(t, err)
	plan, result, err := processor.AccrueOverdue(plan, day(20))
	require.NoError(t, err)

	require.Len(t, result.Accruals, 1)
	assert.True(t, dec("100").Equal(result.Accruals[0].UnpaidBase))
	// 1.6667 + 1.6667 is charged as 1.67 + 1.66.
	assert.True(t, dec("1.66").Equal(result.Accruals[0].InterestAdded))
	assert.True(t, dec("3.33").Equal(plan.Installments()[0].LateInterest()))
}

func TestAccrueOverdue_AsOfBeforeCursorIsSkipped(t *testing.T) {
	plan := reconstructed(instSpec{due: start, base: "100", cursor: day(20), status: valueobject.InstallmentStatusOverdue})

	got, result, err := service.NewLateInterestAccrualProcessor().AccrueOverdue(plan, day(15))
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	require.Len(t, result.Skipped, 1)
	assert.True(t, errors.Is(result.Skipped[0].Reason, model.ErrAccrualWindowInvalid))
	assert.True(t, got.Installments()[0].LateInterest().IsZero())
}

func TestAccrueOverdue_UnpaidBaseIncludesArrearsAndExcludesPaid(t *testing.T) {
	plan := reconstructed(
		instSpec{due: start, base: "100", basePaid: "80", rolled: "20", status: valueobject.InstallmentStatusRolledOver, cursor: day(5)},
		instSpec{due: day(5), base: "100", arrears: "20", basePaid: "40", status: valueobject.InstallmentStatusPartiallyPaidOnTime},
		instSpec{due: day(30), base: "100"},
	)
	require.NoError(t, service.CheckInvariants(plan))

	next, result, err := service.NewLateInterestAccrualProcessor().AccrueOverdue(plan, day(15))
	require.NoError(t, err)
	require.Len(t, result.Accruals, 1)
	assert.Empty(t, result.RollOvers)

	// (60 + 20) × 5% × 10/30
	assert.Equal(t, 2, result.Accruals[0].Number)
	assert.True(t, dec("80").Equal(result.Accruals[0].UnpaidBase))
	assert.True(t, dec("1.33").Equal(result.Accruals[0].InterestAdded))

	insts := next.Installments()
	assert.True(t, insts[1].Status().Equal(valueobject.InstallmentStatusOverdue))
	assert.True(t, insts[2].Status().Equal(valueobject.InstallmentStatusPending))
	assert.True(t, plan.RemainingBalance().Add(dec("1.33")).Equal(next.RemainingBalance()))
	require.NoError(t, service.CheckInvariants(next))
}

func TestAccrueOverdue_SkipsSettledAndInactive(t *testing.T) {
	processor := service.NewLateInterestAccrualProcessor()

	paid := reconstructed(instSpec{due: start, base: "100", basePaid: "100", status: valueobject.InstallmentStatusPaidLate})
	_, result, err := processor.AccrueOverdue(paid, day(40))
	require.NoError(t, err)
	assert.True(t, result.NoOp)

	pt, err := model.NewPlanType("x", 30, dec("0"), dec("5"), "", start)
	require.NoError(t, err)
	requested, err := model.NewPlan("tenant-1", "order-2", pt, dec("100"), dec("0"), 1, start, start)
	require.NoError(t, err)
	_, result, err = processor.AccrueOverdue(requested, day(90))
	require.NoError(t, err)
	assert.True(t, result.NoOp)
}

func TestAccrueOverdue_ZeroRateStillMarksOverdue(t *testing.T) {
	plan := model.ReconstructPlan(
		"plan-z", "tenant-1", "order-z", "pt-z",
		dec("100"), dec("0"), 1, dec("100"), dec("100"), dec("0"),
		dec("0"), dec("0"), 30,
		start, start, dec("100"),
		valueobject.PlanStatusActive,
		[]model.Installment{model.NewInstallment(1, start, dec("100"))},
		1, start, start,
	)

	next, result, err := service.NewLateInterestAccrualProcessor().AccrueOverdue(plan, day(3))
	require.NoError(t, err)
	assert.False(t, result.NoOp)
	assert.True(t, result.TotalInterest().IsZero())
	assert.True(t, next.Installments()[0].Status().Equal(valueobject.InstallmentStatusOverdue))
	assert.True(t, next.Installments()[0].LastAccrualDate().IsZero())
}

func TestAccrueOverdue_JitteredRunsMatchOneRun(t *testing.T) {
	processor := service.NewLateInterestAccrualProcessor()
	single, _, err := processor.AccrueOverdue(reconstructed(instSpec{due: start, base: "100"}), day(3))
	require.NoError(t, err)
	require.True(t, dec("0.50").Equal(single.Installments()[0].LateInterest()))

	plan := reconstructed(instSpec{due: start, base: "100"})
	var charged []string
	for _, asOf := range []time.Time{
		day(1).Add(3 * time.Millisecond),
		day(2).Add(time.Millisecond),
		day(3).Add(2 * time.Millisecond),
	} {
		var result model.AccrualResult
		plan, result, err = processor.AccrueOverdue(plan, asOf)
		require.NoError(t, err)
		charged = append(charged, result.TotalInterest().StringFixed(2))
	}

	assert.Equal(t, []string{"0.17", "0.16", "0.17"}, charged)
	inst := plan.Installments()[0]
	assert.True(t, dec("0.50").Equal(inst.LateInterest()))
	assert.True(t, inst.AccrualResidue().IsZero())
	assert.True(t, day(3).Equal(inst.LastAccrualDate()), "cursor moves by whole days")
	assert.True(t, single.RemainingBalance().Equal(plan.RemainingBalance()))
}

func TestAccrueOverdue_SplitWindowMatchesSingleRun(t *testing.T) {
	processor := service.NewLateInterestAccrualProcessor()
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		// Multiples of three cents keep every window's interest a
		// terminating decimal, so ties round the same way in both paths.
		base := decimal.New(3*(rng.Int63n(300000)+1), -2)
		window := rng.Intn(120) + 1
		end := day(window).Add(time.Duration(rng.Int63n(int64(time.Hour))))

		single, _, err := processor.AccrueOverdue(reconstructed(instSpec{due: start, base: base.String()}), end)
		require.NoError(t, err)

		split := reconstructed(instSpec{due: start, base: base.String()})
		cuts := rng.Intn(6)
		for c := 0; c < cuts; c++ {
			at := day(rng.Intn(window) + 1).Add(time.Duration(rng.Int63n(int64(time.Hour))))
			if at.After(end) {
				at = end
			}
			next, _, err := processor.AccrueOverdue(split, at)
			require.NoError(t, err)
			split = next
		}
		split, _, err = processor.AccrueOverdue(split, end)
		require.NoError(t, err)

		want := single.Installments()[0].LateInterest()
		got := split.Installments()[0].LateInterest()
		require.True(t, want.Equal(got), "run %d: base %s over %d days: single %s, split %s", run, base, window, want, got)
		require.True(t, single.RemainingBalance().Equal(split.RemainingBalance()))
	}
}

func TestAccrueOverdue_RollsUnpaidInstallmentIntoNext(t *testing.T) {
	plan := activePlan(t)
	processor := service.NewLateInterestAccrualProcessor()

	// 275 unpaid past the second due date (2024-03-01).
	next, result, err := processor.AccrueOverdue(plan, day(65))
	require.NoError(t, err)
	require.Len(t, result.RollOvers, 1)
	require.Len(t, result.Accruals, 2)

	roll := result.RollOvers[0]
	assert.Equal(t, 1, roll.FromNumber)
	assert.Equal(t, 2, roll.ToNumber)
	assert.True(t, dec("275").Equal(roll.Principal))
	// 275 × 5% × 30/30 up to the second due date.
	assert.True(t, dec("13.75").Equal(roll.LateInterest))
	// (275 + 275) × 5% × 5/30
	assert.True(t, dec("4.58").Equal(result.Accruals[1].InterestAdded))
	assert.True(t, dec("550").Equal(result.Accruals[1].UnpaidBase))

	insts := next.Installments()
	assert.True(t, insts[0].Status().Equal(valueobject.InstallmentStatusRolledOver))
	assert.True(t, insts[0].Outstanding().IsZero())
	assert.True(t, day(60).Equal(insts[0].LastAccrualDate()))
	assert.True(t, dec("275").Equal(insts[1].ArrearsCarried()))
	assert.True(t, dec("18.33").Equal(insts[1].LateInterest()))
	assert.True(t, insts[1].Status().Equal(valueobject.InstallmentStatusOverdue))
	assert.True(t, insts[2].Status().Equal(valueobject.InstallmentStatusPending))

	assert.True(t, dec("1118.33").Equal(next.RemainingBalance()))
	assert.True(t, day(60).Equal(next.NextDueDate()))
	assert.True(t, heldBalance(next).Equal(next.RemainingBalance()))
	require.NoError(t, service.CheckInvariants(next))

	again, result, err := processor.AccrueOverdue(next, day(65))
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	assert.True(t, next.RemainingBalance().Equal(again.RemainingBalance()))
}

func TestAccrueOverdue_RollsAcrossSeveralInstallments(t *testing.T) {
	next, result, err := service.NewLateInterestAccrualProcessor().AccrueOverdue(activePlan(t), day(125))
	require.NoError(t, err)
	require.Len(t, result.RollOvers, 3)

	insts := next.Installments()
	for _, inst := range insts[:3] {
		assert.True(t, inst.Status().Equal(valueobject.InstallmentStatusRolledOver), "installment %d", inst.Number())
	}
	last := insts[3]
	assert.True(t, last.Status().Equal(valueobject.InstallmentStatusOverdue))
	assert.True(t, dec("825").Equal(last.ArrearsCarried()))
	assert.True(t, heldBalance(next).Equal(next.RemainingBalance()))
	assert.True(t, next.Status().Equal(valueobject.PlanStatusActive))
	require.NoError(t, service.CheckInvariants(next))
}

func TestUnderpaymentRollsOverAndIsPaidFromArrears(t *testing.T) {
	allocator := service.NewPaymentAllocator()
	processor := service.NewLateInterestAccrualProcessor()

	plan, _, err := allocator.Allocate(activePlan(t), dec("100"), day(20))
	require.NoError(t, err)
	require.True(t, plan.Installments()[0].Status().Equal(valueobject.InstallmentStatusPartiallyPaidOnTime))

	plan, result, err := processor.AccrueOverdue(plan, day(65))
	require.NoError(t, err)
	require.Len(t, result.RollOvers, 1)
	// 175 × 5% over the 30 days to the second due date.
	assert.True(t, dec("175").Equal(result.RollOvers[0].Principal))
	assert.True(t, dec("8.75").Equal(result.RollOvers[0].LateInterest))
	// (175 + 275) × 5% × 5/30
	assert.True(t, dec("3.75").Equal(result.Accruals[1].InterestAdded))
	require.NoError(t, service.CheckInvariants(plan))

	plan, paid, err := allocator.Allocate(plan, dec("187.50"), day(66))
	require.NoError(t, err)
	require.Len(t, paid.Breakdown, 1)
	line := paid.Breakdown[0]
	assert.Equal(t, 2, line.Number)
	assert.True(t, dec("175").Equal(line.AppliedToArrears))
	assert.True(t, dec("12.50").Equal(line.AppliedToLateInterest))
	assert.True(t, line.AppliedToBase.IsZero())
	assert.True(t, line.NewStatus.Equal(valueobject.InstallmentStatusPartiallyPaidLate))
	require.NoError(t, service.CheckInvariants(plan))

	plan, paid, err = allocator.Allocate(plan, dec("275"), day(66))
	require.NoError(t, err)
	assert.True(t, paid.Breakdown[0].NewStatus.Equal(valueobject.InstallmentStatusPaidLate))
	assert.True(t, dec("550").Equal(plan.RemainingBalance()))
	assert.True(t, heldBalance(plan).Equal(plan.RemainingBalance()))
	assert.True(t, day(90).Equal(plan.NextDueDate()))
	require.NoError(t, service.CheckInvariants(plan))
}
