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

func TestAllocate_OverpaymentForwardsToNextInstallment(t *testing.T) {
	allocator := service.NewPaymentAllocator()
	plan := activePlan(t)

	next, result, err := allocator.Allocate(plan, dec("300"), day(14))
	require.NoError(t, err)

	require.Len(t, result.Breakdown, 1)
	first := result.Breakdown[0]
	assert.Equal(t, 1, first.Number)
	assert.True(t, dec("275").Equal(first.AppliedToBase))
	assert.True(t, first.AppliedToArrears.IsZero())
	assert.True(t, first.AppliedToLateInterest.IsZero())
	assert.True(t, dec("25").Equal(first.OverPayment))
	assert.True(t, first.NewStatus.Equal(valueobject.InstallmentStatusPaidOnTime))
	assert.True(t, result.Remainder.IsZero())

	insts := next.Installments()
	assert.True(t, dec("25").Equal(insts[1].OverPaymentCarried()))
	assert.True(t, dec("250").Equal(insts[1].TotalDue()))
	assert.True(t, insts[1].Status().Equal(valueobject.InstallmentStatusPending))
	assert.True(t, dec("825").Equal(next.RemainingBalance()))
	assert.True(t, insts[1].DueDate().Equal(next.NextDueDate()))

	assert.True(t, plan.Installments()[0].Status().Equal(valueobject.InstallmentStatusPending), "input plan is not mutated")
	require.NoError(t, service.CheckInvariants(next))
}

func TestAllocate_CascadeOrder(t *testing.T) {
	plan := reconstructed(
		instSpec{due: day(30), base: "100", arrears: "50", late: "10"},
		instSpec{due: day(60), base: "100"},
	)
	allocator := service.NewPaymentAllocator()

	tests := []struct {
		name     string
		payment  string
		arrears  string
		interest string
		base     string
	}{
		{"arrears first", "40", "40", "0", "0"},
		{"then late interest", "55", "50", "5", "0"},
		{"then base", "90", "50", "10", "30"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, result, err := allocator.Allocate(plan, dec(tc.payment), day(10))
			require.NoError(t, err)
			require.Len(t, result.Breakdown, 1)

			line := result.Breakdown[0]
			assert.True(t, dec(tc.arrears).Equal(line.AppliedToArrears), "arrears %s", line.AppliedToArrears)
			assert.True(t, dec(tc.interest).Equal(line.AppliedToLateInterest), "interest %s", line.AppliedToLateInterest)
			assert.True(t, dec(tc.base).Equal(line.AppliedToBase), "base %s", line.AppliedToBase)
			assert.True(t, line.NewStatus.Equal(valueobject.InstallmentStatusPartiallyPaidOnTime))
		})
	}
}

func TestAllocate_PaymentBelowArrearsAndInterestNeverTouchesBase(t *testing.T) {
	plan := reconstructed(instSpec{due: day(30), base: "200", arrears: "80", late: "15.55"})
	allocator := service.NewPaymentAllocator()

	for cents := int64(1); cents < 9555; cents += 97 {
		payment := decimal.New(cents, -2)
		_, result, err := allocator.Allocate(plan, payment, day(40))
		require.NoError(t, err)
		require.Len(t, result.Breakdown, 1)
		assert.True(t, result.Breakdown[0].AppliedToBase.IsZero(), "payment %s", payment)
		assert.True(t, result.Breakdown[0].NewStatus.Equal(valueobject.InstallmentStatusPartiallyPaidLate))
	}
}

func TestAllocate_CreditIsBaseOnly(t *testing.T) {
	plan := reconstructed(
		instSpec{due: day(30), base: "275"},
		instSpec{due: day(60), base: "275", late: "10"},
	)

	next, result, err := service.NewPaymentAllocator().Allocate(plan, dec("300"), day(20))
	require.NoError(t, err)

	second := next.Installments()[1]
	assert.True(t, dec("25").Equal(result.Breakdown[0].OverPayment))
	assert.True(t, dec("25").Equal(second.OverPaymentCarried()))
	assert.True(t, dec("10").Equal(second.LateInterestOutstanding()))
	assert.True(t, dec("250").Equal(second.BaseOutstanding()))
	assert.True(t, second.ArrearsCarried().IsZero())
}

func TestAllocate_CreditCappedAtNextBase(t *testing.T) {
	allocator := service.NewPaymentAllocator()

	next, result, err := allocator.Allocate(activePlan(t), dec("575"), day(5))
	require.NoError(t, err)

	require.Len(t, result.Breakdown, 2)
	assert.True(t, dec("275").Equal(result.Breakdown[0].OverPayment))
	assert.True(t, result.Breakdown[1].Applied().IsZero())
	assert.True(t, dec("25").Equal(result.Breakdown[1].OverPayment))
	assert.True(t, result.Breakdown[1].NewStatus.Equal(valueobject.InstallmentStatusPaidOnTime))

	insts := next.Installments()
	assert.True(t, dec("25").Equal(insts[2].OverPaymentCarried()))
	assert.True(t, dec("550").Equal(next.RemainingBalance()))
	assert.True(t, heldBalance(next).Equal(next.RemainingBalance()))
	require.NoError(t, service.CheckInvariants(next))
}

func TestAllocate_LateStatus(t *testing.T) {
	next, result, err := service.NewPaymentAllocator().Allocate(activePlan(t), dec("275"), day(35))
	require.NoError(t, err)
	assert.True(t, result.Breakdown[0].NewStatus.Equal(valueobject.InstallmentStatusPaidLate))
	assert.True(t, next.Installments()[0].Status().Equal(valueobject.InstallmentStatusPaidLate))

	_, result, err = service.NewPaymentAllocator().Allocate(activePlan(t), dec("100"), day(35))
	require.NoError(t, err)
	assert.True(t, result.Breakdown[0].NewStatus.Equal(valueobject.InstallmentStatusPartiallyPaidLate))
}

func TestAllocate_LatenessComparesUTCCalendarDays(t *testing.T) {
	due := day(30)
	tests := []struct {
		name string
		date time.Time
		want valueobject.InstallmentStatus
	}{
		{"last minute of the due day", due.Add(23*time.Hour + 59*time.Minute), valueobject.InstallmentStatusPaidOnTime},
		{"first minute after", due.AddDate(0, 0, 1), valueobject.InstallmentStatusPaidLate},
		{"due day evening west of UTC", time.Date(2024, 1, 31, 20, 0, 0, 0, time.FixedZone("UTC-5", -5*60*60)), valueobject.InstallmentStatusPaidLate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, result, err := service.NewPaymentAllocator().Allocate(activePlan(t), dec("275"), tc.date)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(result.Breakdown[0].NewStatus), "got %s", result.Breakdown[0].NewStatus)
		})
	}
}

func TestAllocate_OverAllocation(t *testing.T) {
	plan := activePlan(t)

	got, result, err := service.NewPaymentAllocator().Allocate(plan, dec("1200"), day(3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrOverAllocation))

	var ledgerErr *model.LedgerError
	require.True(t, errors.As(err, &ledgerErr))
	assert.True(t, dec("100").Equal(ledgerErr.Remainder))
	assert.Equal(t, plan.ID(), ledgerErr.PlanID)
	assert.Len(t, ledgerErr.InstallmentIDs, 4)

	assert.True(t, dec("100").Equal(result.Remainder))
	assert.True(t, dec("1200").Equal(result.TotalApplied().Add(result.TotalForwarded()).Add(result.Remainder)))
	assert.True(t, dec("1100").Equal(got.RemainingBalance()), "plan is returned unchanged")
}

func TestAllocate_ExactPayoffCompletesPlan(t *testing.T) {
	next, result, err := service.NewPaymentAllocator().Allocate(activePlan(t), dec("1100"), day(3))
	require.NoError(t, err)
	assert.True(t, result.Remainder.IsZero())
	assert.True(t, next.Status().Equal(valueobject.PlanStatusCompleted))
	assert.True(t, next.RemainingBalance().IsZero())
	require.NoError(t, service.CheckInvariants(next))
}

func TestAllocate_Rejections(t *testing.T) {
	allocator := service.NewPaymentAllocator()
	plan := activePlan(t)

	_, _, err := allocator.Allocate(plan, decimal.Zero, day(1))
	assert.ErrorIs(t, err, model.ErrInvalidPaymentAmount)

	_, _, err = allocator.Allocate(plan, dec("-5"), day(1))
	assert.ErrorIs(t, err, model.ErrInvalidPaymentAmount)

	refunded := reconstructed(instSpec{due: day(30), base: "100"})
	refunded, err = refunded.Refund(day(2))
	require.NoError(t, err)
	_, _, err = allocator.Allocate(refunded, dec("5"), day(3))
	assert.ErrorIs(t, err, model.ErrPlanNotPayable)
}

func TestAllocate_ConservationAcrossPaymentSequence(t *testing.T) {
	allocator := service.NewPaymentAllocator()
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		plan := activePlan(t)
		paidSoFar := decimal.Zero

		for step := 0; step < 20 && plan.Status().AcceptsPayments(); step++ {
			payment := decimal.New(rng.Int63n(40000)+1, -2)
			date := day(rng.Intn(150))

			next, result, err := allocator.Allocate(plan, payment, date)

			consumed := result.TotalApplied().Add(result.TotalForwarded()).Add(result.Remainder)
			require.True(t, payment.Equal(consumed), "run %d step %d: %s != %s", run, step, payment, consumed)

			if err != nil {
				require.ErrorIs(t, err, model.ErrOverAllocation)
				require.True(t, plan.RemainingBalance().Equal(next.RemainingBalance()))
				continue
			}

			require.NoError(t, service.CheckInvariants(next))
			require.True(t, heldBalance(next).Equal(next.RemainingBalance()),
				"run %d step %d: held %s, balance %s", run, step, heldBalance(next), next.RemainingBalance())

			paidSoFar = paidSoFar.Add(result.TotalApplied())
			plan = next
		}

		if plan.Status().Equal(valueobject.PlanStatusCompleted) {
			assert.True(t, plan.RemainingBalance().IsZero())
		}
		assert.True(t, paidSoFar.Add(plan.RemainingBalance()).LessThanOrEqual(plan.TotalPayable()))
	}
}
