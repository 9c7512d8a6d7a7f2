package model

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"

	"github.com/bibbank/bnpl/pkg/money"
)

// AmortizationQuote is the result of splitting an order into installments.
// AmountPerInstallment × (InstallmentCount − 1) + FinalInstallmentAmount
// always equals TotalPayable exactly.
type AmortizationQuote struct {
	OrderTotal             decimal.Decimal
	InitialPayment         decimal.Decimal
	RemainingPrincipal     decimal.Decimal
	InterestRate           decimal.Decimal
	LateInterestRate       decimal.Decimal
	TotalInterest          decimal.Decimal
	TotalPayable           decimal.Decimal
	AmountPerInstallment   decimal.Decimal
	FinalInstallmentAmount decimal.Decimal
	InstallmentCount       int
	DurationDays           int
}

// ScheduledInstallment is one row of a schedule before it becomes an
// Installment of a persisted plan.
type ScheduledInstallment struct {
	DueDate time.Time
	Amount  decimal.Decimal
	Number  int
}

// ComputePlan splits orderTotal − initialPayment plus simple interest into
// installmentCount installments:
//
//	interest = round2(remaining × rate / 100)
//	per      = truncate2((remaining + interest) / n)
//	final    = (remaining + interest) − per × (n − 1)
func ComputePlan(
	planType *PlanType,
	orderTotal, initialPayment decimal.Decimal,
	installmentCount int,
) (AmortizationQuote, error) {
	if planType == nil {
		return AmortizationQuote{}, invalidParameters("plan type is required")
	}
	if installmentCount < 1 {
		return AmortizationQuote{}, invalidParameters("installment count must be at least 1, got %d", installmentCount)
	}
	if initialPayment.IsNegative() {
		return AmortizationQuote{}, invalidParameters("initial payment must not be negative")
	}
	if err := validateRate("interest rate", planType.interestRate); err != nil {
		return AmortizationQuote{}, err
	}
	if err := validateRate("late interest rate", planType.lateInterestRate); err != nil {
		return AmortizationQuote{}, err
	}

	remaining := orderTotal.Sub(initialPayment)
	if !remaining.IsPositive() {
		return AmortizationQuote{}, invalidParameters(
			"initial payment %s leaves nothing to finance on order total %s",
			money.Fixed(initialPayment), money.Fixed(orderTotal),
		)
	}

	interest := money.Round(money.Percent(remaining, planType.interestRate))
	totalPayable := remaining.Add(interest)

	per, last, err := money.Split(totalPayable, installmentCount)
	if err != nil {
		return AmortizationQuote{}, invalidParameters("%v", err)
	}

	return AmortizationQuote{
		OrderTotal:             orderTotal,
		InitialPayment:         initialPayment,
		RemainingPrincipal:     remaining,
		InterestRate:           planType.interestRate,
		LateInterestRate:       planType.lateInterestRate,
		TotalInterest:          interest,
		TotalPayable:           totalPayable,
		AmountPerInstallment:   per,
		FinalInstallmentAmount: last,
		InstallmentCount:       installmentCount,
		DurationDays:           planType.durationDays,
	}, nil
}

// BuildSchedule lays the quote out on the calendar. Due dates follow the
// recurrence FREQ=DAILY;INTERVAL=durationDays;COUNT=n starting one period
// after startDate.
func BuildSchedule(quote AmortizationQuote, startDate time.Time, durationDays int) ([]ScheduledInstallment, error) {
	if durationDays <= 0 {
		return nil, invalidParameters("duration days must be positive, got %d", durationDays)
	}
	if quote.InstallmentCount < 1 {
		return nil, invalidParameters("installment count must be at least 1, got %d", quote.InstallmentCount)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: durationDays,
		Count:    quote.InstallmentCount,
		Dtstart:  startDate.UTC().AddDate(0, 0, durationDays),
	})
	if err != nil {
		return nil, invalidParameters("due date recurrence: %v", err)
	}

	dates := rule.All()
	schedule := make([]ScheduledInstallment, 0, len(dates))
	for i, due := range dates {
		amount := quote.AmountPerInstallment
		if i == len(dates)-1 {
			amount = quote.FinalInstallmentAmount
		}
		schedule = append(schedule, ScheduledInstallment{
			Number:  i + 1,
			DueDate: due.UTC(),
			Amount:  amount,
		})
	}
	return schedule, nil
}
