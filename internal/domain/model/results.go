package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

// InstallmentAllocation is what one payment did to one installment.
// OverPayment is the credit forwarded from this installment to the next.
type InstallmentAllocation struct {
	InstallmentID         string
	Number                int
	AppliedToArrears      decimal.Decimal
	AppliedToLateInterest decimal.Decimal
	AppliedToBase         decimal.Decimal
	OverPayment           decimal.Decimal
	NewStatus             valueobject.InstallmentStatus
}

// Applied is the part of the payment paid into this installment's buckets.
func (a InstallmentAllocation) Applied() decimal.Decimal {
	return a.AppliedToArrears.Add(a.AppliedToLateInterest).Add(a.AppliedToBase)
}

// AllocationResult describes how a payment was spread across a plan.
type AllocationResult struct {
	Breakdown []InstallmentAllocation
	Remainder decimal.Decimal
}

// TotalApplied sums what went into installment buckets.
func (r AllocationResult) TotalApplied() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Breakdown {
		total = total.Add(line.Applied())
	}
	return total
}

// TotalForwarded sums the credit moved between installments.
func (r AllocationResult) TotalForwarded() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Breakdown {
		total = total.Add(line.OverPayment)
	}
	return total
}

// InstallmentAccrual is the late interest charged to one installment.
type InstallmentAccrual struct {
	InstallmentID string
	Number        int
	OverdueDays   int
	UnpaidBase    decimal.Decimal
	InterestAdded decimal.Decimal
	NewStatus     valueobject.InstallmentStatus
}

// SkippedAccrual records an installment the processor refused to accrue.
type SkippedAccrual struct {
	InstallmentID string
	Number        int
	Reason        error
}

// InstallmentRollOver records an underpaid installment handing its debt to
// the next one.
type InstallmentRollOver struct {
	FromInstallmentID string
	FromNumber        int
	ToInstallmentID   string
	ToNumber          int
	Principal         decimal.Decimal
	LateInterest      decimal.Decimal
}

// AccrualResult describes one late-interest pass over a plan. NoOp is true
// when nothing on the plan changed.
type AccrualResult struct {
	Accruals  []InstallmentAccrual
	RollOvers []InstallmentRollOver
	Skipped   []SkippedAccrual
	NoOp      bool
}

// TotalInterest sums the interest added across installments.
func (r AccrualResult) TotalInterest() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Accruals {
		total = total.Add(a.InterestAdded)
	}
	return total
}

// PaymentReceipt is the idempotency record of an applied payment.
type PaymentReceipt struct {
	PlanID           string
	IdempotencyToken string
	Amount           decimal.Decimal
	PaymentDate      time.Time
	AppliedAt        time.Time
	Result           AllocationResult
}
