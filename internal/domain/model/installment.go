package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bnpl/internal/domain/valueobject"
	"github.com/bibbank/bnpl/pkg/money"
)

// Installment is one scheduled payment of a plan. It is owned by the Plan
// aggregate and, like it, immutable: every change returns a new copy.
//
// Paid amounts are tracked per bucket so that a cascade can always tell what
// is still owed on arrears, late interest and base.
//
// An installment still unpaid when its successor falls due is rolled over:
// its unpaid principal becomes the successor's arrears and its unpaid late
// interest moves with it. The rolled amounts stay recorded here for audit.
type Installment struct {
	id                  string
	number              int
	dueDate             time.Time
	baseAmount          decimal.Decimal
	arrearsCarried      decimal.Decimal
	overPaymentCarried  decimal.Decimal
	lateInterest        decimal.Decimal
	arrearsPaid         decimal.Decimal
	lateInterestPaid    decimal.Decimal
	basePaid            decimal.Decimal
	principalRolledOver decimal.Decimal
	interestRolledOver  decimal.Decimal
	accrualResidue      decimal.Decimal
	status              valueobject.InstallmentStatus
	lastPaymentDate     time.Time
	lastAccrualDate     time.Time
	refundDate          time.Time
}

// NewInstallment creates a PENDING installment from a schedule row.
func NewInstallment(number int, dueDate time.Time, baseAmount decimal.Decimal) Installment {
	return Installment{
		id:                  uuid.NewString(),
		number:              number,
		dueDate:             dueDate.UTC(),
		baseAmount:          baseAmount,
		arrearsCarried:      decimal.Zero,
		overPaymentCarried:  decimal.Zero,
		lateInterest:        decimal.Zero,
		arrearsPaid:         decimal.Zero,
		lateInterestPaid:    decimal.Zero,
		basePaid:            decimal.Zero,
		principalRolledOver: decimal.Zero,
		interestRolledOver:  decimal.Zero,
		accrualResidue:      decimal.Zero,
		status:              valueobject.InstallmentStatusPending,
	}
}

// ReconstructInstallment rebuilds an Installment from persistence. Zero times
// stand for dates that were never set.
func ReconstructInstallment(
	id string,
	number int,
	dueDate time.Time,
	baseAmount, arrearsCarried, overPaymentCarried, lateInterest decimal.Decimal,
	arrearsPaid, lateInterestPaid, basePaid decimal.Decimal,
	principalRolledOver, interestRolledOver, accrualResidue decimal.Decimal,
	status valueobject.InstallmentStatus,
	lastPaymentDate, lastAccrualDate, refundDate time.Time,
) Installment {
	return Installment{
		id:                  id,
		number:              number,
		dueDate:             dueDate,
		baseAmount:          baseAmount,
		arrearsCarried:      arrearsCarried,
		overPaymentCarried:  overPaymentCarried,
		lateInterest:        lateInterest,
		arrearsPaid:         arrearsPaid,
		lateInterestPaid:    lateInterestPaid,
		basePaid:            basePaid,
		principalRolledOver: principalRolledOver,
		interestRolledOver:  interestRolledOver,
		accrualResidue:      accrualResidue,
		status:              status,
		lastPaymentDate:     lastPaymentDate,
		lastAccrualDate:     lastAccrualDate,
		refundDate:          refundDate,
	}
}

// ---------------------------------------------------------------------------
// Derived amounts
// ---------------------------------------------------------------------------

// TotalDue is base + arrears + late interest − received credit, never negative.
func (i Installment) TotalDue() decimal.Decimal {
	return money.FloorAtZero(
		i.baseAmount.Add(i.arrearsCarried).Add(i.lateInterest).Sub(i.overPaymentCarried),
	)
}

// AmountPaid is the sum of all bucket payments.
func (i Installment) AmountPaid() decimal.Decimal {
	return i.arrearsPaid.Add(i.lateInterestPaid).Add(i.basePaid)
}

// Outstanding is what is still owed on the installment. A rolled-over
// installment owes nothing; its successor holds the debt.
func (i Installment) Outstanding() decimal.Decimal {
	return money.FloorAtZero(i.TotalDue().Sub(i.AmountPaid()).Sub(i.RolledOver()))
}

// RolledOver is the principal plus late interest handed to the successor.
func (i Installment) RolledOver() decimal.Decimal {
	return i.principalRolledOver.Add(i.interestRolledOver)
}

func (i Installment) ArrearsOutstanding() decimal.Decimal {
	if i.status.IsRolledOver() {
		return decimal.Zero
	}
	return money.FloorAtZero(i.arrearsCarried.Sub(i.arrearsPaid))
}

func (i Installment) LateInterestOutstanding() decimal.Decimal {
	if i.status.IsRolledOver() {
		return decimal.Zero
	}
	return money.FloorAtZero(i.lateInterest.Sub(i.lateInterestPaid))
}

// BaseOutstanding is the base amount net of received credit and base payments.
func (i Installment) BaseOutstanding() decimal.Decimal {
	if i.status.IsRolledOver() {
		return decimal.Zero
	}
	return money.FloorAtZero(i.baseAmount.Sub(i.overPaymentCarried).Sub(i.basePaid))
}

// IsLateOn reports whether a payment on the given date misses the due date.
// Only the UTC calendar day is compared.
func (i Installment) IsLateOn(date time.Time) bool {
	return calendarDay(date).After(calendarDay(i.dueDate))
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// State transitions
// ---------------------------------------------------------------------------

// ReceiveCredit adds an overpayment forwarded from the previous installment.
// The credit reduces the base owed, never arrears or interest.
func (i Installment) ReceiveCredit(amount decimal.Decimal) Installment {
	next := i
	next.overPaymentCarried = i.overPaymentCarried.Add(amount)
	return next
}

// ApplyPayment records amounts paid into each bucket and recomputes the
// status. An installment that had nothing applied and still owes money keeps
// its status.
func (i Installment) ApplyPayment(arrears, lateInterest, base decimal.Decimal, paymentDate time.Time) Installment {
	next := i
	next.arrearsPaid = i.arrearsPaid.Add(arrears)
	next.lateInterestPaid = i.lateInterestPaid.Add(lateInterest)
	next.basePaid = i.basePaid.Add(base)

	applied := arrears.Add(lateInterest).Add(base)
	late := i.IsLateOn(paymentDate)

	switch {
	case next.Outstanding().IsZero():
		next.status = valueobject.Paid(late)
	case applied.IsPositive():
		next.status = valueobject.PartiallyPaid(late)
	default:
		return next
	}
	next.lastPaymentDate = paymentDate.UTC()
	return next
}

// AccrueLateInterest charges interest for the window ending at through and
// moves the accrual cursor there. residue is the unrounded part of the
// window's interest that was not charged; it is added to the next window.
func (i Installment) AccrueLateInterest(interest, residue decimal.Decimal, through time.Time) Installment {
	next := i
	next.lateInterest = i.lateInterest.Add(interest)
	next.accrualResidue = residue
	next.lastAccrualDate = through.UTC()
	return next
}

// MarkOverdue moves a PENDING or partially paid installment to OVERDUE.
func (i Installment) MarkOverdue() Installment {
	next := i
	if i.status.Equal(valueobject.InstallmentStatusPending) || i.status.IsPartiallyPaid() {
		next.status = valueobject.InstallmentStatusOverdue
	}
	return next
}

// RollOver closes the installment as ROLLED_OVER, recording its unpaid
// arrears and base as principal handed on and its unpaid late interest.
// The accrual residue is cleared; the caller passes it on with TakeOver.
func (i Installment) RollOver() Installment {
	next := i
	next.principalRolledOver = i.ArrearsOutstanding().Add(i.BaseOutstanding())
	next.interestRolledOver = i.LateInterestOutstanding()
	next.accrualResidue = decimal.Zero
	next.status = valueobject.InstallmentStatusRolledOver
	return next
}

// TakeOver receives what the previous installment rolled over: principal
// becomes arrears and interest joins the late interest already charged.
func (i Installment) TakeOver(principal, lateInterest, residue decimal.Decimal) Installment {
	next := i
	next.arrearsCarried = i.arrearsCarried.Add(principal)
	next.lateInterest = i.lateInterest.Add(lateInterest)
	next.accrualResidue = i.accrualResidue.Add(residue)
	return next
}

// MarkRefunded closes an unpaid installment as refunded.
func (i Installment) MarkRefunded(at time.Time) Installment {
	next := i
	next.status = valueobject.InstallmentStatusRefunded
	next.refundDate = at.UTC()
	return next
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (i Installment) ID() string                                { return i.id }
func (i Installment) Number() int                               { return i.number }
func (i Installment) DueDate() time.Time                        { return i.dueDate }
func (i Installment) BaseAmount() decimal.Decimal               { return i.baseAmount }
func (i Installment) ArrearsCarried() decimal.Decimal           { return i.arrearsCarried }
func (i Installment) OverPaymentCarried() decimal.Decimal       { return i.overPaymentCarried }
func (i Installment) LateInterest() decimal.Decimal             { return i.lateInterest }
func (i Installment) ArrearsPaid() decimal.Decimal              { return i.arrearsPaid }
func (i Installment) LateInterestPaid() decimal.Decimal         { return i.lateInterestPaid }
func (i Installment) BasePaid() decimal.Decimal                 { return i.basePaid }
func (i Installment) PrincipalRolledOver() decimal.Decimal      { return i.principalRolledOver }
func (i Installment) InterestRolledOver() decimal.Decimal       { return i.interestRolledOver }
func (i Installment) AccrualResidue() decimal.Decimal           { return i.accrualResidue }
func (i Installment) Status() valueobject.InstallmentStatus     { return i.status }
func (i Installment) LastPaymentDate() time.Time                { return i.lastPaymentDate }
func (i Installment) LastAccrualDate() time.Time                { return i.lastAccrualDate }
func (i Installment) RefundDate() time.Time                     { return i.refundDate }
