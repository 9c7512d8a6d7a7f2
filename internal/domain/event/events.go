package event

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bnpl/pkg/events"
)

// DomainEvent is an alias for the shared pkg/events.DomainEvent interface.
type DomainEvent = events.DomainEvent

const aggregatePlan = "InstallmentPlan"

// Event types published on the ledger topic.
const (
	TypePlanCreated         = "bnpl.plan.created"
	TypePlanActivated       = "bnpl.plan.activated"
	TypePlanCancelled       = "bnpl.plan.cancelled"
	TypePlanDefaulted       = "bnpl.plan.defaulted"
	TypePlanRefunded        = "bnpl.plan.refunded"
	TypePlanCompleted       = "bnpl.plan.completed"
	TypePaymentApplied      = "bnpl.plan.payment_applied"
	TypeLateInterestAccrued = "bnpl.plan.late_interest_accrued"
	TypeInstallmentsRolled  = "bnpl.plan.installments_rolled_over"
)

// ---------------------------------------------------------------------------
// Plan lifecycle events
// ---------------------------------------------------------------------------

// PlanCreated is raised when a plan and its schedule are first persisted.
type PlanCreated struct {
	FirstDueDate time.Time `json:"first_due_date"`
	events.BaseEvent
	OrderID          string          `json:"order_id"`
	PlanTypeID       string          `json:"plan_type_id"`
	OrderTotal       decimal.Decimal `json:"order_total"`
	TotalPayable     decimal.Decimal `json:"total_payable"`
	InstallmentCount int             `json:"installment_count"`
}

func NewPlanCreated(
	planID, tenantID, orderID, planTypeID string,
	orderTotal, totalPayable decimal.Decimal,
	installmentCount int, firstDueDate, at time.Time,
) PlanCreated {
	return PlanCreated{
		BaseEvent:        events.NewBaseEventAt(TypePlanCreated, planID, aggregatePlan, tenantID, at),
		OrderID:          orderID,
		PlanTypeID:       planTypeID,
		OrderTotal:       orderTotal,
		TotalPayable:     totalPayable,
		InstallmentCount: installmentCount,
		FirstDueDate:     firstDueDate,
	}
}

// PlanStatusChanged is raised on activate, cancel, default and refund.
type PlanStatusChanged struct {
	events.BaseEvent
	From             string          `json:"from_status"`
	To               string          `json:"to_status"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

func newPlanStatusChanged(eventType, planID, tenantID, from, to string, remaining decimal.Decimal, at time.Time) PlanStatusChanged {
	return PlanStatusChanged{
		BaseEvent:        events.NewBaseEventAt(eventType, planID, aggregatePlan, tenantID, at),
		From:             from,
		To:               to,
		RemainingBalance: remaining,
	}
}

func NewPlanActivated(planID, tenantID, from string, remaining decimal.Decimal, at time.Time) PlanStatusChanged {
	return newPlanStatusChanged(TypePlanActivated, planID, tenantID, from, "ACTIVE", remaining, at)
}

func NewPlanCancelled(planID, tenantID, from string, remaining decimal.Decimal, at time.Time) PlanStatusChanged {
	return newPlanStatusChanged(TypePlanCancelled, planID, tenantID, from, "CANCELLED", remaining, at)
}

func NewPlanDefaulted(planID, tenantID, from string, remaining decimal.Decimal, at time.Time) PlanStatusChanged {
	return newPlanStatusChanged(TypePlanDefaulted, planID, tenantID, from, "DEFAULTED", remaining, at)
}

// PlanRefunded carries the installment numbers that were marked refunded.
type PlanRefunded struct {
	events.BaseEvent
	RefundedInstallments []int           `json:"refunded_installments"`
	UnpaidAmount         decimal.Decimal `json:"unpaid_amount"`
}

func NewPlanRefunded(planID, tenantID string, refunded []int, unpaid decimal.Decimal, at time.Time) PlanRefunded {
	return PlanRefunded{
		BaseEvent:            events.NewBaseEventAt(TypePlanRefunded, planID, aggregatePlan, tenantID, at),
		RefundedInstallments: refunded,
		UnpaidAmount:         unpaid,
	}
}

// PlanCompleted is raised when every installment is paid or refunded.
type PlanCompleted struct {
	events.BaseEvent
}

func NewPlanCompleted(planID, tenantID string, at time.Time) PlanCompleted {
	return PlanCompleted{
		BaseEvent: events.NewBaseEventAt(TypePlanCompleted, planID, aggregatePlan, tenantID, at),
	}
}

// ---------------------------------------------------------------------------
// Ledger movement events
// ---------------------------------------------------------------------------

// PaymentApplied is raised once per allocated payment.
type PaymentApplied struct {
	PaymentDate time.Time `json:"payment_date"`
	events.BaseEvent
	Amount             decimal.Decimal `json:"amount"`
	Applied            decimal.Decimal `json:"applied"`
	RemainingBalance   decimal.Decimal `json:"remaining_balance"`
	InstallmentNumbers []int           `json:"installment_numbers"`
}

func NewPaymentApplied(
	planID, tenantID string,
	amount, applied, remaining decimal.Decimal,
	installments []int, paymentDate, at time.Time,
) PaymentApplied {
	return PaymentApplied{
		BaseEvent:          events.NewBaseEventAt(TypePaymentApplied, planID, aggregatePlan, tenantID, at),
		Amount:             amount,
		Applied:            applied,
		RemainingBalance:   remaining,
		InstallmentNumbers: installments,
		PaymentDate:        paymentDate,
	}
}

// LateInterestAccrued is raised when an accrual run added interest to a plan.
type LateInterestAccrued struct {
	AsOf time.Time `json:"as_of"`
	events.BaseEvent
	InterestAdded      decimal.Decimal `json:"interest_added"`
	RemainingBalance   decimal.Decimal `json:"remaining_balance"`
	InstallmentNumbers []int           `json:"installment_numbers"`
}

func NewLateInterestAccrued(
	planID, tenantID string,
	added, remaining decimal.Decimal,
	installments []int, asOf, at time.Time,
) LateInterestAccrued {
	return LateInterestAccrued{
		BaseEvent:          events.NewBaseEventAt(TypeLateInterestAccrued, planID, aggregatePlan, tenantID, at),
		InterestAdded:      added,
		RemainingBalance:   remaining,
		InstallmentNumbers: installments,
		AsOf:               asOf,
	}
}

// RollOver is one installment handing its unpaid debt to the next.
type RollOver struct {
	From         int             `json:"from_installment"`
	To           int             `json:"to_installment"`
	Principal    decimal.Decimal `json:"principal"`
	LateInterest decimal.Decimal `json:"late_interest"`
}

// InstallmentsRolledOver is raised when an accrual run closed underpaid
// installments into their successors.
type InstallmentsRolledOver struct {
	NextDueDate time.Time `json:"next_due_date"`
	events.BaseEvent
	RollOvers []RollOver `json:"roll_overs"`
}

func NewInstallmentsRolledOver(planID, tenantID string, rolled []RollOver, nextDue, at time.Time) InstallmentsRolledOver {
	return InstallmentsRolledOver{
		BaseEvent:   events.NewBaseEventAt(TypeInstallmentsRolled, planID, aggregatePlan, tenantID, at),
		RollOvers:   rolled,
		NextDueDate: nextDue,
	}
}
