package valueobject

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// PlanStatus – immutable value object
// ---------------------------------------------------------------------------

// PlanStatus represents the lifecycle stage of an installment plan.
type PlanStatus struct {
	value string
}

const (
	planStatusRequested = "REQUESTED"
	planStatusActive    = "ACTIVE"
	planStatusCompleted = "COMPLETED"
	planStatusCancelled = "CANCELLED"
	planStatusDefaulted = "DEFAULTED"
)

var (
	PlanStatusRequested = PlanStatus{value: planStatusRequested}
	PlanStatusActive    = PlanStatus{value: planStatusActive}
	PlanStatusCompleted = PlanStatus{value: planStatusCompleted}
	PlanStatusCancelled = PlanStatus{value: planStatusCancelled}
	PlanStatusDefaulted = PlanStatus{value: planStatusDefaulted}
)

var validPlanStatuses = map[string]PlanStatus{
	planStatusRequested: PlanStatusRequested,
	planStatusActive:    PlanStatusActive,
	planStatusCompleted: PlanStatusCompleted,
	planStatusCancelled: PlanStatusCancelled,
	planStatusDefaulted: PlanStatusDefaulted,
}

// NewPlanStatus creates a PlanStatus from a raw string.
func NewPlanStatus(s string) (PlanStatus, error) {
	v, ok := validPlanStatuses[s]
	if !ok {
		return PlanStatus{}, fmt.Errorf("invalid plan status: %q", s)
	}
	return v, nil
}

// String returns the string representation of the status.
func (s PlanStatus) String() string { return s.value }

// IsZero returns true if the status has not been initialised.
func (s PlanStatus) IsZero() bool { return s.value == "" }

// Equal returns true when both statuses carry the same value.
func (s PlanStatus) Equal(other PlanStatus) bool { return s.value == other.value }

// AcceptsPayments reports whether payments and late-interest accrual may be
// applied to a plan in this status.
func (s PlanStatus) AcceptsPayments() bool {
	return s.value == planStatusActive || s.value == planStatusDefaulted
}

// IsTerminal reports whether no further transition is possible.
func (s PlanStatus) IsTerminal() bool {
	return s.value == planStatusCompleted || s.value == planStatusCancelled
}

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)
