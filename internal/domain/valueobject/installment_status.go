package valueobject

import "fmt"

// InstallmentStatus represents the payment state of a single installment.
type InstallmentStatus struct {
	value string
}

const (
	installmentStatusPending             = "PENDING"
	installmentStatusPartiallyPaidOnTime = "PARTIALLY_PAID_ON_TIME"
	installmentStatusPartiallyPaidLate   = "PARTIALLY_PAID_LATE"
	installmentStatusPaidOnTime          = "PAID_ON_TIME"
	installmentStatusPaidLate            = "PAID_LATE"
	installmentStatusOverdue             = "OVERDUE"
	installmentStatusRefunded            = "REFUNDED"
	installmentStatusRolledOver          = "ROLLED_OVER"
)

var (
	InstallmentStatusPending             = InstallmentStatus{value: installmentStatusPending}
	InstallmentStatusPartiallyPaidOnTime = InstallmentStatus{value: installmentStatusPartiallyPaidOnTime}
	InstallmentStatusPartiallyPaidLate   = InstallmentStatus{value: installmentStatusPartiallyPaidLate}
	InstallmentStatusPaidOnTime          = InstallmentStatus{value: installmentStatusPaidOnTime}
	InstallmentStatusPaidLate            = InstallmentStatus{value: installmentStatusPaidLate}
	InstallmentStatusOverdue             = InstallmentStatus{value: installmentStatusOverdue}
	InstallmentStatusRefunded            = InstallmentStatus{value: installmentStatusRefunded}
	InstallmentStatusRolledOver          = InstallmentStatus{value: installmentStatusRolledOver}
)

var validInstallmentStatuses = map[string]InstallmentStatus{
	installmentStatusPending:             InstallmentStatusPending,
	installmentStatusPartiallyPaidOnTime: InstallmentStatusPartiallyPaidOnTime,
	installmentStatusPartiallyPaidLate:   InstallmentStatusPartiallyPaidLate,
	installmentStatusPaidOnTime:          InstallmentStatusPaidOnTime,
	installmentStatusPaidLate:            InstallmentStatusPaidLate,
	installmentStatusOverdue:             InstallmentStatusOverdue,
	installmentStatusRefunded:            InstallmentStatusRefunded,
	installmentStatusRolledOver:          InstallmentStatusRolledOver,
}

// NewInstallmentStatus creates an InstallmentStatus from a raw string.
func NewInstallmentStatus(s string) (InstallmentStatus, error) {
	v, ok := validInstallmentStatuses[s]
	if !ok {
		return InstallmentStatus{}, fmt.Errorf("invalid installment status: %q", s)
	}
	return v, nil
}

// String returns the string representation of the status.
func (s InstallmentStatus) String() string { return s.value }

// IsZero returns true if the status has not been initialised.
func (s InstallmentStatus) IsZero() bool { return s.value == "" }

// Equal returns true when both statuses carry the same value.
func (s InstallmentStatus) Equal(other InstallmentStatus) bool { return s.value == other.value }

// IsPaid reports PAID_ON_TIME or PAID_LATE.
func (s InstallmentStatus) IsPaid() bool {
	return s.value == installmentStatusPaidOnTime || s.value == installmentStatusPaidLate
}

// IsPartiallyPaid reports either partially-paid status.
func (s InstallmentStatus) IsPartiallyPaid() bool {
	return s.value == installmentStatusPartiallyPaidOnTime || s.value == installmentStatusPartiallyPaidLate
}

// IsRolledOver reports an installment that closed underpaid and handed what
// it still owed to the next installment.
func (s InstallmentStatus) IsRolledOver() bool { return s.value == installmentStatusRolledOver }

// IsSettled reports whether the installment no longer takes payments or
// accrues interest.
func (s InstallmentStatus) IsSettled() bool {
	return s.IsPaid() || s.value == installmentStatusRefunded || s.value == installmentStatusRolledOver
}

// Paid returns the fully-paid status for the given punctuality.
func Paid(late bool) InstallmentStatus {
	if late {
		return InstallmentStatusPaidLate
	}
	return InstallmentStatusPaidOnTime
}

// PartiallyPaid returns the partially-paid status for the given punctuality.
func PartiallyPaid(late bool) InstallmentStatus {
	if late {
		return InstallmentStatusPartiallyPaidLate
	}
	return InstallmentStatusPartiallyPaidOnTime
}
