package valueobject

import "fmt"

// SnapshotReason records which ledger operation produced a settlement snapshot.
type SnapshotReason struct {
	value string
}

const (
	snapshotReasonInitial           = "INITIAL"
	snapshotReasonAfterPayment      = "AFTER_PAYMENT"
	snapshotReasonAfterLateInterest = "AFTER_LATE_INTEREST"
)

var (
	SnapshotReasonInitial           = SnapshotReason{value: snapshotReasonInitial}
	SnapshotReasonAfterPayment      = SnapshotReason{value: snapshotReasonAfterPayment}
	SnapshotReasonAfterLateInterest = SnapshotReason{value: snapshotReasonAfterLateInterest}
)

var validSnapshotReasons = map[string]SnapshotReason{
	snapshotReasonInitial:           SnapshotReasonInitial,
	snapshotReasonAfterPayment:      SnapshotReasonAfterPayment,
	snapshotReasonAfterLateInterest: SnapshotReasonAfterLateInterest,
}

// NewSnapshotReason creates a SnapshotReason from a raw string.
func NewSnapshotReason(s string) (SnapshotReason, error) {
	v, ok := validSnapshotReasons[s]
	if !ok {
		return SnapshotReason{}, fmt.Errorf("invalid snapshot reason: %q", s)
	}
	return v, nil
}

func (r SnapshotReason) String() string { return r.value }

func (r SnapshotReason) IsZero() bool { return r.value == "" }

func (r SnapshotReason) Equal(other SnapshotReason) bool { return r.value == other.value }
