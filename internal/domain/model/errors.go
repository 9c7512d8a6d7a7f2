package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidPlanParameters  = errors.New("invalid plan parameters")
	ErrOverAllocation         = errors.New("payment exceeds amount owed on the plan")
	ErrConcurrentModification = errors.New("plan was modified concurrently")
	ErrAccrualWindowInvalid   = errors.New("accrual date precedes the accrual cursor")
	ErrInvariantViolation     = errors.New("ledger invariant violated")
	ErrDuplicatePayment       = errors.New("payment already applied")
	ErrPlanNotFound           = errors.New("plan not found")
	ErrPlanTypeNotFound       = errors.New("plan type not found")
	ErrPlanNotPayable         = errors.New("plan does not accept payments in its current status")
	ErrInvalidPaymentAmount   = errors.New("payment amount must be positive")
)

// LedgerError decorates a sentinel with the plan and installments it concerns.
// errors.Is(err, ErrOverAllocation) matches through Unwrap.
type LedgerError struct {
	Kind           error
	PlanID         string
	InstallmentIDs []string
	Remainder      decimal.Decimal
	Detail         string
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.PlanID != "" {
		fmt.Fprintf(&b, " (plan %s", e.PlanID)
		if len(e.InstallmentIDs) > 0 {
			fmt.Fprintf(&b, ", installments %s", strings.Join(e.InstallmentIDs, ","))
		}
		b.WriteString(")")
	}
	if e.Remainder.IsPositive() {
		fmt.Fprintf(&b, ": remainder %s", e.Remainder.StringFixed(2))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *LedgerError) Unwrap() error { return e.Kind }

func invalidParameters(format string, args ...any) error {
	return &LedgerError{Kind: ErrInvalidPlanParameters, Detail: fmt.Sprintf(format, args...)}
}

// InvariantViolation builds the fatal error raised when a ledger invariant
// fails on a plan.
func InvariantViolation(planID string, installmentIDs []string, detail string) error {
	return &LedgerError{
		Kind:           ErrInvariantViolation,
		PlanID:         planID,
		InstallmentIDs: installmentIDs,
		Detail:         detail,
	}
}

// IsFatal reports whether err signals corrupted ledger state that must halt
// processing of the plan and be escalated to an operator.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsLogical reports whether err is a deterministic business rejection that a
// retry cannot fix.
func IsLogical(err error) bool {
	for _, kind := range []error{
		ErrInvalidPlanParameters,
		ErrOverAllocation,
		ErrAccrualWindowInvalid,
		ErrInvariantViolation,
		ErrDuplicatePayment,
		ErrPlanNotFound,
		ErrPlanTypeNotFound,
		ErrPlanNotPayable,
		ErrInvalidPaymentAmount,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
