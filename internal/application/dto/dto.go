package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// CreatePlanTypeRequest carries a new catalog entry.
type CreatePlanTypeRequest struct {
	Name             string          `json:"name"`
	DurationDays     int             `json:"duration_days"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	LateInterestRate decimal.Decimal `json:"late_interest_rate"`
	Description      string          `json:"description"`
}

// QuotePlanRequest asks what a plan would cost without creating it.
type QuotePlanRequest struct {
	PlanTypeID       string          `json:"plan_type_id"`
	OrderTotal       decimal.Decimal `json:"order_total"`
	InitialPayment   decimal.Decimal `json:"initial_payment"`
	InstallmentCount int             `json:"installment_count"`
	// StartDate defaults to now when zero.
	StartDate time.Time `json:"start_date"`
}

// CreatePlanRequest finances an order with an installment plan.
type CreatePlanRequest struct {
	StartDate           time.Time       `json:"start_date"`
	TenantID            string          `json:"tenant_id"`
	OrderID             string          `json:"order_id"`
	PlanTypeID          string          `json:"plan_type_id"`
	OrderTotal          decimal.Decimal `json:"order_total"`
	InitialPayment      decimal.Decimal `json:"initial_payment"`
	InstallmentCount    int             `json:"installment_count"`
	ActivateImmediately bool            `json:"activate_immediately"`
}

// PlanTransition names a lifecycle transition.
type PlanTransition string

const (
	TransitionActivate PlanTransition = "activate"
	TransitionCancel   PlanTransition = "cancel"
	TransitionDefault  PlanTransition = "default"
	TransitionRefund   PlanTransition = "refund"
)

// TransitionPlanRequest moves a plan through its lifecycle.
type TransitionPlanRequest struct {
	TenantID   string         `json:"tenant_id"`
	PlanID     string         `json:"plan_id"`
	Transition PlanTransition `json:"transition"`
}

// ApplyPaymentRequest carries an incoming payment against a plan.
type ApplyPaymentRequest struct {
	PaymentDate      time.Time       `json:"payment_date"`
	TenantID         string          `json:"tenant_id"`
	PlanID           string          `json:"plan_id"`
	Amount           decimal.Decimal `json:"amount"`
	IdempotencyToken string          `json:"idempotency_token"`
}

// AccrueLateInterestRequest runs accrual on one plan. AsOf defaults to now.
type AccrueLateInterestRequest struct {
	AsOf     time.Time `json:"as_of"`
	TenantID string    `json:"tenant_id"`
	PlanID   string    `json:"plan_id"`
}

// RunLateInterestAccrualRequest runs accrual on every overdue plan.
type RunLateInterestAccrualRequest struct {
	AsOf      time.Time `json:"as_of"`
	BatchSize int       `json:"batch_size"`
}

// GetPlanRequest identifies a plan by ID or, when PlanID is empty, by order.
type GetPlanRequest struct {
	TenantID string `json:"tenant_id"`
	PlanID   string `json:"plan_id"`
	OrderID  string `json:"order_id"`
}

// ListSnapshotsRequest identifies the plan whose snapshots to list.
type ListSnapshotsRequest struct {
	TenantID string `json:"tenant_id"`
	PlanID   string `json:"plan_id"`
}

// VerifySnapshotsRequest identifies the plan whose snapshots to audit.
type VerifySnapshotsRequest struct {
	TenantID string `json:"tenant_id"`
	PlanID   string `json:"plan_id"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// PlanTypeResponse is the external representation of a plan type.
type PlanTypeResponse struct {
	CreatedAt        time.Time       `json:"created_at"`
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	LateInterestRate decimal.Decimal `json:"late_interest_rate"`
	DurationDays     int             `json:"duration_days"`
}

// ListPlanTypesResponse lists the catalog.
type ListPlanTypesResponse struct {
	PlanTypes []PlanTypeResponse `json:"plan_types"`
}

// ScheduleEntryResponse is one row of a quoted schedule.
type ScheduleEntryResponse struct {
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
	Number  int             `json:"number"`
}

// QuoteResponse is the cost breakdown of a prospective plan.
type QuoteResponse struct {
	RemainingPrincipal     decimal.Decimal         `json:"remaining_principal"`
	TotalInterest          decimal.Decimal         `json:"total_interest"`
	TotalPayable           decimal.Decimal         `json:"total_payable"`
	AmountPerInstallment   decimal.Decimal         `json:"amount_per_installment"`
	FinalInstallmentAmount decimal.Decimal         `json:"final_installment_amount"`
	Schedule               []ScheduleEntryResponse `json:"schedule"`
	InstallmentCount       int                     `json:"installment_count"`
}

// InstallmentResponse is the external representation of an installment.
type InstallmentResponse struct {
	DueDate             time.Time       `json:"due_date"`
	LastPaymentDate     *time.Time      `json:"last_payment_date,omitempty"`
	LastAccrualDate     *time.Time      `json:"last_accrual_date,omitempty"`
	RefundDate          *time.Time      `json:"refund_date,omitempty"`
	ID                  string          `json:"id"`
	Status              string          `json:"status"`
	BaseAmount          decimal.Decimal `json:"base_amount"`
	ArrearsCarried      decimal.Decimal `json:"arrears_carried"`
	OverPaymentCarried  decimal.Decimal `json:"over_payment_carried"`
	LateInterest        decimal.Decimal `json:"late_interest"`
	PrincipalRolledOver decimal.Decimal `json:"principal_rolled_over"`
	InterestRolledOver  decimal.Decimal `json:"interest_rolled_over"`
	TotalDue            decimal.Decimal `json:"total_due"`
	AmountPaid          decimal.Decimal `json:"amount_paid"`
	Outstanding         decimal.Decimal `json:"outstanding"`
	Number              int             `json:"number"`
}

// PlanResponse is the external representation of a plan.
type PlanResponse struct {
	StartDate            time.Time             `json:"start_date"`
	NextDueDate          *time.Time            `json:"next_due_date,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	ID                   string                `json:"id"`
	TenantID             string                `json:"tenant_id"`
	OrderID              string                `json:"order_id"`
	PlanTypeID           string                `json:"plan_type_id"`
	Status               string                `json:"status"`
	OrderTotal           decimal.Decimal       `json:"order_total"`
	InitialPayment       decimal.Decimal       `json:"initial_payment"`
	AmountPerInstallment decimal.Decimal       `json:"amount_per_installment"`
	TotalPayable         decimal.Decimal       `json:"total_payable"`
	TotalInterest        decimal.Decimal       `json:"total_interest"`
	InterestRate         decimal.Decimal       `json:"interest_rate"`
	LateInterestRate     decimal.Decimal       `json:"late_interest_rate"`
	RemainingBalance     decimal.Decimal       `json:"remaining_balance"`
	Installments         []InstallmentResponse `json:"installments"`
	InstallmentCount     int                   `json:"installment_count"`
	Version              int                   `json:"version"`
}

// AllocationLineResponse is what a payment did to one installment.
type AllocationLineResponse struct {
	InstallmentID         string          `json:"installment_id"`
	NewStatus             string          `json:"new_status"`
	AppliedToArrears      decimal.Decimal `json:"applied_to_arrears"`
	AppliedToLateInterest decimal.Decimal `json:"applied_to_late_interest"`
	AppliedToBase         decimal.Decimal `json:"applied_to_base"`
	OverPayment           decimal.Decimal `json:"over_payment"`
	Number                int             `json:"number"`
}

// PaymentResponse is the outcome of an applied payment.
type PaymentResponse struct {
	PlanID           string                   `json:"plan_id"`
	PlanStatus       string                   `json:"plan_status"`
	SnapshotHash     string                   `json:"snapshot_hash"`
	Amount           decimal.Decimal          `json:"amount"`
	Applied          decimal.Decimal          `json:"applied"`
	RemainingBalance decimal.Decimal          `json:"remaining_balance"`
	Breakdown        []AllocationLineResponse `json:"breakdown"`
}

// AccrualLineResponse is the interest charged to one installment.
type AccrualLineResponse struct {
	InstallmentID string          `json:"installment_id"`
	NewStatus     string          `json:"new_status"`
	UnpaidBase    decimal.Decimal `json:"unpaid_base"`
	InterestAdded decimal.Decimal `json:"interest_added"`
	Number        int             `json:"number"`
	OverdueDays   int             `json:"overdue_days"`
}

// RollOverResponse is unpaid debt moved from one installment to the next.
type RollOverResponse struct {
	Principal    decimal.Decimal `json:"principal"`
	LateInterest decimal.Decimal `json:"late_interest"`
	FromNumber   int             `json:"from_number"`
	ToNumber     int             `json:"to_number"`
}

// AccrualResponse is the outcome of accrual on one plan.
type AccrualResponse struct {
	AsOf             time.Time             `json:"as_of"`
	PlanID           string                `json:"plan_id"`
	SnapshotHash     string                `json:"snapshot_hash,omitempty"`
	InterestAdded    decimal.Decimal       `json:"interest_added"`
	RemainingBalance decimal.Decimal       `json:"remaining_balance"`
	Accruals         []AccrualLineResponse `json:"accruals"`
	RollOvers        []RollOverResponse    `json:"roll_overs,omitempty"`
	SkippedNumbers   []int                 `json:"skipped_installments,omitempty"`
	NoOp             bool                  `json:"no_op"`
}

// AccrualFailure names a plan the batch run could not accrue.
type AccrualFailure struct {
	TenantID string `json:"tenant_id"`
	PlanID   string `json:"plan_id"`
	Error    string `json:"error"`
	Fatal    bool   `json:"fatal"`
}

// RunAccrualResponse summarises a batch accrual run.
type RunAccrualResponse struct {
	AsOf          time.Time        `json:"as_of"`
	InterestAdded decimal.Decimal  `json:"interest_added"`
	Failures      []AccrualFailure `json:"failures,omitempty"`
	Processed     int              `json:"processed"`
	Mutated       int              `json:"mutated"`
}

// SnapshotResponse is the external representation of a settlement snapshot.
type SnapshotResponse struct {
	CreatedAt      time.Time `json:"created_at"`
	SnapshotID     string    `json:"snapshot_id"`
	PlanID         string    `json:"plan_id"`
	Reason         string    `json:"reason"`
	CanonicalState string    `json:"canonical_state"`
	ContentHash    string    `json:"content_hash"`
}

// ListSnapshotsResponse lists a plan's snapshots oldest first.
type ListSnapshotsResponse struct {
	Snapshots []SnapshotResponse `json:"snapshots"`
}

// VerifySnapshotsResponse reports snapshots whose hash no longer matches.
type VerifySnapshotsResponse struct {
	PlanID     string   `json:"plan_id"`
	Mismatched []string `json:"mismatched_snapshot_ids,omitempty"`
	Checked    int      `json:"checked"`
	Valid      bool     `json:"valid"`
}
