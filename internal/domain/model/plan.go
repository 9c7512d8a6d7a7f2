package model

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bnpl/internal/domain/event"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// Plan aggregate root
// ---------------------------------------------------------------------------

// Plan is an installment plan financing one order. It is an immutable
// aggregate: mutations return a new copy carrying the raised domain events.
type Plan struct {
	id                   string
	tenantID             string
	orderID              string
	planTypeID           string
	orderTotal           decimal.Decimal
	initialPayment       decimal.Decimal
	installmentCount     int
	amountPerInstallment decimal.Decimal
	totalPayable         decimal.Decimal
	totalInterest        decimal.Decimal
	interestRate         decimal.Decimal
	lateInterestRate     decimal.Decimal
	referencePeriodDays  int
	startDate            time.Time
	nextDueDate          time.Time
	remainingBalance     decimal.Decimal
	status               valueobject.PlanStatus
	installments         []Installment
	version              int
	createdAt            time.Time
	updatedAt            time.Time
	domainEvents         []event.DomainEvent
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewPlan computes the amortization for an order and lays out its schedule.
// The plan starts in REQUESTED status with the full payable amount owed.
func NewPlan(
	tenantID, orderID string,
	planType PlanType,
	orderTotal, initialPayment decimal.Decimal,
	installmentCount int,
	startDate, now time.Time,
) (Plan, error) {
	if tenantID == "" {
		return Plan{}, errors.New("tenant ID is required")
	}
	if orderID == "" {
		return Plan{}, errors.New("order ID is required")
	}

	quote, err := ComputePlan(&planType, orderTotal, initialPayment, installmentCount)
	if err != nil {
		return Plan{}, err
	}
	schedule, err := BuildSchedule(quote, startDate, planType.DurationDays())
	if err != nil {
		return Plan{}, err
	}

	installments := make([]Installment, 0, len(schedule))
	for _, row := range schedule {
		installments = append(installments, NewInstallment(row.Number, row.DueDate, row.Amount))
	}

	id := uuid.NewString()
	plan := Plan{
		id:                   id,
		tenantID:             tenantID,
		orderID:              orderID,
		planTypeID:           planType.ID(),
		orderTotal:           quote.OrderTotal,
		initialPayment:       quote.InitialPayment,
		installmentCount:     quote.InstallmentCount,
		amountPerInstallment: quote.AmountPerInstallment,
		totalPayable:         quote.TotalPayable,
		totalInterest:        quote.TotalInterest,
		interestRate:         quote.InterestRate,
		lateInterestRate:     quote.LateInterestRate,
		referencePeriodDays:  planType.DurationDays(),
		startDate:            startDate.UTC(),
		remainingBalance:     quote.TotalPayable,
		status:               valueobject.PlanStatusRequested,
		installments:         installments,
		version:              1,
		createdAt:            now.UTC(),
		updatedAt:            now.UTC(),
	}
	plan.nextDueDate = plan.computeNextDueDate()

	plan.domainEvents = append(plan.domainEvents, event.NewPlanCreated(
		id, tenantID, orderID, planType.ID(),
		quote.OrderTotal, quote.TotalPayable, quote.InstallmentCount,
		plan.nextDueDate, now,
	))

	return plan, nil
}

// ReconstructPlan rebuilds a Plan aggregate from persistence. Installments
// are ordered by number.
func ReconstructPlan(
	id, tenantID, orderID, planTypeID string,
	orderTotal, initialPayment decimal.Decimal,
	installmentCount int,
	amountPerInstallment, totalPayable, totalInterest decimal.Decimal,
	interestRate, lateInterestRate decimal.Decimal,
	referencePeriodDays int,
	startDate, nextDueDate time.Time,
	remainingBalance decimal.Decimal,
	status valueobject.PlanStatus,
	installments []Installment,
	version int,
	createdAt, updatedAt time.Time,
) Plan {
	sorted := make([]Installment, len(installments))
	copy(sorted, installments)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].number < sorted[b].number })

	return Plan{
		id:                   id,
		tenantID:             tenantID,
		orderID:              orderID,
		planTypeID:           planTypeID,
		orderTotal:           orderTotal,
		initialPayment:       initialPayment,
		installmentCount:     installmentCount,
		amountPerInstallment: amountPerInstallment,
		totalPayable:         totalPayable,
		totalInterest:        totalInterest,
		interestRate:         interestRate,
		lateInterestRate:     lateInterestRate,
		referencePeriodDays:  referencePeriodDays,
		startDate:            startDate,
		nextDueDate:          nextDueDate,
		remainingBalance:     remainingBalance,
		status:               status,
		installments:         sorted,
		version:              version,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}

// ---------------------------------------------------------------------------
// Lifecycle transitions
// ---------------------------------------------------------------------------

// Activate transitions REQUESTED -> ACTIVE.
func (p Plan) Activate(now time.Time) (Plan, error) {
	if !p.status.Equal(valueobject.PlanStatusRequested) {
		return p, valueobject.ErrInvalidStatusTransition
	}
	next := p.transitioned(valueobject.PlanStatusActive, now)
	next.domainEvents = append(next.domainEvents, event.NewPlanActivated(p.id, p.tenantID, p.status.String(), p.remainingBalance, now))
	return next, nil
}

// Cancel transitions REQUESTED -> CANCELLED.
func (p Plan) Cancel(now time.Time) (Plan, error) {
	if !p.status.Equal(valueobject.PlanStatusRequested) {
		return p, valueobject.ErrInvalidStatusTransition
	}
	next := p.transitioned(valueobject.PlanStatusCancelled, now)
	next.nextDueDate = time.Time{}
	next.domainEvents = append(next.domainEvents, event.NewPlanCancelled(p.id, p.tenantID, p.status.String(), p.remainingBalance, now))
	return next, nil
}

// MarkDefaulted transitions ACTIVE -> DEFAULTED.
func (p Plan) MarkDefaulted(now time.Time) (Plan, error) {
	if !p.status.Equal(valueobject.PlanStatusActive) {
		return p, valueobject.ErrInvalidStatusTransition
	}
	next := p.transitioned(valueobject.PlanStatusDefaulted, now)
	next.domainEvents = append(next.domainEvents, event.NewPlanDefaulted(p.id, p.tenantID, p.status.String(), p.remainingBalance, now))
	return next, nil
}

// Refund marks every unsettled installment REFUNDED and completes the plan.
// Allowed from ACTIVE or DEFAULTED.
func (p Plan) Refund(now time.Time) (Plan, error) {
	if !p.status.AcceptsPayments() {
		return p, valueobject.ErrInvalidStatusTransition
	}

	next := p.transitioned(valueobject.PlanStatusCompleted, now)
	next.installments = p.Installments()

	var refunded []int
	for idx, inst := range next.installments {
		if inst.status.IsSettled() {
			continue
		}
		next.installments[idx] = inst.MarkRefunded(now)
		refunded = append(refunded, inst.number)
	}
	next.remainingBalance = decimal.Zero
	next.nextDueDate = time.Time{}
	next.domainEvents = append(next.domainEvents, event.NewPlanRefunded(p.id, p.tenantID, refunded, p.remainingBalance, now))
	return next, nil
}

func (p Plan) transitioned(status valueobject.PlanStatus, now time.Time) Plan {
	next := p
	next.status = status
	next.updatedAt = now.UTC()
	next.domainEvents = copyEvents(p.domainEvents)
	return next
}

// ---------------------------------------------------------------------------
// Ledger movements
// ---------------------------------------------------------------------------

// ApplyAllocation replaces the installments with the result of allocating a
// payment. The plan balance drops by what was paid into the buckets plus any
// forwarded credit realized by an installment that closed in this payment.
// The plan completes when no installment remains open.
func (p Plan) ApplyAllocation(installments []Installment, amount decimal.Decimal, paymentDate time.Time) (Plan, error) {
	if err := p.sameSchedule(installments); err != nil {
		return p, err
	}

	applied := decimal.Zero
	realized := decimal.Zero
	var touched []int
	for idx, after := range installments {
		before := p.installments[idx]
		delta := after.AmountPaid().Sub(before.AmountPaid())
		if delta.IsPositive() {
			applied = applied.Add(delta)
		}
		if !before.status.IsPaid() && after.status.IsPaid() {
			realized = realized.Add(after.overPaymentCarried)
		}
		if !before.status.Equal(after.status) || delta.IsPositive() {
			touched = append(touched, after.number)
		}
	}

	next := p
	next.installments = copyInstallments(installments)
	next.remainingBalance = p.remainingBalance.Sub(applied).Sub(realized)
	next.nextDueDate = next.computeNextDueDate()
	next.updatedAt = paymentDate.UTC()
	next.domainEvents = copyEvents(p.domainEvents)
	next.domainEvents = append(next.domainEvents, event.NewPaymentApplied(
		p.id, p.tenantID, amount, applied, next.remainingBalance, touched, paymentDate, paymentDate,
	))

	return next.completeIfSettled(paymentDate), nil
}

// ApplyAccrual replaces the installments with the result of a late-interest
// run. The plan balance grows by the interest added; debt moved between
// installments by a roll-over leaves it unchanged.
func (p Plan) ApplyAccrual(installments []Installment, asOf time.Time) (Plan, error) {
	if err := p.sameSchedule(installments); err != nil {
		return p, err
	}

	added := decimal.Zero
	var charged []int
	var rolled []event.RollOver
	takenOver := decimal.Zero
	for idx, after := range installments {
		before := p.installments[idx]
		delta := after.lateInterest.Sub(before.lateInterest).Sub(takenOver)
		if delta.IsPositive() {
			added = added.Add(delta)
			charged = append(charged, after.number)
		}

		takenOver = after.interestRolledOver.Sub(before.interestRolledOver)
		if !before.status.IsRolledOver() && after.status.IsRolledOver() && idx+1 < len(installments) {
			rolled = append(rolled, event.RollOver{
				From:         after.number,
				To:           installments[idx+1].number,
				Principal:    after.principalRolledOver,
				LateInterest: after.interestRolledOver,
			})
		}
	}

	next := p
	next.installments = copyInstallments(installments)
	next.remainingBalance = p.remainingBalance.Add(added)
	next.nextDueDate = next.computeNextDueDate()
	next.updatedAt = asOf.UTC()
	next.domainEvents = copyEvents(p.domainEvents)
	if added.IsPositive() {
		next.domainEvents = append(next.domainEvents, event.NewLateInterestAccrued(
			p.id, p.tenantID, added, next.remainingBalance, charged, asOf, asOf,
		))
	}
	if len(rolled) > 0 {
		next.domainEvents = append(next.domainEvents, event.NewInstallmentsRolledOver(
			p.id, p.tenantID, rolled, next.nextDueDate, asOf,
		))
	}
	return next, nil
}

func (p Plan) completeIfSettled(now time.Time) Plan {
	if p.status.IsTerminal() || len(p.installments) == 0 {
		return p
	}
	for _, inst := range p.installments {
		if !inst.status.IsSettled() {
			return p
		}
	}
	p.status = valueobject.PlanStatusCompleted
	p.nextDueDate = time.Time{}
	p.domainEvents = append(p.domainEvents, event.NewPlanCompleted(p.id, p.tenantID, now))
	return p
}

func (p Plan) sameSchedule(installments []Installment) error {
	if len(installments) != len(p.installments) {
		return fmt.Errorf("plan %s: expected %d installments, got %d", p.id, len(p.installments), len(installments))
	}
	for idx, inst := range installments {
		if inst.id != p.installments[idx].id {
			return fmt.Errorf("plan %s: installment %d does not belong to the plan", p.id, inst.number)
		}
	}
	return nil
}

func (p Plan) computeNextDueDate() time.Time {
	for _, inst := range p.installments {
		if !inst.status.IsSettled() {
			return inst.dueDate
		}
	}
	return time.Time{}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (p Plan) ID() string                              { return p.id }
func (p Plan) TenantID() string                        { return p.tenantID }
func (p Plan) OrderID() string                         { return p.orderID }
func (p Plan) PlanTypeID() string                      { return p.planTypeID }
func (p Plan) OrderTotal() decimal.Decimal             { return p.orderTotal }
func (p Plan) InitialPayment() decimal.Decimal         { return p.initialPayment }
func (p Plan) InstallmentCount() int                   { return p.installmentCount }
func (p Plan) AmountPerInstallment() decimal.Decimal   { return p.amountPerInstallment }
func (p Plan) TotalPayable() decimal.Decimal           { return p.totalPayable }
func (p Plan) TotalInterest() decimal.Decimal          { return p.totalInterest }
func (p Plan) InterestRate() decimal.Decimal           { return p.interestRate }
func (p Plan) LateInterestRate() decimal.Decimal       { return p.lateInterestRate }
func (p Plan) ReferencePeriodDays() int                { return p.referencePeriodDays }
func (p Plan) StartDate() time.Time                    { return p.startDate }
func (p Plan) NextDueDate() time.Time                  { return p.nextDueDate }
func (p Plan) RemainingBalance() decimal.Decimal       { return p.remainingBalance }
func (p Plan) Status() valueobject.PlanStatus          { return p.status }
func (p Plan) Version() int                            { return p.version }
func (p Plan) CreatedAt() time.Time                    { return p.createdAt }
func (p Plan) UpdatedAt() time.Time                    { return p.updatedAt }
func (p Plan) DomainEvents() []event.DomainEvent       { return p.domainEvents }

// Installments returns a copy of the installments in number order.
func (p Plan) Installments() []Installment {
	return copyInstallments(p.installments)
}

// ClearEvents returns a copy with an empty event list.
func (p Plan) ClearEvents() Plan {
	next := p
	next.domainEvents = nil
	return next
}

func copyInstallments(src []Installment) []Installment {
	if src == nil {
		return nil
	}
	dst := make([]Installment, len(src))
	copy(dst, src)
	return dst
}

func copyEvents(src []event.DomainEvent) []event.DomainEvent {
	if len(src) == 0 {
		return nil
	}
	dst := make([]event.DomainEvent, len(src))
	copy(dst, src)
	return dst
}
