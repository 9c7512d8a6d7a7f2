package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/valueobject"
	pgutil "github.com/bibbank/bnpl/pkg/postgres"
)

const codeUniqueViolation = "23505"

const planColumns = `
	id, tenant_id, order_id, plan_type_id,
	order_total, initial_payment, installment_count,
	amount_per_installment, total_payable, total_interest,
	interest_rate, late_interest_rate, reference_period_days,
	start_date, next_due_date, remaining_balance,
	status, version, created_at, updated_at`

const installmentColumns = `
	id, number, due_date,
	base_amount, arrears_carried, over_payment_carried, late_interest,
	arrears_paid, late_interest_paid, base_paid,
	principal_rolled_over, interest_rolled_over, accrual_residue,
	status, last_payment_date, last_accrual_date, refund_date`

type scannable interface {
	Scan(dest ...any) error
}

// planRow is a plan header read without its installments.
type planRow struct {
	id, tenantID, orderID, planTypeID  string
	orderTotal, initialPayment         decimal.Decimal
	installmentCount                   int
	amountPerInstallment, totalPayable decimal.Decimal
	totalInterest                      decimal.Decimal
	interestRate, lateInterestRate     decimal.Decimal
	referencePeriodDays                int
	startDate                          time.Time
	nextDueDate                        *time.Time
	remainingBalance                   decimal.Decimal
	status                             string
	version                            int
	createdAt, updatedAt               time.Time
}

func scanPlanRow(s scannable) (planRow, error) {
	var r planRow
	err := s.Scan(
		&r.id, &r.tenantID, &r.orderID, &r.planTypeID,
		&r.orderTotal, &r.initialPayment, &r.installmentCount,
		&r.amountPerInstallment, &r.totalPayable, &r.totalInterest,
		&r.interestRate, &r.lateInterestRate, &r.referencePeriodDays,
		&r.startDate, &r.nextDueDate, &r.remainingBalance,
		&r.status, &r.version, &r.createdAt, &r.updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return planRow{}, model.ErrPlanNotFound
	}
	if err != nil {
		return planRow{}, fmt.Errorf("scan plan: %w", err)
	}
	return r, nil
}

func (r planRow) toPlan(installments []model.Installment) (model.Plan, error) {
	status, err := valueobject.NewPlanStatus(r.status)
	if err != nil {
		return model.Plan{}, fmt.Errorf("parse plan status: %w", err)
	}
	return model.ReconstructPlan(
		r.id, r.tenantID, r.orderID, r.planTypeID,
		r.orderTotal, r.initialPayment, r.installmentCount,
		r.amountPerInstallment, r.totalPayable, r.totalInterest,
		r.interestRate, r.lateInterestRate, r.referencePeriodDays,
		r.startDate.UTC(), fromNullTime(r.nextDueDate), r.remainingBalance,
		status, installments, r.version, r.createdAt.UTC(), r.updatedAt.UTC(),
	), nil
}

// loadPlan reads a plan and its installments; suffix may add a locking clause.
func loadPlan(ctx context.Context, q pgutil.Querier, where, suffix string, args ...any) (model.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE ` + where + ` ` + suffix
	row, err := scanPlanRow(q.QueryRow(ctx, query, args...))
	if err != nil {
		return model.Plan{}, err
	}
	installments, err := loadInstallments(ctx, q, row.id)
	if err != nil {
		return model.Plan{}, err
	}
	return row.toPlan(installments)
}

func loadInstallments(ctx context.Context, q pgutil.Querier, planID string) ([]model.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE plan_id = $1 ORDER BY number`
	rows, err := q.Query(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("query installments: %w", err)
	}
	defer rows.Close()

	var out []model.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstallment(s scannable) (model.Installment, error) {
	var (
		id                                       string
		number                                   int
		dueDate                                  time.Time
		base, arrears, overPayment, lateInterest decimal.Decimal
		arrearsPaid, lateInterestPaid, basePaid  decimal.Decimal
		rolledPrincipal, rolledInterest, residue decimal.Decimal
		statusStr                                string
		lastPayment, lastAccrual, refund         *time.Time
	)
	err := s.Scan(
		&id, &number, &dueDate,
		&base, &arrears, &overPayment, &lateInterest,
		&arrearsPaid, &lateInterestPaid, &basePaid,
		&rolledPrincipal, &rolledInterest, &residue,
		&statusStr, &lastPayment, &lastAccrual, &refund,
	)
	if err != nil {
		return model.Installment{}, fmt.Errorf("scan installment: %w", err)
	}

	status, err := valueobject.NewInstallmentStatus(statusStr)
	if err != nil {
		return model.Installment{}, fmt.Errorf("parse installment status: %w", err)
	}

	return model.ReconstructInstallment(
		id, number, dueDate.UTC(),
		base, arrears, overPayment, lateInterest,
		arrearsPaid, lateInterestPaid, basePaid,
		rolledPrincipal, rolledInterest, residue,
		status, fromNullTime(lastPayment), fromNullTime(lastAccrual), fromNullTime(refund),
	), nil
}

func scanPlanType(s scannable) (model.PlanType, error) {
	var (
		id, name, description          string
		durationDays                   int
		interestRate, lateInterestRate decimal.Decimal
		createdAt                      time.Time
	)
	err := s.Scan(&id, &name, &durationDays, &interestRate, &lateInterestRate, &description, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PlanType{}, model.ErrPlanTypeNotFound
	}
	if err != nil {
		return model.PlanType{}, fmt.Errorf("scan plan type: %w", err)
	}
	return model.ReconstructPlanType(id, name, durationDays, interestRate, lateInterestRate, description, createdAt.UTC()), nil
}

func scanSnapshot(s scannable) (model.SettlementSnapshot, error) {
	var (
		id, planID, reasonStr, canonical, hash string
		createdAt                              time.Time
	)
	if err := s.Scan(&id, &planID, &reasonStr, &canonical, &hash, &createdAt); err != nil {
		return model.SettlementSnapshot{}, err
	}
	reason, err := valueobject.NewSnapshotReason(reasonStr)
	if err != nil {
		return model.SettlementSnapshot{}, fmt.Errorf("parse snapshot reason: %w", err)
	}
	return model.ReconstructSettlementSnapshot(id, planID, reason, canonical, hash, createdAt.UTC()), nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromNullTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
