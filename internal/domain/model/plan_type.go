package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var maxRate = decimal.NewFromInt(100)

// PlanType is a catalog entry describing the terms of an installment product.
// It is created by an administrator and never changed by the ledger.
type PlanType struct {
	id               string
	name             string
	durationDays     int
	interestRate     decimal.Decimal
	lateInterestRate decimal.Decimal
	description      string
	createdAt        time.Time
}

// NewPlanType validates and creates a PlanType. Rates are percentages.
func NewPlanType(
	name string,
	durationDays int,
	interestRate, lateInterestRate decimal.Decimal,
	description string,
	now time.Time,
) (PlanType, error) {
	if strings.TrimSpace(name) == "" {
		return PlanType{}, invalidParameters("plan type name is required")
	}
	if durationDays <= 0 {
		return PlanType{}, invalidParameters("duration days must be positive, got %d", durationDays)
	}
	if err := validateRate("interest rate", interestRate); err != nil {
		return PlanType{}, err
	}
	if err := validateRate("late interest rate", lateInterestRate); err != nil {
		return PlanType{}, err
	}

	return PlanType{
		id:               uuid.NewString(),
		name:             strings.TrimSpace(name),
		durationDays:     durationDays,
		interestRate:     interestRate,
		lateInterestRate: lateInterestRate,
		description:      description,
		createdAt:        now.UTC(),
	}, nil
}

// ReconstructPlanType rebuilds a PlanType from persistence.
func ReconstructPlanType(
	id, name string,
	durationDays int,
	interestRate, lateInterestRate decimal.Decimal,
	description string,
	createdAt time.Time,
) PlanType {
	return PlanType{
		id:               id,
		name:             name,
		durationDays:     durationDays,
		interestRate:     interestRate,
		lateInterestRate: lateInterestRate,
		description:      description,
		createdAt:        createdAt,
	}
}

func validateRate(label string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(maxRate) {
		return invalidParameters("%s must be within [0,100], got %s", label, rate.String())
	}
	return nil
}

func (p PlanType) ID() string                        { return p.id }
func (p PlanType) Name() string                      { return p.name }
func (p PlanType) DurationDays() int                 { return p.durationDays }
func (p PlanType) InterestRate() decimal.Decimal     { return p.interestRate }
func (p PlanType) LateInterestRate() decimal.Decimal { return p.lateInterestRate }
func (p PlanType) Description() string               { return p.description }
func (p PlanType) CreatedAt() time.Time              { return p.createdAt }
