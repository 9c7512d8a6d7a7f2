// Package money holds the fixed-point helpers used for every monetary amount
// in the ledger. Amounts are shopspring decimals kept at two decimal places;
// binary floating point is never used.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept on a monetary amount.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// ErrTooPrecise is returned by Parse when the input has more than Scale
// fractional digits.
var ErrTooPrecise = errors.New("amount has more than 2 decimal places")

// Parse converts a string into an amount, rejecting values that cannot be
// represented at two decimal places without rounding.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.Equal(d.Round(Scale)) {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, ErrTooPrecise)
	}
	return d, nil
}

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Truncate drops everything past the second decimal place.
func Truncate(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(Scale)
}

// FloorAtZero returns d, or zero when d is negative.
func FloorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Percent returns amount × rate / 100 without rounding.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

// Fixed formats d with exactly two decimal places, e.g. "275.00".
func Fixed(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// Split divides total into n parts. Every part but the last is total/n
// truncated to the cent; the last part absorbs the remainder so that
// per×(n−1) + last == total exactly.
func Split(total decimal.Decimal, n int) (per, last decimal.Decimal, err error) {
	if n < 1 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("split into %d parts: count must be at least 1", n)
	}
	count := decimal.NewFromInt(int64(n))
	per = Truncate(total.Div(count))
	last = total.Sub(per.Mul(count.Sub(decimal.NewFromInt(1))))
	return per, last, nil
}
