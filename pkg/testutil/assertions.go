package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// AssertDecimalEqual compares two amounts by value so that 1.5 and 1.50 are
// considered equal.
func AssertDecimalEqual(t *testing.T, expected string, actual decimal.Decimal) bool {
	t.Helper()
	want := decimal.RequireFromString(expected)
	if want.Equal(actual) {
		return true
	}
	return assert.Fail(t, "amounts differ", "expected %s, got %s", want.StringFixed(2), actual.StringFixed(2))
}
