package testutil

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fixed identifiers and instants for deterministic tests.
var (
	TestTenantID   = "00000000-0000-0000-0000-000000000010"
	TestCustomerID = "00000000-0000-0000-0000-000000000001"
	TestMerchantID = "00000000-0000-0000-0000-000000000002"
	TestOrderID    = "order-0001"

	// TestStart is midnight UTC on a fixed calendar day.
	TestStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Day returns TestStart shifted by n whole days.
func Day(n int) time.Time {
	return TestStart.AddDate(0, 0, n)
}

// Dec parses a decimal literal and panics on malformed input. Intended for
// table-driven tests only.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
