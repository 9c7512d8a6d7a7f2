package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "integer", input: "100", want: "100.00"},
		{name: "two places", input: "99.99", want: "99.99"},
		{name: "trailing zeros are not extra precision", input: "10.500", want: "10.50"},
		{name: "negative", input: "-50.5", want: "-50.50"},
		{name: "three places", input: "0.001", wantErr: ErrTooPrecise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, Fixed(got))
		})
	}

	t.Run("not a number", func(t *testing.T) {
		_, err := Parse("abc")
		require.Error(t, err)
	})
}

func TestRoundAndTruncate(t *testing.T) {
	assert.Equal(t, "1.67", Fixed(Round(d("1.666666"))))
	assert.Equal(t, "1.66", Fixed(Truncate(d("1.666666"))))
	assert.Equal(t, "0.01", Fixed(Round(d("0.005"))))
	assert.Equal(t, "-0.01", Fixed(Round(d("-0.005"))))
}

func TestFloorAtZero(t *testing.T) {
	assert.True(t, FloorAtZero(d("-3.20")).IsZero())
	assert.Equal(t, "3.20", Fixed(FloorAtZero(d("3.2"))))
}

func TestMin(t *testing.T) {
	assert.Equal(t, "1.00", Fixed(Min(d("1"), d("2"))))
	assert.Equal(t, "1.00", Fixed(Min(d("2"), d("1"))))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "100.00", Fixed(Percent(d("1000"), d("10"))))
	assert.Equal(t, "0.05", Fixed(Percent(d("1"), d("5"))))
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		n        int
		wantPer  string
		wantLast string
	}{
		{name: "even", total: "1100.00", n: 4, wantPer: "275.00", wantLast: "275.00"},
		{name: "remainder on last", total: "100.00", n: 3, wantPer: "33.33", wantLast: "33.34"},
		{name: "single part", total: "59.99", n: 1, wantPer: "59.99", wantLast: "59.99"},
		{name: "tiny total", total: "0.05", n: 6, wantPer: "0.00", wantLast: "0.05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			per, last, err := Split(d(tt.total), tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPer, Fixed(per))
			assert.Equal(t, tt.wantLast, Fixed(last))

			sum := per.Mul(decimal.NewFromInt(int64(tt.n - 1))).Add(last)
			assert.True(t, sum.Equal(d(tt.total)), "parts must add back to the total")
		})
	}

	t.Run("zero parts", func(t *testing.T) {
		_, _, err := Split(d("10"), 0)
		require.Error(t, err)
	})
}
