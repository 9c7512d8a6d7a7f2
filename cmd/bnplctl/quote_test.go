package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bnpl/internal/application/dto"
)

func runQuote(t *testing.T, args ...string) (dto.QuoteResponse, error) {
	t.Helper()
	cmd := quoteCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		return dto.QuoteResponse{}, err
	}
	var resp dto.QuoteResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	return resp, nil
}

func TestQuoteCmd(t *testing.T) {
	t.Run("prices four equal installments", func(t *testing.T) {
		resp, err := runQuote(t, "--total", "1000", "--count", "4", "--rate", "10", "--start", "2024-01-01")
		require.NoError(t, err)

		assert.Equal(t, "1100.00", resp.TotalPayable.StringFixed(2))
		assert.Equal(t, "275.00", resp.AmountPerInstallment.StringFixed(2))
		require.Len(t, resp.Schedule, 4)
		assert.True(t, resp.Schedule[0].DueDate.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("puts the rounding remainder on the last installment", func(t *testing.T) {
		resp, err := runQuote(t, "--total", "100", "--count", "3", "--start", "2024-01-01")
		require.NoError(t, err)

		assert.Equal(t, "33.33", resp.AmountPerInstallment.StringFixed(2))
		assert.Equal(t, "33.34", resp.FinalInstallmentAmount.StringFixed(2))
	})

	t.Run("rejects an initial payment covering the order", func(t *testing.T) {
		_, err := runQuote(t, "--total", "100", "--initial", "100", "--count", "3")
		require.Error(t, err)
	})

	t.Run("rejects a malformed amount", func(t *testing.T) {
		_, err := runQuote(t, "--total", "ten")
		require.Error(t, err)
	})
}
