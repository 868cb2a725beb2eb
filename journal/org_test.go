package journal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRow() Row {
	return Row{
		ID:         "01J0ABCDEFGHJKMNPQRSTVWXYZ",
		TradeID:    "NVDA_2024-06-03",
		Symbol:     "NVDA",
		EntryDate:  "2024-06-03",
		ExitDate:   "2024-06-14",
		EntryPrice: 100,
		ExitPrice:  110,
		ExitQty:    20,
		RMultiple:  2,
		Outcome:    OutcomeOK,
	}
}

func TestFormatRowOrg(t *testing.T) {
	t.Parallel()

	result := FormatRowOrg(sampleRow())

	assert.Contains(t, result, "** Exit: NVDA full (RSTVWXYZ)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":ID: 01J0ABCDEFGHJKMNPQRSTVWXYZ")
	assert.Contains(t, result, ":TRADE_ID: NVDA_2024-06-03")
	assert.Contains(t, result, ":ENTRY_PRICE: 100.00")
	assert.Contains(t, result, ":EXIT_PRICE: 110.00")
	assert.Contains(t, result, ":EXIT_QTY: 20")
	assert.Contains(t, result, ":R_MULTIPLE: 2.00")
	assert.Contains(t, result, ":REALIZED_PL: 200.00")
	assert.Contains(t, result, ":END:")
	assert.NotContains(t, result, ":OUTCOME:")

	assert.Contains(t, result, "*** Thesis")
	assert.Contains(t, result, "*** Execution")
	assert.Contains(t, result, "*** Review")
}

func TestFormatRowOrgPartialDegenerate(t *testing.T) {
	t.Parallel()

	r := sampleRow()
	r.Partial = true
	r.ExitPrice = 95
	r.RMultiple = 0
	r.Outcome = OutcomeDegenerateRisk

	result := FormatRowOrg(r)
	assert.Contains(t, result, "** Exit: NVDA partial")
	assert.Contains(t, result, ":REALIZED_PL: -100.00")
	assert.Contains(t, result, ":OUTCOME: degenerate_risk")
}

func TestFormatRowsOrg(t *testing.T) {
	t.Parallel()

	a, b := sampleRow(), sampleRow()
	b.ID = "01J0ZZZZZZZZZZZZZZZZZZZZZZ"
	b.Symbol = "AAPL"

	result := FormatRowsOrg([]Row{a, b})
	assert.Contains(t, result, "NVDA")
	assert.Contains(t, result, "AAPL")

	parts := strings.Split(result, "\n\n\n")
	assert.Len(t, parts, 2, "Expected two exits separated by blank lines")

	assert.Empty(t, FormatRowsOrg(nil))
	assert.NotContains(t, FormatRowsOrg([]Row{a}), "\n\n\n")
}

func TestShortID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"long ID keeps the tail", "01J0ABCDEFGHJKMNPQRSTVWXYZ", "RSTVWXYZ"},
		{"exactly 8 characters", "12345678", "12345678"},
		{"less than 8 characters", "short", "short"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shortID(tt.input)
			assert.Equal(t, tt.expected, result)
			assert.LessOrEqual(t, len(result), 8)
		})
	}
}

func TestFormatRowOrgStructure(t *testing.T) {
	t.Parallel()

	lines := strings.Split(FormatRowOrg(sampleRow()), "\n")
	require.Greater(t, len(lines), 10)
	assert.True(t, strings.HasPrefix(lines[0], "** Exit:"))

	propertiesStart, propertiesEnd := -1, -1
	for i, line := range lines {
		if line == ":PROPERTIES:" {
			propertiesStart = i
		}
		if line == ":END:" && propertiesStart >= 0 {
			propertiesEnd = i
			break
		}
	}
	assert.Equal(t, 1, propertiesStart)
	assert.Greater(t, propertiesEnd, propertiesStart)

	thesis := -1
	for i, line := range lines {
		if line == "*** Thesis" {
			thesis = i
		}
	}
	assert.Greater(t, thesis, propertiesEnd)
}
