package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/riskos/portfolio"
	"github.com/rustyeddy/riskos/risk"
)

func TestRMultiple(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		entry, stop float64
		exit        float64
		want        float64
		outcome     Outcome
	}{
		{"two R win", 100, 95, 110, 2.0, OutcomeOK},
		{"full loss", 100, 95, 95, -1.0, OutcomeOK},
		{"scratch", 100, 95, 100, 0, OutcomeOK},
		{"stop above entry", 100, 105, 110, 2.0, OutcomeOK},
		{"degenerate", 100, 100, 120, 0, OutcomeDegenerateRisk},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, outcome := RMultiple(tt.entry, tt.stop, tt.exit)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.Equal(t, tt.outcome, outcome)
		})
	}
}

func TestPnLIsExact(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "200", PnL(100, 110, 20).String())
	assert.Equal(t, "0.3", PnL(0.1, 0.2, 3).String())
	assert.Equal(t, "-26.5", PnL(100, 97.35, 10).String())
}

var exitDay = time.Date(2024, 6, 14, 16, 0, 0, 0, time.UTC)

func position() portfolio.Position {
	return portfolio.Position{
		Symbol:          "NVDA",
		EntryPrice:      100,
		StopLoss:        98,
		InitialStopLoss: 95,
		Quantity:        20,
		EntryDate:       "2024-06-03",
	}
}

func TestPlanExitFullClose(t *testing.T) {
	t.Parallel()

	ex, err := PlanExit(position(), 110, 20, exitDay, "row-1")
	require.NoError(t, err)

	assert.InDelta(t, 2.0, ex.Row.RMultiple, 1e-12, "R uses the initial stop, not the moved one")
	assert.Equal(t, OutcomeOK, ex.Row.Outcome)
	assert.Equal(t, "NVDA_2024-06-03", ex.Row.TradeID)
	assert.Equal(t, "2024-06-14", ex.Row.ExitDate)
	assert.Equal(t, 20, ex.Row.ExitQty)
	assert.False(t, ex.Row.Partial)
	assert.Equal(t, "200", ex.Credit.String())
	assert.True(t, ex.Closed)
	assert.Zero(t, ex.Remaining.Quantity)
}

func TestPlanExitPartialAndClamp(t *testing.T) {
	t.Parallel()

	ex, err := PlanExit(position(), 105, 5, exitDay, "row-1")
	require.NoError(t, err)
	assert.True(t, ex.Row.Partial)
	assert.False(t, ex.Closed)
	assert.Equal(t, 15, ex.Remaining.Quantity)
	assert.Equal(t, 95.0, ex.Remaining.InitialStopLoss)
	assert.Equal(t, "25", ex.Credit.String())

	ex, err = PlanExit(position(), 90, 500, exitDay, "row-2")
	require.NoError(t, err)
	assert.Equal(t, 20, ex.Row.ExitQty)
	assert.True(t, ex.Closed)
	assert.InDelta(t, -2.0, ex.Row.RMultiple, 1e-12)
	assert.Equal(t, "-200", ex.Credit.String())
}

func TestPlanExitDegenerate(t *testing.T) {
	t.Parallel()

	p := position()
	p.InitialStopLoss = p.EntryPrice

	ex, err := PlanExit(p, 110, 20, exitDay, "row-1")
	require.NoError(t, err)
	assert.Zero(t, ex.Row.RMultiple)
	assert.Equal(t, OutcomeDegenerateRisk, ex.Row.Outcome)
	assert.Equal(t, "200", ex.Credit.String())
}

func TestPlanExitInvalid(t *testing.T) {
	t.Parallel()

	_, err := PlanExit(position(), 110, 0, exitDay, "x")
	assert.ErrorIs(t, err, risk.ErrInvalidInput)

	_, err = PlanExit(position(), 0, 5, exitDay, "x")
	assert.ErrorIs(t, err, risk.ErrInvalidInput)

	empty := position()
	empty.Quantity = 0
	_, err = PlanExit(empty, 110, 5, exitDay, "x")
	assert.ErrorIs(t, err, risk.ErrInvalidInput)
}
