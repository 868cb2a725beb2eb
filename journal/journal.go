// Package journal records exits from positions and measures realized
// performance in R.
package journal

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var ErrRowNotFound = errors.New("ledger row not found")

// Outcome tags how a row's R multiple was computed.
type Outcome string

const (
	OutcomeOK Outcome = "ok"
	// OutcomeDegenerateRisk marks a zero risk unit; the row carries R = 0.
	OutcomeDegenerateRisk Outcome = "degenerate_risk"
)

// Row is one exit event, full or partial. Rows are immutable apart from the
// explicit correction workflow.
type Row struct {
	ID string `json:"id" db:"id"`
	// TradeID groups the exits of one position lifetime. Empty on legacy rows.
	TradeID    string  `json:"trade_id" db:"trade_id"`
	Symbol     string  `json:"symbol" db:"ticker"`
	EntryDate  string  `json:"entry_date" db:"entry_date"`
	ExitDate   string  `json:"exit_date" db:"exit_date"`
	EntryPrice float64 `json:"entry_price" db:"entry_price"`
	ExitPrice  float64 `json:"exit_price" db:"exit_price"`
	ExitQty    int     `json:"exit_qty" db:"exit_qty"`
	RMultiple  float64 `json:"r_multiple" db:"r_multiple"`
	Partial    bool    `json:"partial" db:"partial"`
	Outcome    Outcome `json:"outcome" db:"r_outcome"`
}

// PnL is the realized profit of the row in account currency.
func (r Row) PnL() decimal.Decimal {
	return PnL(r.EntryPrice, r.ExitPrice, r.ExitQty)
}

// PnL is (exit - entry) * qty, computed in decimal.
func PnL(entry, exit float64, qty int) decimal.Decimal {
	return decimal.NewFromFloat(exit).
		Sub(decimal.NewFromFloat(entry)).
		Mul(decimal.NewFromInt(int64(qty)))
}

// RMultiple measures an exit against the frozen risk unit
// |entry - initialStop|. A zero unit yields 0 and OutcomeDegenerateRisk.
func RMultiple(entry, initialStop, exit float64) (float64, Outcome) {
	unit := math.Abs(entry - initialStop)
	if unit == 0 {
		return 0, OutcomeDegenerateRisk
	}
	return (exit - entry) / unit, OutcomeOK
}
