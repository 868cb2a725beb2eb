// Package portfolio holds open positions and measures how much risk they
// still expose.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/riskos/risk"
)

// DateLayout is the calendar date format used for entry and exit dates.
const DateLayout = "2006-01-02"

var ErrPositionNotFound = errors.New("position not found")

// Position is one open holding, keyed by symbol.
type Position struct {
	Symbol     string  `json:"symbol" db:"ticker"`
	EntryPrice float64 `json:"entry_price" db:"entry_price"`
	// StopLoss is the live protective stop.
	StopLoss float64 `json:"stop_loss" db:"stop_loss"`
	// InitialStopLoss is frozen per cost basis and is the R denominator for
	// every exit from this position.
	InitialStopLoss float64  `json:"initial_stop_loss" db:"initial_stop_loss"`
	Quantity        int      `json:"quantity" db:"quantity"`
	Sector          string   `json:"sector" db:"sector"`
	EntryDate       string   `json:"entry_date" db:"entry_date"`
	BreakdownLow    *float64 `json:"breakdown_low,omitempty" db:"breakdown_low"`
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// TradeID groups every exit of this position's lifetime.
func (p Position) TradeID() string {
	return TradeID(p.Symbol, p.EntryDate)
}

func TradeID(symbol, entryDate string) string {
	return symbol + "_" + entryDate
}

// RiskUnit is the frozen per-share risk, |entry - initial stop|.
func (p Position) RiskUnit() float64 {
	return math.Abs(p.EntryPrice - p.InitialStopLoss)
}

// OneRTarget is the price one live risk unit above entry.
func (p Position) OneRTarget() float64 {
	return p.EntryPrice + math.Abs(p.EntryPrice-p.StopLoss)
}

// Protected reports a stop at or above cost.
func (p Position) Protected() bool {
	return p.StopLoss >= p.EntryPrice
}

// EntryTime parses EntryDate.
func (p Position) EntryTime() (time.Time, error) {
	return time.Parse(DateLayout, p.EntryDate)
}

// WithStop moves the live stop. The initial stop is untouched.
func (p Position) WithStop(stop float64) (Position, error) {
	if stop < 0 || math.IsNaN(stop) {
		return p, fmt.Errorf("%w: stop must not be negative, got %v", risk.ErrInvalidInput, stop)
	}
	p.StopLoss = stop
	return p, nil
}

// BreakEven moves the live stop to the entry price.
func (p Position) BreakEven() Position {
	p.StopLoss = p.EntryPrice
	return p
}

// Fill is one buy to open or add to a position.
type Fill struct {
	Symbol   string  `json:"symbol"`
	Entry    float64 `json:"entry"`
	Stop     float64 `json:"stop"`
	Quantity int     `json:"quantity"`
	Sector   string  `json:"sector"`
}

func (f Fill) Validate() error {
	switch {
	case NormalizeSymbol(f.Symbol) == "":
		return fmt.Errorf("%w: symbol is required", risk.ErrInvalidInput)
	case f.Entry <= 0:
		return fmt.Errorf("%w: entry must be positive, got %v", risk.ErrInvalidInput, f.Entry)
	case f.Stop < 0:
		return fmt.Errorf("%w: stop must not be negative, got %v", risk.ErrInvalidInput, f.Stop)
	case f.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive, got %d", risk.ErrInvalidInput, f.Quantity)
	}
	return nil
}
