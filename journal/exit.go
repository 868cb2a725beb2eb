package journal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/riskos/portfolio"
	"github.com/rustyeddy/riskos/risk"
)

// Exit is everything one close or partial close changes: the ledger row to
// append, the equity credit, and what is left of the position.
type Exit struct {
	Row       Row                `json:"row"`
	Credit    decimal.Decimal    `json:"credit"`
	Remaining portfolio.Position `json:"remaining"`
	// Closed means the position row must be deleted.
	Closed bool `json:"closed"`
}

// PlanExit sells qty shares of p at price. qty is clamped to the position
// size. Nothing is persisted.
func PlanExit(p portfolio.Position, price float64, qty int, at time.Time, rowID string) (Exit, error) {
	if qty <= 0 {
		return Exit{}, fmt.Errorf("%w: exit quantity must be positive, got %d", risk.ErrInvalidInput, qty)
	}
	if price <= 0 {
		return Exit{}, fmt.Errorf("%w: exit price must be positive, got %v", risk.ErrInvalidInput, price)
	}
	if p.Quantity <= 0 {
		return Exit{}, fmt.Errorf("%w: %s has no shares", risk.ErrInvalidInput, p.Symbol)
	}
	if qty > p.Quantity {
		qty = p.Quantity
	}

	r, outcome := RMultiple(p.EntryPrice, p.InitialStopLoss, price)

	rem := p
	rem.Quantity -= qty

	return Exit{
		Row: Row{
			ID:         rowID,
			TradeID:    p.TradeID(),
			Symbol:     p.Symbol,
			EntryDate:  p.EntryDate,
			ExitDate:   at.Format(portfolio.DateLayout),
			EntryPrice: p.EntryPrice,
			ExitPrice:  price,
			ExitQty:    qty,
			RMultiple:  r,
			Partial:    rem.Quantity > 0,
			Outcome:    outcome,
		},
		Credit:    PnL(p.EntryPrice, price, qty),
		Remaining: rem,
		Closed:    rem.Quantity <= 0,
	}, nil
}
