package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/riskos/account"
	"github.com/rustyeddy/riskos/journal"
	"github.com/rustyeddy/riskos/portfolio"
	"github.com/rustyeddy/riskos/risk"
	"github.com/rustyeddy/riskos/store"
)

// Exit sells qty shares of symbol at price. The ledger row, the equity
// credit and the position change commit together or not at all.
func (e *Engine) Exit(ctx context.Context, symbol string, price float64, qty int) (journal.Exit, error) {
	return e.exit(ctx, symbol, price, func(portfolio.Position) int { return qty })
}

// Close exits the whole position at price.
func (e *Engine) Close(ctx context.Context, symbol string, price float64) (journal.Exit, error) {
	return e.exit(ctx, symbol, price, func(p portfolio.Position) int { return p.Quantity })
}

func (e *Engine) exit(ctx context.Context, symbol string, price float64, qty func(portfolio.Position) int) (journal.Exit, error) {
	var ex journal.Exit
	err := e.st.Update(ctx, func(tx *store.Tx) error {
		p, err := tx.GetPosition(symbol)
		if err != nil {
			return err
		}

		now := e.now()
		if ex, err = journal.PlanExit(p, price, qty(p), now, e.newID(now)); err != nil {
			return err
		}
		if err := tx.AppendRow(ex.Row); err != nil {
			return err
		}

		acct, err := tx.Account()
		if err != nil {
			return err
		}
		acct, err = acct.Apply(account.Credit(ex.Credit), now)
		if err != nil {
			return err
		}
		if err := tx.SaveAccount(acct); err != nil {
			return err
		}

		if ex.Closed {
			return tx.DeletePosition(p.Symbol)
		}
		return tx.PutPosition(ex.Remaining)
	})
	if err != nil {
		return journal.Exit{}, err
	}

	log.Info().
		Str("symbol", ex.Row.Symbol).
		Str("trade_id", ex.Row.TradeID).
		Int("qty", ex.Row.ExitQty).
		Float64("r", ex.Row.RMultiple).
		Str("credit", ex.Credit.String()).
		Bool("closed", ex.Closed).
		Msg("exit recorded")
	if ex.Row.Outcome == journal.OutcomeDegenerateRisk {
		log.Warn().Str("symbol", ex.Row.Symbol).Msg("exit had zero initial risk; recorded as 0R")
	}
	e.obs.ObserveExit(ex.Row)
	return ex, nil
}

// Ledger returns every exit, oldest first.
func (e *Engine) Ledger(ctx context.Context) ([]journal.Row, error) {
	var rows []journal.Row
	err := e.st.View(ctx, func(tx *store.Tx) (err error) {
		rows, err = tx.ListRows()
		return err
	})
	return rows, err
}

// Performance is expectancy over the whole ledger plus the recent win rate
// the regime feedback uses.
type Performance struct {
	journal.Stats
	RecentWinRate float64 `json:"recent_win_rate"`
	Window        int     `json:"window"`
}

func (e *Engine) Stats(ctx context.Context) (Performance, error) {
	rows, err := e.Ledger(ctx)
	if err != nil {
		return Performance{}, err
	}
	return Performance{
		Stats:         journal.ComputeExpectancy(rows),
		RecentWinRate: journal.RecentWinRate(rows, e.cfg.FeedbackWindow),
		Window:        e.cfg.FeedbackWindow,
	}, nil
}

// Report gathers a performance review for Org export.
func (e *Engine) Report(ctx context.Context, notes ...string) (journal.Report, error) {
	ov, err := e.Overview(ctx)
	if err != nil {
		return journal.Report{}, err
	}
	perf, err := e.Stats(ctx)
	if err != nil {
		return journal.Report{}, err
	}
	return journal.Report{
		Created: e.now(),
		Regime:  ov.Session.Regime.String(),
		Reason:  ov.Session.Params.Description,
		Equity:  ov.Session.Equity,
		TOR:     ov.Portfolio.TOR,
		Limit:   ov.Portfolio.Limit,
		Recent:  perf.RecentWinRate,
		Window:  perf.Window,
		Stats:   perf.Stats,
		Notes:   notes,
	}, nil
}

// DeleteRows removes ledger rows by id. The account is not touched.
func (e *Engine) DeleteRows(ctx context.Context, ids []string) (int64, error) {
	var n int64
	err := e.st.Update(ctx, func(tx *store.Tx) (err error) {
		n, err = tx.DeleteRows(ids)
		return err
	})
	if err == nil {
		log.Info().Int64("rows", n).Msg("ledger rows deleted")
	}
	return n, err
}

// ClearLedger removes every ledger row.
func (e *Engine) ClearLedger(ctx context.Context) (int64, error) {
	var n int64
	err := e.st.Update(ctx, func(tx *store.Tx) (err error) {
		n, err = tx.ClearRows()
		return err
	})
	if err == nil {
		log.Warn().Int64("rows", n).Msg("ledger cleared")
	}
	return n, err
}

// Correction lists the fields to change on a ledger row; nil fields are
// kept. RMultiple is never derived from the other fields.
type Correction struct {
	EntryDate  *string  `json:"entry_date,omitempty"`
	ExitDate   *string  `json:"exit_date,omitempty"`
	EntryPrice *float64 `json:"entry_price,omitempty"`
	ExitPrice  *float64 `json:"exit_price,omitempty"`
	ExitQty    *int     `json:"exit_qty,omitempty"`
	RMultiple  *float64 `json:"r_multiple,omitempty"`
}

func (c Correction) apply(r journal.Row) (journal.Row, error) {
	if c.EntryDate != nil {
		r.EntryDate = strings.TrimSpace(*c.EntryDate)
		if r.EntryDate != "" {
			r.TradeID = portfolio.TradeID(strings.TrimSpace(strings.ReplaceAll(r.Symbol, "(P)", "")), r.EntryDate)
		}
	}
	if c.ExitDate != nil {
		r.ExitDate = strings.TrimSpace(*c.ExitDate)
	}
	if c.EntryPrice != nil {
		r.EntryPrice = *c.EntryPrice
	}
	if c.ExitPrice != nil {
		r.ExitPrice = *c.ExitPrice
	}
	if c.ExitQty != nil {
		r.ExitQty = *c.ExitQty
	}
	if c.RMultiple != nil {
		r.RMultiple = *c.RMultiple
		r.Outcome = journal.OutcomeOK
	}

	switch {
	case r.EntryPrice <= 0 || r.ExitPrice <= 0:
		return r, fmt.Errorf("%w: prices must be positive", risk.ErrInvalidInput)
	case r.ExitQty <= 0:
		return r, fmt.Errorf("%w: exit quantity must be positive, got %d", risk.ErrInvalidInput, r.ExitQty)
	case r.ExitDate == "":
		return r, fmt.Errorf("%w: exit date is required", risk.ErrInvalidInput)
	}
	return r, nil
}

// CorrectRow edits one ledger row.
func (e *Engine) CorrectRow(ctx context.Context, rowID string, c Correction) (journal.Row, error) {
	var r journal.Row
	err := e.st.Update(ctx, func(tx *store.Tx) error {
		cur, err := tx.GetRow(rowID)
		if err != nil {
			return err
		}
		if r, err = c.apply(cur); err != nil {
			return err
		}
		return tx.UpdateRow(r)
	})
	if err != nil {
		return journal.Row{}, err
	}
	log.Info().Str("id", r.ID).Msg("ledger row corrected")
	return r, nil
}

// ImportRows appends rows read from an export. Rows without an id get one
// and rows without a trade id are grouped by symbol and entry date when
// they have one.
func (e *Engine) ImportRows(ctx context.Context, rows []journal.Row) (int, error) {
	err := e.st.Update(ctx, func(tx *store.Tx) error {
		for i := range rows {
			r := rows[i]
			if r.ID == "" {
				r.ID = e.newID(e.now())
			}
			if r.TradeID == "" && r.EntryDate != "" {
				r.TradeID = portfolio.TradeID(r.Symbol, r.EntryDate)
			}
			if r.ExitQty <= 0 {
				return fmt.Errorf("%w: row %d: exit quantity must be positive", risk.ErrInvalidInput, i+1)
			}
			if err := tx.AppendRow(r); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int("rows", len(rows)).Msg("ledger rows imported")
	return len(rows), nil
}
