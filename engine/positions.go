package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/riskos/market"
	"github.com/rustyeddy/riskos/portfolio"
	"github.com/rustyeddy/riskos/risk"
	"github.com/rustyeddy/riskos/store"
)

// Size recommends a share count for entry/stop under the active regime,
// flagging entries that would overrun the remaining TOR budget.
func (e *Engine) Size(ctx context.Context, entry, stop float64) (risk.Sizing, error) {
	var (
		s   Session
		tor float64
	)
	err := e.st.View(ctx, func(tx *store.Tx) error {
		var err error
		if s, err = e.session(tx); err != nil {
			return err
		}
		ps, err := tx.ListPositions()
		tor = portfolio.TOR(ps, s.Unit)
		return err
	})
	if err != nil {
		return risk.Sizing{}, err
	}

	return risk.Size(e.cfg.Policy, risk.Inputs{
		Equity:     s.Equity.InexactFloat64(),
		Entry:      entry,
		Stop:       stop,
		Regime:     s.Params,
		CurrentTOR: tor,
	})
}

// AddPosition opens a position or merges the fill into the existing one.
func (e *Engine) AddPosition(ctx context.Context, f portfolio.Fill) (portfolio.Position, error) {
	if err := f.Validate(); err != nil {
		return portfolio.Position{}, err
	}
	f.Symbol = portfolio.NormalizeSymbol(f.Symbol)

	var p portfolio.Position
	err := e.st.Update(ctx, func(tx *store.Tx) error {
		existing, err := tx.FindPosition(f.Symbol)
		if err != nil {
			return err
		}
		if p, err = portfolio.Add(existing, f, e.cfg.Merge, e.now()); err != nil {
			return err
		}
		return tx.PutPosition(p)
	})
	if err != nil {
		return portfolio.Position{}, err
	}

	log.Info().
		Str("symbol", p.Symbol).
		Int("quantity", p.Quantity).
		Float64("entry", p.EntryPrice).
		Float64("stop", p.StopLoss).
		Str("merge", e.cfg.Merge.Name()).
		Msg("position added")
	return p, nil
}

// UpdateStop moves the live stop. The initial stop is untouched.
func (e *Engine) UpdateStop(ctx context.Context, symbol string, stop float64) (portfolio.Position, error) {
	return e.modify(ctx, symbol, func(p portfolio.Position) (portfolio.Position, error) {
		return p.WithStop(stop)
	})
}

// MoveToBreakEven sets the live stop to the entry price.
func (e *Engine) MoveToBreakEven(ctx context.Context, symbol string) (portfolio.Position, error) {
	return e.modify(ctx, symbol, func(p portfolio.Position) (portfolio.Position, error) {
		return p.BreakEven(), nil
	})
}

func (e *Engine) modify(ctx context.Context, symbol string, fn func(portfolio.Position) (portfolio.Position, error)) (portfolio.Position, error) {
	var p portfolio.Position
	err := e.st.Update(ctx, func(tx *store.Tx) error {
		cur, err := tx.GetPosition(symbol)
		if err != nil {
			return err
		}
		if p, err = fn(cur); err != nil {
			return err
		}
		return tx.PutPosition(p)
	})
	if err != nil {
		return portfolio.Position{}, err
	}
	log.Info().Str("symbol", p.Symbol).Float64("stop", p.StopLoss).Msg("stop updated")
	return p, nil
}

// DeletePosition removes a position without touching the ledger or the
// account. It is meant for data-entry corrections.
func (e *Engine) DeletePosition(ctx context.Context, symbol string) error {
	err := e.st.Update(ctx, func(tx *store.Tx) error {
		return tx.DeletePosition(symbol)
	})
	if err == nil {
		log.Info().Str("symbol", portfolio.NormalizeSymbol(symbol)).Msg("position deleted")
	}
	return err
}

// Overview is the portfolio's open risk under the current session.
type Overview struct {
	Session   Session                 `json:"session"`
	Portfolio portfolio.Summary       `json:"portfolio"`
	Sectors   []portfolio.SectorCount `json:"sectors,omitempty"`
}

// Overview recomputes TOR from the stored positions.
func (e *Engine) Overview(ctx context.Context) (Overview, error) {
	var ov Overview
	err := e.st.View(ctx, func(tx *store.Tx) error {
		s, err := e.session(tx)
		if err != nil {
			return err
		}
		ps, err := tx.ListPositions()
		if err != nil {
			return err
		}
		ov = Overview{
			Session:   s,
			Portfolio: portfolio.Summarize(ps, s.Unit, s.Params.TORLimit),
			Sectors:   portfolio.SectorConcentration(ps, e.cfg.SectorLimit),
		}
		return nil
	})
	if err != nil {
		return Overview{}, err
	}
	e.obs.ObserveOverview(ov)
	return ov, nil
}

// Review checks every position against recent prices. Positions whose data
// is unavailable are reviewed without the price signals. Breakdown lows that
// change are saved.
func (e *Engine) Review(ctx context.Context) ([]portfolio.Assessment, error) {
	var ps []portfolio.Position
	err := e.st.View(ctx, func(tx *store.Tx) (err error) {
		ps, err = tx.ListPositions()
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]portfolio.Assessment, 0, len(ps))
	var changed []portfolio.Assessment
	for _, p := range ps {
		a := e.cfg.Review.Review(p, e.snapshot(ctx, p))
		out = append(out, a)
		if a.BreakdownChanged {
			changed = append(changed, a)
		}
	}
	if len(changed) == 0 {
		return out, nil
	}

	err = e.st.Update(ctx, func(tx *store.Tx) error {
		for _, a := range changed {
			p, err := tx.GetPosition(a.Symbol)
			if errors.Is(err, portfolio.ErrPositionNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			p.BreakdownLow = a.BreakdownLow
			if err := tx.PutPosition(p); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (e *Engine) snapshot(ctx context.Context, p portfolio.Position) portfolio.Snapshot {
	var s portfolio.Snapshot
	if e.md == nil {
		return s
	}

	candles, err := e.md.History(ctx, p.Symbol, e.cfg.HistoryDays)
	if err != nil {
		log.Warn().Err(err).Str("symbol", p.Symbol).Msg("review without market data")
		return s
	}
	last, ok := market.Last(candles)
	if !ok {
		return s
	}

	s.Price = last.Close
	s.Low = last.Low
	if sma, err := market.SMA(candles, e.cfg.MAPeriod); err == nil {
		s.SMA = sma
	}
	if entered, err := p.EntryTime(); err == nil {
		s.TradingDays = market.SessionsSince(candles, entered)
	}
	return s
}
