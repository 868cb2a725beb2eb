package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/riskos/journal"
	"github.com/rustyeddy/riskos/market"
	"github.com/rustyeddy/riskos/portfolio"
	"github.com/rustyeddy/riskos/regime"
	"github.com/rustyeddy/riskos/risk"
	"github.com/rustyeddy/riskos/store"
)

var day = time.Date(2024, 6, 14, 15, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	overviews int
	exits     []journal.Row
}

func (r *recorder) ObserveOverview(Overview) { r.overviews++ }
func (r *recorder) ObserveExit(row journal.Row) { r.exits = append(r.exits, row) }

func newEngine(t *testing.T, md market.Provider, opts ...Option) (*Engine, *clock) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "riskos.db"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := &clock{t: day}
	opts = append([]Option{WithClock(c.now)}, opts...)
	return New(st, md, DefaultConfig(), opts...), c
}

func series(from, step float64, n int) []market.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = from + step*float64(i)
	}
	return market.Closes(day, closes...)
}

func TestSessionDefaults(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t, nil)

	s, err := e.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, regime.Green, s.Regime)
	assert.Equal(t, "10000", s.Equity.String())
	assert.InDelta(t, 100.0, s.Unit, 1e-9)
}

func TestSetRegime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	require.NoError(t, e.SetRegime(ctx, regime.Red))
	s, err := e.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, regime.Red, s.Regime)
	assert.InDelta(t, 25.0, s.Unit, 1e-9)

	assert.ErrorIs(t, e.SetRegime(ctx, regime.Unknown), regime.ErrNoParameters)
	assert.ErrorIs(t, e.SetRegime(ctx, regime.Failed), regime.ErrNoParameters)
}

func TestSizeUsesOpenRisk(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	sz, err := e.Size(ctx, 100, 98)
	require.NoError(t, err)
	assert.Equal(t, 50, sz.TheoreticalShares)
	assert.Equal(t, 20, sz.FinalShares)
	assert.True(t, sz.CapBound)
	assert.InDelta(t, 5.0, sz.RemainingTOR, 1e-9)

	// 4.5R already open
	_, err = e.AddPosition(ctx, portfolio.Fill{Symbol: "nvda", Entry: 100, Stop: 90, Quantity: 45})
	require.NoError(t, err)

	sz, err = e.Size(ctx, 50, 45)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sz.RemainingTOR, 1e-9)
	assert.True(t, sz.ExceedsTOR)

	_, err = e.Size(ctx, 100, 100)
	assert.ErrorIs(t, err, risk.ErrInvalidInput)
}

func TestPositionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{}
	e, c := newEngine(t, nil, WithObserver(rec))

	p, err := e.AddPosition(ctx, portfolio.Fill{Symbol: " aapl ", Entry: 100, Stop: 95, Quantity: 20, Sector: "Tech"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", p.Symbol)
	assert.Equal(t, "2024-06-14", p.EntryDate)

	ov, err := e.Overview(ctx)
	require.NoError(t, err)
	require.Len(t, ov.Portfolio.Exposures, 1)
	assert.InDelta(t, 1.0, ov.Portfolio.TOR, 1e-9)
	assert.Equal(t, 1, rec.overviews)

	c.advance(24 * time.Hour)
	ex, err := e.Exit(ctx, "AAPL", 110, 10)
	require.NoError(t, err)
	assert.False(t, ex.Closed)
	assert.True(t, ex.Row.Partial)
	assert.InDelta(t, 2.0, ex.Row.RMultiple, 1e-9)
	assert.Equal(t, "AAPL_2024-06-14", ex.Row.TradeID)

	c.advance(24 * time.Hour)
	ex, err = e.Close(ctx, "aapl", 95)
	require.NoError(t, err)
	assert.True(t, ex.Closed)
	assert.Equal(t, 10, ex.Row.ExitQty)
	assert.InDelta(t, -1.0, ex.Row.RMultiple, 1e-9)

	s, err := e.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10050", s.Equity.String())

	ov, err = e.Overview(ctx)
	require.NoError(t, err)
	assert.Empty(t, ov.Portfolio.Exposures)

	rows, err := e.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Partial)
	assert.False(t, rows[1].Partial)
	assert.Len(t, rec.exits, 2)

	perf, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, perf.TotalTrades)
	assert.InDelta(t, 0.5, perf.Expectancy, 1e-9)
	assert.Equal(t, "50", perf.NetPnL.String())
	assert.Equal(t, 1.0, perf.RecentWinRate)
}

func TestExitFailuresLeaveStateAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	_, err := e.Exit(ctx, "MSFT", 100, 1)
	assert.ErrorIs(t, err, portfolio.ErrPositionNotFound)

	_, err = e.AddPosition(ctx, portfolio.Fill{Symbol: "MSFT", Entry: 400, Stop: 390, Quantity: 5})
	require.NoError(t, err)

	_, err = e.Exit(ctx, "MSFT", 410, 0)
	assert.ErrorIs(t, err, risk.ErrInvalidInput)
	_, err = e.Exit(ctx, "MSFT", -1, 1)
	assert.ErrorIs(t, err, risk.ErrInvalidInput)

	rows, err := e.Ledger(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
	s, err := e.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10000", s.Equity.String())
}

const legacyLedger = `
CREATE TABLE portfolio (ticker TEXT PRIMARY KEY, entry_price REAL, stop_loss REAL, quantity INTEGER, sector TEXT, entry_date TEXT);
CREATE TABLE trade_history (id INTEGER PRIMARY KEY AUTOINCREMENT, ticker TEXT, entry_date TEXT, exit_date TEXT,
	entry_price REAL, exit_price REAL, r_multiple REAL);
CREATE TABLE account_config (id INTEGER PRIMARY KEY, total_equity REAL, last_updated TIMESTAMP);
INSERT INTO portfolio VALUES ('MSFT', 100, 95, 20, 'Tech', '2024-06-03');
INSERT INTO trade_history (ticker, entry_date, exit_date, entry_price, exit_price, r_multiple)
	VALUES ('AAPL', '2024-05-01', '2024-05-20', 150, 156, 1.2);
INSERT INTO account_config VALUES (1, 10000, '2024-06-01 16:00:00');
`

func TestCloseOnLegacyDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sqlx.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = legacy.Exec(legacyLedger)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	st, err := store.Open(ctx, path, store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	c := &clock{t: day}
	e := New(st, nil, DefaultConfig(), WithClock(c.now))

	ex, err := e.Close(ctx, "MSFT", 110)
	require.NoError(t, err)
	assert.True(t, ex.Closed)
	assert.InDelta(t, 2.0, ex.Row.RMultiple, 1e-9)

	s, err := e.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10200", s.Equity.String())

	rows, err := e.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].ID)
	assert.Equal(t, ex.Row.ID, rows[1].ID)
}

func TestMergeAndStops(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	_, err := e.AddPosition(ctx, portfolio.Fill{Symbol: "AMD", Entry: 100, Stop: 95, Quantity: 10})
	require.NoError(t, err)
	p, err := e.AddPosition(ctx, portfolio.Fill{Symbol: "AMD", Entry: 110, Stop: 104, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 20, p.Quantity)
	assert.InDelta(t, 105.0, p.EntryPrice, 1e-9)
	assert.InDelta(t, 104.0, p.StopLoss, 1e-9)

	p, err = e.UpdateStop(ctx, "AMD", 106)
	require.NoError(t, err)
	assert.InDelta(t, 106.0, p.StopLoss, 1e-9)
	assert.InDelta(t, 104.0, p.InitialStopLoss, 1e-9)

	p, err = e.MoveToBreakEven(ctx, "amd")
	require.NoError(t, err)
	assert.InDelta(t, p.EntryPrice, p.StopLoss, 1e-9)

	_, err = e.UpdateStop(ctx, "NOPE", 1)
	assert.ErrorIs(t, err, portfolio.ErrPositionNotFound)

	require.NoError(t, e.DeletePosition(ctx, "AMD"))
	assert.ErrorIs(t, e.DeletePosition(ctx, "AMD"), portfolio.ErrPositionNotFound)
}

func TestAccountMutations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	a, err := e.AdjustEquity(ctx, decimal.NewFromInt(-2500), "withdrawal")
	require.NoError(t, err)
	assert.Equal(t, "7500", a.Equity.String())

	a, err = e.ForceEquity(ctx, decimal.RequireFromString("12000.50"))
	require.NoError(t, err)
	assert.Equal(t, "12000.5", a.Equity.String())

	_, err = e.ForceEquity(ctx, decimal.Zero)
	assert.ErrorIs(t, err, risk.ErrInvalidInput)
}

func TestSuggest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	md := market.NewStatic()
	md.Set("SPY", series(400, 1, 40))
	md.Set("RSP", series(150, 0.5, 40))
	e, _ := newEngine(t, md)

	res, err := e.Suggest(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, regime.Green, res.Regime)

	res, err = e.Suggest(ctx, 3, true)
	require.NoError(t, err)
	assert.Equal(t, regime.Yellow, res.Regime)

	s, err := e.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, regime.Yellow, s.Regime)
}

func TestSuggestWithoutData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	res, err := e.Suggest(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, regime.Unknown, res.Regime)
	assert.ErrorIs(t, res.Err, market.ErrDataUnavailable)

	_, err = e.Suggest(ctx, 0, true)
	assert.ErrorIs(t, err, regime.ErrNoParameters)

	s, err := e.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, regime.Green, s.Regime)
}

func TestReview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	md := market.NewStatic()
	md.Set("WIN", series(100, 0.5, 25)) // ends at 112
	md.Set("LOSE", series(120, -1, 25)) // ends at 96, below its average
	e, _ := newEngine(t, md)

	_, err := e.AddPosition(ctx, portfolio.Fill{Symbol: "WIN", Entry: 100, Stop: 95, Quantity: 10})
	require.NoError(t, err)
	_, err = e.AddPosition(ctx, portfolio.Fill{Symbol: "LOSE", Entry: 100, Stop: 90, Quantity: 10})
	require.NoError(t, err)
	_, err = e.AddPosition(ctx, portfolio.Fill{Symbol: "DARK", Entry: 10, Stop: 9, Quantity: 10})
	require.NoError(t, err)

	as, err := e.Review(ctx)
	require.NoError(t, err)
	require.Len(t, as, 3)

	bySym := map[string]portfolio.Assessment{}
	for _, a := range as {
		bySym[a.Symbol] = a
	}
	assert.True(t, bySym["WIN"].Has(portfolio.AlertOneR))
	assert.True(t, bySym["LOSE"].Has(portfolio.AlertBreakdownSet))
	assert.Empty(t, bySym["DARK"].Alerts)

	ov, err := e.Overview(ctx)
	require.NoError(t, err)
	for _, x := range ov.Portfolio.Exposures {
		if x.Symbol == "LOSE" {
			require.NotNil(t, x.BreakdownLow)
			assert.InDelta(t, 96.0, *x.BreakdownLow, 1e-9)
		} else {
			assert.Nil(t, x.BreakdownLow)
		}
	}
}

func TestLedgerMaintenance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, c := newEngine(t, nil)

	n, err := e.ImportRows(ctx, []journal.Row{
		{Symbol: "AAPL", EntryDate: "2024-01-02", ExitDate: "2024-01-10", EntryPrice: 100, ExitPrice: 110, ExitQty: 5, RMultiple: 2},
		{Symbol: "TSLA", ExitDate: "2024-01-11", EntryPrice: 200, ExitPrice: 190, ExitQty: 1, RMultiple: -1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := e.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL_2024-01-02", rows[0].TradeID)
	assert.Empty(t, rows[1].TradeID)
	assert.NotEqual(t, rows[0].ID, rows[1].ID)

	entry := "2024-01-03"
	fixed, err := e.CorrectRow(ctx, rows[0].ID, Correction{EntryDate: &entry})
	require.NoError(t, err)
	assert.Equal(t, "AAPL_2024-01-03", fixed.TradeID)
	assert.InDelta(t, 2.0, fixed.RMultiple, 1e-9)

	r := 1.5
	fixed, err = e.CorrectRow(ctx, rows[0].ID, Correction{RMultiple: &r})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, fixed.RMultiple, 1e-9)

	zero := 0
	_, err = e.CorrectRow(ctx, rows[0].ID, Correction{ExitQty: &zero})
	assert.ErrorIs(t, err, risk.ErrInvalidInput)
	_, err = e.CorrectRow(ctx, "missing", Correction{})
	assert.ErrorIs(t, err, journal.ErrRowNotFound)

	c.advance(time.Hour)
	deleted, err := e.DeleteRows(ctx, []string{rows[1].ID, "missing"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	cleared, err := e.ClearLedger(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cleared)

	s, err := e.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10000", s.Equity.String())
}

func TestReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	rep, err := e.Report(ctx, "stayed patient")
	require.NoError(t, err)
	assert.Equal(t, "GREEN", rep.Regime)
	assert.Equal(t, day, rep.Created)
	assert.Equal(t, 5.0, rep.Limit)
	assert.Equal(t, []string{"stayed patient"}, rep.Notes)
}
