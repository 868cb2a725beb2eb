// Package engine runs the risk controller's commands against the store: it
// derives the session's 1R unit from the active regime and the account, and
// funnels every mutation through a single store transaction.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/riskos/account"
	"github.com/rustyeddy/riskos/id"
	"github.com/rustyeddy/riskos/journal"
	"github.com/rustyeddy/riskos/market"
	"github.com/rustyeddy/riskos/portfolio"
	"github.com/rustyeddy/riskos/regime"
	"github.com/rustyeddy/riskos/risk"
	"github.com/rustyeddy/riskos/store"
)

// settingActiveRegime is the settings key holding the operator's regime.
const settingActiveRegime = "active_regime"

// Store is the transactional persistence the engine needs.
type Store interface {
	Update(ctx context.Context, fn func(*store.Tx) error) error
	View(ctx context.Context, fn func(*store.Tx) error) error
}

// Observer is told about state the engine computes. metrics.Recorder
// implements it.
type Observer interface {
	ObserveOverview(Overview)
	ObserveExit(journal.Row)
}

type nopObserver struct{}

func (nopObserver) ObserveOverview(Overview) {}
func (nopObserver) ObserveExit(journal.Row) {}

type Config struct {
	Policy        risk.Policy
	Merge         portfolio.MergePolicy
	DefaultRegime regime.Regime
	Review        portfolio.ReviewRules
	SectorLimit   int
	// FeedbackWindow is the number of recent exits behind the win rate.
	FeedbackWindow int
	Proxies        []string
	MAPeriod       int
	HistoryDays    int
	Thresholds     regime.Thresholds
}

func DefaultConfig() Config {
	return Config{
		Policy:         risk.DefaultPolicy(),
		Merge:          portfolio.ResetPolicy{},
		DefaultRegime:  regime.Green,
		Review:         portfolio.DefaultReviewRules(),
		SectorLimit:    3,
		FeedbackWindow: 5,
		Proxies:        []string{"SPY", "RSP"},
		MAPeriod:       20,
		HistoryDays:    60,
		Thresholds:     regime.DefaultThresholds(),
	}
}

type Engine struct {
	st        Store
	md        market.Provider
	cfg       Config
	suggester *regime.Suggester
	now       func() time.Time
	newID     func(time.Time) string
	obs       Observer
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.obs = o }
}

// New builds an engine. md may be nil, in which case every market signal is
// reported as unavailable.
func New(st Store, md market.Provider, cfg Config, opts ...Option) *Engine {
	if cfg.Merge == nil {
		cfg.Merge = portfolio.ResetPolicy{}
	}
	if !cfg.DefaultRegime.Tradable() {
		cfg.DefaultRegime = regime.Green
	}

	e := &Engine{
		st:    st,
		md:    md,
		cfg:   cfg,
		now:   time.Now,
		newID: id.At,
		obs:   nopObserver{},
	}
	for _, o := range opts {
		o(e)
	}

	if md != nil {
		e.suggester = &regime.Suggester{
			Provider:    md,
			Proxies:     cfg.Proxies,
			MAPeriod:    cfg.MAPeriod,
			HistoryDays: cfg.HistoryDays,
			Thresholds:  cfg.Thresholds,
		}
	}
	return e
}

// Session is the risk context every sizing and open-risk figure is
// computed in.
type Session struct {
	Regime      regime.Regime   `json:"regime"`
	Params      regime.Params   `json:"params"`
	Equity      decimal.Decimal `json:"equity"`
	LastUpdated time.Time       `json:"last_updated"`
	// Unit is the currency value of 1R.
	Unit float64 `json:"unit"`
}

func (e *Engine) session(tx *store.Tx) (Session, error) {
	r, err := e.activeRegime(tx)
	if err != nil {
		return Session{}, err
	}
	params, err := r.Params()
	if err != nil {
		return Session{}, err
	}
	acct, err := tx.Account()
	if err != nil {
		return Session{}, err
	}
	return Session{
		Regime:      r,
		Params:      params,
		Equity:      acct.Equity,
		LastUpdated: acct.LastUpdated,
		Unit:        e.cfg.Policy.ActiveUnit(acct.Float(), params),
	}, nil
}

func (e *Engine) activeRegime(tx *store.Tx) (regime.Regime, error) {
	v, ok, err := tx.Setting(settingActiveRegime)
	if err != nil || !ok {
		return e.cfg.DefaultRegime, err
	}
	r, err := regime.ParseRegime(v)
	if err != nil || !r.Tradable() {
		log.Warn().Str("stored", v).Msg("ignoring stored regime")
		return e.cfg.DefaultRegime, nil
	}
	return r, nil
}

// Session reads the current regime, account and 1R unit.
func (e *Engine) Session(ctx context.Context) (Session, error) {
	var s Session
	err := e.st.View(ctx, func(tx *store.Tx) (err error) {
		s, err = e.session(tx)
		return err
	})
	return s, err
}

// SetRegime overrides the active regime. UNKNOWN and ERROR are refused with
// regime.ErrNoParameters.
func (e *Engine) SetRegime(ctx context.Context, r regime.Regime) error {
	if _, err := r.Params(); err != nil {
		return err
	}
	err := e.st.Update(ctx, func(tx *store.Tx) error {
		return tx.SetSetting(settingActiveRegime, r.String())
	})
	if err == nil {
		log.Info().Str("regime", r.String()).Msg("regime set")
	}
	return err
}

// Suggest classifies the market from live trend data, the operator's
// checklist count and the recent win rate. With apply set, a tradable
// suggestion becomes the active regime; an UNKNOWN or ERROR one is returned
// along with regime.ErrNoParameters.
func (e *Engine) Suggest(ctx context.Context, checklist int, apply bool) (regime.Result, error) {
	var rows []journal.Row
	err := e.st.View(ctx, func(tx *store.Tx) (err error) {
		rows, err = tx.ListRows()
		return err
	})
	if err != nil {
		return regime.Result{}, err
	}
	winRate := journal.RecentWinRate(rows, e.cfg.FeedbackWindow)

	var res regime.Result
	if e.suggester == nil {
		err := fmt.Errorf("%w: no market data provider", market.ErrDataUnavailable)
		res = regime.Result{Regime: regime.Unknown, Base: regime.Unknown, Reason: err.Error(), Err: err,
			Inputs: regime.Inputs{Checklist: checklist, WinRate: winRate}}
	} else {
		res = e.suggester.Suggest(ctx, checklist, winRate)
	}

	if !apply {
		return res, nil
	}
	if !res.Regime.Tradable() {
		return res, fmt.Errorf("%w: %s: %s", regime.ErrNoParameters, res.Regime, res.Reason)
	}
	return res, e.SetRegime(ctx, res.Regime)
}

// AdjustEquity adds delta to the account balance.
func (e *Engine) AdjustEquity(ctx context.Context, delta decimal.Decimal, reason string) (account.Account, error) {
	return e.mutateAccount(ctx, account.Adjust(delta, reason))
}

// ForceEquity overwrites the account balance.
func (e *Engine) ForceEquity(ctx context.Context, value decimal.Decimal) (account.Account, error) {
	if !value.IsPositive() {
		return account.Account{}, fmt.Errorf("%w: equity must be positive, got %s", risk.ErrInvalidInput, value)
	}
	return e.mutateAccount(ctx, account.ForceSet(value))
}

func (e *Engine) mutateAccount(ctx context.Context, m account.Mutation) (account.Account, error) {
	var out account.Account
	err := e.st.Update(ctx, func(tx *store.Tx) error {
		a, err := tx.Account()
		if err != nil {
			return err
		}
		if out, err = a.Apply(m, e.now()); err != nil {
			return err
		}
		return tx.SaveAccount(out)
	})
	if err != nil {
		return account.Account{}, err
	}
	log.Info().
		Str("kind", m.Kind.String()).
		Str("amount", m.Amount.String()).
		Str("reason", m.Reason).
		Str("equity", out.Equity.String()).
		Msg("equity updated")
	return out, nil
}
