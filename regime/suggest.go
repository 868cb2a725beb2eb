package regime

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/riskos/market"
)

// Suggester gathers trend proxies from a market provider and classifies them.
type Suggester struct {
	Provider    market.Provider
	Proxies     []string
	MAPeriod    int
	HistoryDays int
	Thresholds  Thresholds
}

// NewSuggester uses the SPY/RSP 20-day setup over 60 days of history.
func NewSuggester(p market.Provider) *Suggester {
	return &Suggester{
		Provider:    p,
		Proxies:     []string{"SPY", "RSP"},
		MAPeriod:    20,
		HistoryDays: 60,
		Thresholds:  DefaultThresholds(),
	}
}

// Suggest never fails outright. Missing market data yields UNKNOWN and any
// other failure yields ERROR, with the cause in Reason and Err.
func (s *Suggester) Suggest(ctx context.Context, checklist int, winRate float64) Result {
	in := Inputs{Checklist: checklist, WinRate: winRate}

	for _, sym := range s.Proxies {
		candles, err := s.Provider.History(ctx, sym, s.HistoryDays)
		if err == nil && len(candles) == 0 {
			err = fmt.Errorf("%w: empty history for %s", market.ErrDataUnavailable, sym)
		}
		if err != nil {
			return s.failed(in, err)
		}

		t, err := market.TrendOf(sym, candles, s.MAPeriod)
		if err != nil {
			return s.failed(in, err)
		}
		in.Proxies = append(in.Proxies, t)
	}

	res := Classify(in, s.Thresholds)
	log.Debug().
		Str("regime", res.Regime.String()).
		Str("base", res.Base.String()).
		Int("checklist", checklist).
		Float64("win_rate", winRate).
		Msg("regime suggested")
	return res
}

func (s *Suggester) failed(in Inputs, err error) Result {
	r := Failed
	if errors.Is(err, market.ErrDataUnavailable) {
		r = Unknown
	}
	log.Warn().Err(err).Str("regime", r.String()).Msg("regime suggestion degraded")
	return Result{Regime: r, Base: r, Reason: err.Error(), Inputs: in, Err: err}
}
