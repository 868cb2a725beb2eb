package regime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/riskos/market"
)

func up(sym string) market.Trend   { return market.Trend{Symbol: sym, Close: 110, SMA: 100} }
func down(sym string) market.Trend { return market.Trend{Symbol: sym, Close: 90, SMA: 100} }
func flat(sym string) market.Trend { return market.Trend{Symbol: sym, Close: 100, SMA: 100} }

func TestClassify(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()

	tests := []struct {
		name string
		in   Inputs
		want Regime
		base Regime
	}{
		{"both above", Inputs{Proxies: []market.Trend{up("SPY"), up("RSP")}, WinRate: 1}, Green, Green},
		{"both above checklist 3", Inputs{Proxies: []market.Trend{up("SPY"), up("RSP")}, Checklist: 3, WinRate: 1}, Yellow, Green},
		{"both above checklist 2", Inputs{Proxies: []market.Trend{up("SPY"), up("RSP")}, Checklist: 2, WinRate: 1}, Green, Green},
		{"both above cold streak", Inputs{Proxies: []market.Trend{up("SPY"), up("RSP")}, WinRate: 0.1}, Red, Green},
		{"mixed", Inputs{Proxies: []market.Trend{up("SPY"), down("RSP")}, WinRate: 1}, Yellow, Yellow},
		{"mixed checklist", Inputs{Proxies: []market.Trend{up("SPY"), down("RSP")}, Checklist: 4, WinRate: 1}, Red, Yellow},
		{"tie is mixed", Inputs{Proxies: []market.Trend{up("SPY"), flat("RSP")}, WinRate: 1}, Yellow, Yellow},
		{"both below", Inputs{Proxies: []market.Trend{down("SPY"), down("RSP")}, WinRate: 1}, Red, Red},
		{"red stays red", Inputs{Proxies: []market.Trend{down("SPY"), down("RSP")}, Checklist: 5, WinRate: 1}, Red, Red},
		{"win rate at floor", Inputs{Proxies: []market.Trend{up("SPY"), up("RSP")}, WinRate: 0.2}, Green, Green},
		{"no proxies", Inputs{WinRate: 0}, Unknown, Unknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.in, th)
			assert.Equal(t, tt.want, got.Regime)
			assert.Equal(t, tt.base, got.Base)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	t.Parallel()

	in := Inputs{Proxies: []market.Trend{up("SPY"), down("RSP")}, Checklist: 1, WinRate: 0.6}
	assert.Equal(t, Classify(in, DefaultThresholds()), Classify(in, DefaultThresholds()))
}

func TestClassifyReasons(t *testing.T) {
	t.Parallel()

	res := Classify(Inputs{Proxies: []market.Trend{up("SPY"), up("RSP")}, WinRate: 0.1}, DefaultThresholds())
	assert.Contains(t, res.Reason, "win rate 10%")

	res = Classify(Inputs{Proxies: []market.Trend{up("SPY"), up("RSP")}, Checklist: 3, WinRate: 1}, DefaultThresholds())
	assert.Contains(t, res.Reason, "SPY & RSP above")
	assert.Contains(t, res.Reason, "downgraded from GREEN")
}

var today = time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	p := market.NewStatic()
	p.Set("SPY", market.Closes(today, rising(40)...))
	p.Set("RSP", market.Closes(today, rising(40)...))

	s := NewSuggester(p)
	res := s.Suggest(context.Background(), 0, 1)
	require.NoError(t, res.Err)
	assert.Equal(t, Green, res.Regime)
	require.Len(t, res.Inputs.Proxies, 2)
	assert.Equal(t, "SPY", res.Inputs.Proxies[0].Symbol)

	res = s.Suggest(context.Background(), 3, 1)
	assert.Equal(t, Yellow, res.Regime)
}

func TestSuggestUnknownWhenDataMissing(t *testing.T) {
	t.Parallel()

	p := market.NewStatic()
	p.Set("SPY", market.Closes(today, rising(40)...))

	res := NewSuggester(p).Suggest(context.Background(), 0, 0)
	assert.Equal(t, Unknown, res.Regime)
	assert.ErrorIs(t, res.Err, market.ErrDataUnavailable)
	assert.False(t, res.Regime.Tradable())
}

func TestSuggestErrorOnShortHistory(t *testing.T) {
	t.Parallel()

	p := market.NewStatic()
	p.Set("SPY", market.Closes(today, rising(5)...))
	p.Set("RSP", market.Closes(today, rising(5)...))

	res := NewSuggester(p).Suggest(context.Background(), 0, 1)
	assert.Equal(t, Failed, res.Regime)
	assert.Error(t, res.Err)
	assert.False(t, errors.Is(res.Err, market.ErrDataUnavailable))
	assert.Contains(t, res.Reason, "not enough candles")
}
