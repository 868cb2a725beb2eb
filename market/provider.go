// Package market supplies the daily price history the risk engine reads trend
// and position signals from.
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrDataUnavailable is returned, possibly wrapped, whenever a provider cannot
// produce data. Callers skip the dependent signal instead of treating it as zero.
var ErrDataUnavailable = errors.New("market data unavailable")

// Provider is the read side of a market data source.
type Provider interface {
	// LatestClose is the most recent close for symbol.
	LatestClose(ctx context.Context, symbol string) (float64, error)
	// History returns daily candles covering the last days calendar days,
	// oldest first.
	History(ctx context.Context, symbol string, days int) ([]Candle, error)
}

// Static serves fixed candles. It backs tests and offline runs.
type Static struct {
	series map[string][]Candle
}

// NewStatic returns an empty Static provider.
func NewStatic() *Static {
	return &Static{series: make(map[string][]Candle)}
}

// Set replaces the series for symbol.
func (s *Static) Set(symbol string, candles []Candle) {
	c := append([]Candle(nil), candles...)
	sort.Slice(c, func(i, j int) bool { return c[i].Time.Before(c[j].Time) })
	s.series[strings.ToUpper(symbol)] = c
}

func (s *Static) LatestClose(ctx context.Context, symbol string) (float64, error) {
	c, err := s.History(ctx, symbol, 0)
	if err != nil {
		return 0, err
	}
	last, _ := Last(c)
	return last.Close, nil
}

// History returns the candles within days of the newest candle; days <= 0
// returns the whole series.
func (s *Static) History(_ context.Context, symbol string, days int) ([]Candle, error) {
	c, ok := s.series[strings.ToUpper(symbol)]
	if !ok || len(c) == 0 {
		return nil, fmt.Errorf("%w: no series for %s", ErrDataUnavailable, symbol)
	}
	if days <= 0 {
		return append([]Candle(nil), c...), nil
	}

	cutoff := c[len(c)-1].Time.AddDate(0, 0, -days)
	out := make([]Candle, 0, len(c))
	for _, cd := range c {
		if cd.Time.After(cutoff) {
			out = append(out, cd)
		}
	}
	return out, nil
}

// Closes builds a daily series ending on end with one candle per close. Lows
// and highs equal the close; it is meant for tests and demos.
func Closes(end time.Time, closes ...float64) []Candle {
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{
			Time:  end.AddDate(0, 0, i-len(closes)+1),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return out
}
