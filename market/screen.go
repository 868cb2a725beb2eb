package market

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// VolumeWindow is the number of sessions in the average volume a spike is
// measured against.
const VolumeWindow = 20

// ScreenOptions tunes VolumeSpikes.
type ScreenOptions struct {
	// Ratio is the multiple of the average volume the last session must reach.
	Ratio float64
	// TrendPeriod requires the last close above its moving average of this
	// many sessions. Zero disables the filter.
	TrendPeriod int
}

// DefaultScreenOptions is a 2x volume spike above the 200 session average.
func DefaultScreenOptions() ScreenOptions {
	return ScreenOptions{Ratio: 2, TrendPeriod: 200}
}

// Spike is a symbol whose last session passed every screen.
type Spike struct {
	Symbol    string  `json:"symbol"`
	Close     float64 `json:"close"`
	PrevClose float64 `json:"prev_close"`
	Volume    float64 `json:"volume"`
	AvgVolume float64 `json:"avg_volume"`
	// Multiple is Volume / AvgVolume.
	Multiple float64 `json:"multiple"`
	SMA      float64 `json:"sma,omitempty"`
}

// IsOTC is a heuristic for over-the-counter listings: five or more letters
// ending in F (foreign), Y (ADR) or Q (bankruptcy).
func IsOTC(symbol string) bool {
	if len(symbol) < 5 {
		return false
	}
	switch symbol[len(symbol)-1] {
	case 'F', 'Y', 'Q':
		return true
	}
	return false
}

// VolumeSpikes returns, in input order, the symbols whose last session closed
// up on volume of at least opts.Ratio times the 20 session average, above
// the trend average when one is set. Symbols are upper-cased and
// deduplicated; OTC symbols and symbols without enough history are skipped.
func VolumeSpikes(ctx context.Context, p Provider, symbols []string, opts ScreenOptions) ([]Spike, error) {
	if opts.Ratio <= 0 {
		return nil, fmt.Errorf("volume ratio must be positive, got %g", opts.Ratio)
	}
	if opts.TrendPeriod < 0 {
		return nil, fmt.Errorf("trend period must not be negative, got %d", opts.TrendPeriod)
	}

	need := VolumeWindow
	if opts.TrendPeriod > need {
		need = opts.TrendPeriod
	}

	seen := make(map[string]bool, len(symbols))
	out := []Spike{}
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] || IsOTC(sym) {
			continue
		}
		seen[sym] = true

		if err := ctx.Err(); err != nil {
			return out, err
		}
		candles, err := p.History(ctx, sym, CalendarDays(need))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			log.Warn().Err(err).Str("symbol", sym).Msg("screen skipped")
			continue
		}

		s, ok := spikeOf(sym, candles, need, opts)
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func spikeOf(sym string, candles []Candle, need int, opts ScreenOptions) (Spike, bool) {
	if len(candles) < need || len(candles) < 2 {
		log.Debug().Str("symbol", sym).Int("bars", len(candles)).Msg("not enough history to screen")
		return Spike{}, false
	}

	last, prev := candles[len(candles)-1], candles[len(candles)-2]
	if last.Close <= prev.Close {
		return Spike{}, false
	}

	s := Spike{Symbol: sym, Close: last.Close, PrevClose: prev.Close, Volume: last.Volume}
	if opts.TrendPeriod > 0 {
		sma, err := SMA(candles, opts.TrendPeriod)
		if err != nil || last.Close <= sma {
			return Spike{}, false
		}
		s.SMA = sma
	}

	s.AvgVolume = meanVolume(candles[len(candles)-VolumeWindow:])
	if s.AvgVolume <= 0 || last.Volume < s.AvgVolume*opts.Ratio {
		return Spike{}, false
	}
	s.Multiple = last.Volume / s.AvgVolume
	return s, true
}

func meanVolume(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles {
		sum += c.Volume
	}
	return sum / float64(len(candles))
}
