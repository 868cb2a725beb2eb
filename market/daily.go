package market

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// AveragePeriod is the window of the close and volume averages WriteDaily
// prints next to each bar.
const AveragePeriod = 20

// Daily is one bar with its trailing averages. The averages are nil until
// AveragePeriod bars are available.
type Daily struct {
	Candle
	SMA       *float64 `json:"sma20"`
	AvgVolume *float64 `json:"vma20"`
}

// WithAverages pairs each candle with the trailing AveragePeriod averages of
// close and volume, then drops bars dated before since. The averages use the
// whole series, so a late since still gets warmed-up values.
func WithAverages(candles []Candle, since time.Time) []Daily {
	out := make([]Daily, 0, len(candles))
	var sumClose, sumVol float64
	for i, c := range candles {
		sumClose += c.Close
		sumVol += c.Volume
		if i >= AveragePeriod {
			sumClose -= candles[i-AveragePeriod].Close
			sumVol -= candles[i-AveragePeriod].Volume
		}

		d := Daily{Candle: c}
		if i+1 >= AveragePeriod {
			sma, vma := sumClose/AveragePeriod, sumVol/AveragePeriod
			d.SMA, d.AvgVolume = &sma, &vma
		}
		if !since.IsZero() && dateOf(c.Time).Before(dateOf(since)) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// WriteDaily writes bars as a pipe separated table, one line per session,
// ready to paste into notes or a chat.
func WriteDaily(w io.Writer, symbol string, bars []Daily) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s Daily Data]\n", symbol)
	b.WriteString("Date | Open | High | Low | Close | Volume | 20SMA | 20VMA\n")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, d := range bars {
		fmt.Fprintf(&b, "%s | %.3f | %.3f | %.3f | %.3f | %.0f | %s | %s\n",
			d.Time.Format("2006-01-02"), d.Open, d.High, d.Low, d.Close, d.Volume,
			orNaN(d.SMA, "%.3f"), orNaN(d.AvgVolume, "%.0f"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func orNaN(v *float64, format string) string {
	if v == nil {
		return "NaN"
	}
	return fmt.Sprintf(format, *v)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
