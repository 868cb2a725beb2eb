package market

import "time"

// Candle is one daily OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Last returns the most recent candle.
func Last(candles []Candle) (Candle, bool) {
	if len(candles) == 0 {
		return Candle{}, false
	}
	return candles[len(candles)-1], true
}

// SessionsSince counts the bars dated on or after day, compared by calendar
// date. The bar for day itself is included, so a position opened today has 1.
func SessionsSince(candles []Candle, day time.Time) int {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	n := 0
	for _, c := range candles {
		cy, cm, cd := c.Time.Date()
		if !time.Date(cy, cm, cd, 0, 0, 0, 0, time.UTC).Before(start) {
			n++
		}
	}
	return n
}

// CalendarDays is the calendar span that holds at least sessions trading
// days: five sessions a week plus slack for market holidays.
func CalendarDays(sessions int) int {
	if sessions <= 0 {
		return 0
	}
	return sessions*7/5 + 5
}
