package market

import "fmt"

// SMA is the simple moving average of the last period closes.
func SMA(candles []Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", period, len(candles))
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), nil
}

// Trend compares the latest close of a series with its moving average.
type Trend struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
	SMA    float64 `json:"sma"`
}

// Above reports a close strictly above the average.
func (t Trend) Above() bool { return t.Close > t.SMA }

// Below reports a close strictly below the average.
func (t Trend) Below() bool { return t.Close < t.SMA }

// TrendOf builds the Trend for symbol from its daily history.
func TrendOf(symbol string, candles []Candle, period int) (Trend, error) {
	sma, err := SMA(candles, period)
	if err != nil {
		return Trend{}, fmt.Errorf("%s: %w", symbol, err)
	}
	last, _ := Last(candles)
	return Trend{Symbol: symbol, Close: last.Close, SMA: sma}, nil
}
