package portfolio

import "fmt"

const (
	AlertOneR           = "ONE_R_REACHED"
	AlertBreakdownSet   = "BREAKDOWN_SET"
	AlertBreakdownBroke = "BREAKDOWN_LOW_BROKEN"
	AlertBreakdownReset = "BREAKDOWN_RESET"
	AlertHoldDays       = "HOLD_DAYS_PASSED"
)

type Alert struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Snapshot is the market state a position is reviewed against. A zero field
// means the value is unavailable and its signal is skipped.
type Snapshot struct {
	Price float64 `json:"price"`
	SMA   float64 `json:"sma"`
	Low   float64 `json:"low"`
	// TradingDays counts sessions from the entry date, inclusive.
	TradingDays int `json:"trading_days"`
}

// Assessment is the outcome of reviewing one position.
type Assessment struct {
	Symbol string  `json:"symbol"`
	Alerts []Alert `json:"alerts"`
	// BreakdownLow is the reference low to store when BreakdownChanged.
	BreakdownLow     *float64 `json:"breakdown_low,omitempty"`
	BreakdownChanged bool     `json:"breakdown_changed"`
}

func (a *Assessment) add(code, format string, args ...interface{}) {
	a.Alerts = append(a.Alerts, Alert{Code: code, Msg: fmt.Sprintf(format, args...)})
}

// Has reports whether code was raised.
func (a Assessment) Has(code string) bool {
	for _, al := range a.Alerts {
		if al.Code == code {
			return true
		}
	}
	return false
}

// ReviewRules configures position review.
type ReviewRules struct {
	// HoldDays is the number of sessions after entry before a partial exit
	// is suggested.
	HoldDays int
}

func DefaultReviewRules() ReviewRules {
	return ReviewRules{HoldDays: 5}
}

// Review checks p against s. It never mutates p; a breakdown change is
// returned for the caller to persist.
func (r ReviewRules) Review(p Position, s Snapshot) Assessment {
	a := Assessment{Symbol: p.Symbol, BreakdownLow: p.BreakdownLow}

	if s.Price > 0 && !p.Protected() && s.Price >= p.OneRTarget() {
		a.add(AlertOneR, "price %.2f reached +1R (%.2f): move stop to break-even at %.2f",
			s.Price, p.OneRTarget(), p.EntryPrice)
	}

	if s.Price > 0 && s.SMA > 0 {
		switch {
		case s.Price < s.SMA && p.BreakdownLow == nil:
			low := s.Low
			if low <= 0 {
				low = s.Price
			}
			a.BreakdownLow = &low
			a.BreakdownChanged = true
			a.add(AlertBreakdownSet, "closed under the moving average (%.2f): watching low %.2f", s.SMA, low)
		case s.Price < s.SMA && s.Price < *p.BreakdownLow:
			a.add(AlertBreakdownBroke, "price %.2f broke the breakdown low %.2f: exit", s.Price, *p.BreakdownLow)
		case s.Price >= s.SMA && p.BreakdownLow != nil:
			a.BreakdownLow = nil
			a.BreakdownChanged = true
			a.add(AlertBreakdownReset, "recovered above the moving average (%.2f)", s.SMA)
		}
	}

	if r.HoldDays > 0 && s.TradingDays > r.HoldDays {
		a.add(AlertHoldDays, "held %d sessions: consider a partial exit", s.TradingDays-1)
	}
	return a
}
