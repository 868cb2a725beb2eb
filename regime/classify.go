package regime

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/riskos/market"
)

// Thresholds are the feedback and behavior cut-offs.
type Thresholds struct {
	// WinRateFloor forces RED when the recent win rate is below it.
	WinRateFloor float64
	// ChecklistDowngrade steps down one level at this many warning signs.
	// Zero disables the downgrade.
	ChecklistDowngrade int
}

func DefaultThresholds() Thresholds {
	return Thresholds{WinRateFloor: 0.20, ChecklistDowngrade: 3}
}

// Inputs are everything Classify looks at.
type Inputs struct {
	Proxies   []market.Trend `json:"proxies"`
	Checklist int            `json:"checklist"`
	WinRate   float64        `json:"win_rate"`
}

// Result is a classification with the reasoning behind it.
type Result struct {
	Regime Regime `json:"regime"`
	// Base is the trend-only regime before feedback and behavior layers.
	Base   Regime `json:"base"`
	Reason string `json:"reason"`
	Inputs Inputs `json:"inputs"`
	Err    error  `json:"-"`
}

// Classify applies the trend, feedback and behavior layers in that order.
func Classify(in Inputs, th Thresholds) Result {
	base, why := trend(in.Proxies)
	res := Result{Regime: base, Base: base, Reason: why, Inputs: in}
	if !base.Tradable() {
		return res
	}

	if in.WinRate < th.WinRateFloor {
		res.Regime = Red
		res.Reason = fmt.Sprintf("feedback override: recent win rate %.0f%% below %.0f%%",
			100*in.WinRate, 100*th.WinRateFloor)
		return res
	}

	if th.ChecklistDowngrade > 0 && in.Checklist >= th.ChecklistDowngrade {
		res.Regime = base.Downgrade()
		res.Reason = fmt.Sprintf("%s; %d warning signs, downgraded from %s", why, in.Checklist, base)
	}
	return res
}

func trend(proxies []market.Trend) (Regime, string) {
	if len(proxies) == 0 {
		return Unknown, "no trend proxies"
	}

	above, below := 0, 0
	names := make([]string, len(proxies))
	for i, p := range proxies {
		names[i] = p.Symbol
		switch {
		case p.Above():
			above++
		case p.Below():
			below++
		}
	}
	all := strings.Join(names, " & ")

	switch {
	case above == len(proxies):
		return Green, all + " above moving average"
	case below == len(proxies):
		return Red, all + " below moving average"
	default:
		return Yellow, "mixed signals across " + all
	}
}
