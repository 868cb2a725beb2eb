// Package regime classifies the market into a risk regime and maps each
// regime to its fixed risk parameters.
package regime

import (
	"errors"
	"fmt"
	"strings"
)

// Regime is the operating mode that scales per-trade risk and bounds total
// open risk.
type Regime string

const (
	Green   Regime = "GREEN"
	Yellow  Regime = "YELLOW"
	Red     Regime = "RED"
	Unknown Regime = "UNKNOWN"
	Failed  Regime = "ERROR"
)

// ErrNoParameters is returned for regimes that carry no risk parameters.
var ErrNoParameters = errors.New("regime has no parameters")

// Params are the fixed risk settings of a tradable regime.
type Params struct {
	TORLimit    float64 `json:"tor_limit"`
	RMultiplier float64 `json:"r_multiplier"`
	Description string  `json:"description"`
}

var table = map[Regime]Params{
	Green:  {TORLimit: 5.0, RMultiplier: 1.0, Description: "full speed"},
	Yellow: {TORLimit: 3.0, RMultiplier: 0.5, Description: "half speed"},
	Red:    {TORLimit: 1.0, RMultiplier: 0.25, Description: "survival"},
}

// Params looks r up in the parameter table.
func (r Regime) Params() (Params, error) {
	p, ok := table[r]
	if !ok {
		return Params{}, fmt.Errorf("%w: %s", ErrNoParameters, r)
	}
	return p, nil
}

// Tradable reports whether r can be applied as the active regime.
func (r Regime) Tradable() bool {
	_, ok := table[r]
	return ok
}

// Downgrade steps one level toward RED. RED and the non-tradable regimes are
// returned unchanged.
func (r Regime) Downgrade() Regime {
	switch r {
	case Green:
		return Yellow
	case Yellow:
		return Red
	default:
		return r
	}
}

func (r Regime) String() string { return string(r) }

// ParseRegime accepts any casing of the five regime names.
func ParseRegime(s string) (Regime, error) {
	r := Regime(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case Green, Yellow, Red, Unknown, Failed:
		return r, nil
	}
	return "", fmt.Errorf("unknown regime %q", s)
}

// All lists the tradable regimes from most to least aggressive.
func All() []Regime {
	return []Regime{Green, Yellow, Red}
}
