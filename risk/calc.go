package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/riskos/regime"
)

// ErrInvalidInput rejects sizing and position requests that make no sense.
var ErrInvalidInput = errors.New("invalid input")

// share counts within this distance of the next integer round up; it keeps
// 100/5 style divisions from landing on 19.999...
const floorEpsilon = 1e-9

func floorShares(x float64) int {
	if x <= 0 {
		return 0
	}
	return int(math.Floor(x + floorEpsilon))
}

type Inputs struct {
	Equity     float64
	Entry      float64
	Stop       float64
	Regime     regime.Params
	CurrentTOR float64
}

func (in Inputs) validate() error {
	switch {
	case in.Equity <= 0:
		return fmt.Errorf("%w: equity must be positive, got %v", ErrInvalidInput, in.Equity)
	case in.Entry <= 0:
		return fmt.Errorf("%w: entry must be positive, got %v", ErrInvalidInput, in.Entry)
	case in.Entry <= in.Stop:
		return fmt.Errorf("%w: entry %v must be above stop %v", ErrInvalidInput, in.Entry, in.Stop)
	case in.Regime.RMultiplier <= 0:
		return fmt.Errorf("%w: regime multiplier must be positive", ErrInvalidInput)
	}
	return nil
}

// Target is a price objective n risk units above entry.
type Target struct {
	R     int     `json:"r"`
	Price float64 `json:"price"`
}

// Sizing is the advisory result of Size.
type Sizing struct {
	ActiveUnit        float64     `json:"active_unit"`
	StopDistance      float64     `json:"stop_distance"`
	StopDistancePct   float64     `json:"stop_distance_pct"`
	TheoreticalShares int         `json:"theoretical_shares"`
	CapShares         int         `json:"cap_shares"`
	FinalShares       int         `json:"final_shares"`
	DollarSize        float64     `json:"dollar_size"`
	PctOfEquity       float64     `json:"pct_of_equity"`
	CapBound          bool        `json:"cap_bound"`
	OccupiedR         float64     `json:"occupied_r"`
	RemainingTOR      float64     `json:"remaining_tor"`
	ExceedsTOR        bool        `json:"exceeds_tor"`
	Targets           []Target    `json:"targets"`
	Flags             []Violation `json:"flags,omitempty"`
}

// Size converts an entry/stop pair into a share count under policy p.
func Size(p Policy, in Inputs) (Sizing, error) {
	if err := in.validate(); err != nil {
		return Sizing{}, err
	}

	s := Sizing{
		ActiveUnit:   p.ActiveUnit(in.Equity, in.Regime),
		StopDistance: in.Entry - in.Stop,
	}
	s.StopDistancePct = s.StopDistance / in.Entry
	s.TheoreticalShares = floorShares(s.ActiveUnit / s.StopDistance)
	s.CapShares = floorShares(in.Equity * p.MaxPositionPct / in.Entry)

	s.FinalShares = s.TheoreticalShares
	if s.CapShares < s.TheoreticalShares {
		s.FinalShares = s.CapShares
		s.CapBound = true
	}

	s.DollarSize = float64(s.FinalShares) * in.Entry
	s.PctOfEquity = s.DollarSize / in.Equity
	s.OccupiedR = float64(s.FinalShares) * s.StopDistance / s.ActiveUnit
	s.RemainingTOR = in.Regime.TORLimit - in.CurrentTOR
	s.ExceedsTOR = s.OccupiedR > s.RemainingTOR+floorEpsilon

	for n := 1; n <= 3; n++ {
		s.Targets = append(s.Targets, Target{R: n, Price: in.Entry + float64(n)*s.StopDistance})
	}

	s.check(p.MaxPositionPct)
	return s, nil
}

// RiskAmount is the currency lost if shares are stopped out at stop.
func RiskAmount(shares int, entry, stop float64) float64 {
	return math.Abs(entry-stop) * float64(shares)
}
