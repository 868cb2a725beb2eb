package risk

import (
	"fmt"

	"github.com/rustyeddy/riskos/regime"
)

// Policy holds the account-wide sizing constants.
type Policy struct {
	// BaseRiskPct is the fraction of equity risked per trade before the
	// regime multiplier (0.01 = 1%).
	BaseRiskPct float64 `json:"base_risk_pct" yaml:"base_risk_pct"`
	// MaxPositionPct caps a single position's notional as a fraction of
	// equity, whatever the stop distance.
	MaxPositionPct float64 `json:"max_position_pct" yaml:"max_position_pct"`
}

func DefaultPolicy() Policy {
	return Policy{BaseRiskPct: 0.01, MaxPositionPct: 0.20}
}

func (p Policy) Validate() error {
	if p.BaseRiskPct <= 0 || p.BaseRiskPct >= 1 {
		return fmt.Errorf("base_risk_pct must be in (0,1), got %v", p.BaseRiskPct)
	}
	if p.MaxPositionPct <= 0 || p.MaxPositionPct > 1 {
		return fmt.Errorf("max_position_pct must be in (0,1], got %v", p.MaxPositionPct)
	}
	return nil
}

// ActiveUnit is the currency value of 1R for equity under params.
func (p Policy) ActiveUnit(equity float64, params regime.Params) float64 {
	return equity * p.BaseRiskPct * params.RMultiplier
}
