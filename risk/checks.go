package risk

import "fmt"

const (
	CodePositionCap = "POSITION_CAP"
	CodeTORExceeded = "TOR_EXCEEDED"
)

// Violation is an advisory flag raised while sizing. Flags never block.
type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (s *Sizing) add(code, msg string) {
	s.Flags = append(s.Flags, Violation{Code: code, Msg: msg})
}

// Flagged reports whether code was raised.
func (s Sizing) Flagged(code string) bool {
	for _, v := range s.Flags {
		if v.Code == code {
			return true
		}
	}
	return false
}

func (s *Sizing) check(maxPositionPct float64) {
	if s.CapBound {
		s.add(CodePositionCap,
			fmt.Sprintf("position capped at %.0f%% of equity: %d shares instead of %d",
				100*maxPositionPct, s.CapShares, s.TheoreticalShares))
	}
	if s.ExceedsTOR {
		s.add(CodeTORExceeded,
			fmt.Sprintf("occupied %.2fR exceeds remaining TOR budget %.2fR", s.OccupiedR, s.RemainingTOR))
	}
}
