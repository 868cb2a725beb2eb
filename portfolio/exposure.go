package portfolio

import (
	"sort"
	"strings"
)

// OpenRisk is the position's live risk in R. It is zero when the stop is at
// or above cost, or when unit is not positive.
func (p Position) OpenRisk(unit float64) float64 {
	if unit <= 0 || p.StopLoss >= p.EntryPrice {
		return 0
	}
	return (p.EntryPrice - p.StopLoss) * float64(p.Quantity) / unit
}

// TOR is the total open risk of positions in R.
func TOR(positions []Position, unit float64) float64 {
	tor := 0.0
	for _, p := range positions {
		tor += p.OpenRisk(unit)
	}
	return tor
}

type Exposure struct {
	Position
	RiskAmount float64 `json:"risk_amount"`
	OpenR      float64 `json:"open_r"`
	Protected  bool    `json:"protected"`
}

// Summary is the portfolio's risk picture for one 1R unit and TOR limit.
type Summary struct {
	Unit      float64    `json:"unit"`
	TOR       float64    `json:"tor"`
	Limit     float64    `json:"limit"`
	Space     float64    `json:"space"`
	Exposures []Exposure `json:"exposures"`
}

// OverLimit reports TOR above the regime limit.
func (s Summary) OverLimit() bool { return s.TOR > s.Limit }

func Summarize(positions []Position, unit, limit float64) Summary {
	s := Summary{Unit: unit, Limit: limit, Exposures: make([]Exposure, 0, len(positions))}
	for _, p := range positions {
		e := Exposure{Position: p, Protected: p.Protected(), OpenR: p.OpenRisk(unit)}
		if !e.Protected {
			e.RiskAmount = (p.EntryPrice - p.StopLoss) * float64(p.Quantity)
		}
		s.TOR += e.OpenR
		s.Exposures = append(s.Exposures, e)
	}
	s.Space = limit - s.TOR
	return s
}

type SectorCount struct {
	Sector string `json:"sector"`
	Count  int    `json:"count"`
}

// SectorTheme is the grouping key of a sector label: the part before any
// "/" with case and surrounding space ignored, so "Tech/AI" and " tech "
// count as one theme.
func SectorTheme(sector string) string {
	if i := strings.IndexByte(sector, '/'); i >= 0 {
		sector = sector[:i]
	}
	return strings.ToLower(strings.TrimSpace(sector))
}

// SectorConcentration lists sector themes holding at least limit positions,
// most crowded first. Each theme is reported under the first spelling seen.
// Positions without a sector are ignored.
func SectorConcentration(positions []Position, limit int) []SectorCount {
	counts := map[string]int{}
	names := map[string]string{}
	for _, p := range positions {
		key := SectorTheme(p.Sector)
		if key == "" {
			continue
		}
		if _, ok := names[key]; !ok {
			names[key] = strings.TrimSpace(strings.SplitN(p.Sector, "/", 2)[0])
		}
		counts[key]++
	}

	var out []SectorCount
	for key, n := range counts {
		if limit > 0 && n >= limit {
			out = append(out, SectorCount{Sector: names[key], Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}
