package portfolio

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// MergePolicy decides the stops of a position after an additive fill.
type MergePolicy interface {
	Name() string
	Stops(old Position, fill Fill) (stop, initial float64)
}

// ResetPolicy treats the combined position as freshly risked at the new
// fill's stop.
type ResetPolicy struct{}

func (ResetPolicy) Name() string { return "reset" }

func (ResetPolicy) Stops(_ Position, f Fill) (float64, float64) {
	return f.Stop, f.Stop
}

// BlendPolicy keeps part of the original risk basis: the initial stop
// becomes the quantity-weighted average of the old initial stop and the
// new fill's stop.
type BlendPolicy struct{}

func (BlendPolicy) Name() string { return "blend" }

func (BlendPolicy) Stops(old Position, f Fill) (float64, float64) {
	total := float64(old.Quantity + f.Quantity)
	initial := (old.InitialStopLoss*float64(old.Quantity) + f.Stop*float64(f.Quantity)) / total
	return f.Stop, initial
}

// PolicyByName resolves a configured merge policy; empty means reset.
func PolicyByName(name string) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "reset":
		return ResetPolicy{}, nil
	case "blend":
		return BlendPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown merge policy %q", name)
}

// Open starts a new position from f dated now.
func Open(f Fill, now time.Time) (Position, error) {
	if err := f.Validate(); err != nil {
		return Position{}, err
	}
	return Position{
		Symbol:          NormalizeSymbol(f.Symbol),
		EntryPrice:      f.Entry,
		StopLoss:        f.Stop,
		InitialStopLoss: f.Stop,
		Quantity:        f.Quantity,
		Sector:          f.Sector,
		EntryDate:       now.Format(DateLayout),
	}, nil
}

// Merge adds f to old. Entry becomes the volume-weighted average cost and
// the entry date is kept, so later exits stay in the same trade group.
func Merge(old Position, f Fill, policy MergePolicy) (Position, error) {
	if err := f.Validate(); err != nil {
		return Position{}, err
	}
	if policy == nil {
		policy = ResetPolicy{}
	}

	total := old.Quantity + f.Quantity
	vwap := (old.EntryPrice*float64(old.Quantity) + f.Entry*float64(f.Quantity)) / float64(total)
	// keep rounding noise from escaping the fill range
	lo, hi := math.Min(old.EntryPrice, f.Entry), math.Max(old.EntryPrice, f.Entry)
	vwap = math.Min(math.Max(vwap, lo), hi)

	m := old
	m.EntryPrice = vwap
	m.Quantity = total
	m.StopLoss, m.InitialStopLoss = policy.Stops(old, f)
	if f.Sector != "" {
		m.Sector = f.Sector
	}
	return m, nil
}

// Add opens a position when existing is nil and merges into it otherwise.
func Add(existing *Position, f Fill, policy MergePolicy, now time.Time) (Position, error) {
	if existing == nil {
		return Open(f, now)
	}
	return Merge(*existing, f, policy)
}
