// Package account holds the single equity balance the risk engine sizes against.
//
// Every change to the balance is expressed as a Mutation and goes through
// Account.Apply, so callers that persist the account only ever have one write
// path to wrap in a transaction.
package account

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSeed is the balance an account is created with.
const DefaultSeed = 10000.0

// Account is the process-wide equity cell.
type Account struct {
	Equity      decimal.Decimal
	LastUpdated time.Time
}

// Seed returns a fresh account holding amount.
func Seed(amount float64, now time.Time) Account {
	return Account{Equity: decimal.NewFromFloat(amount), LastUpdated: now}
}

// Kind identifies how a Mutation changes the balance.
type Kind int

const (
	// KindAdjust adds Amount (negative for withdrawals).
	KindAdjust Kind = iota
	// KindForceSet replaces the balance with Amount.
	KindForceSet
)

func (k Kind) String() string {
	switch k {
	case KindAdjust:
		return "adjust"
	case KindForceSet:
		return "force_set"
	default:
		return "unknown"
	}
}

// Mutation is one requested change to the balance.
type Mutation struct {
	Kind   Kind
	Amount decimal.Decimal
	Reason string
}

// Adjust is a deposit, a withdrawal or any other signed delta.
func Adjust(delta decimal.Decimal, reason string) Mutation {
	return Mutation{Kind: KindAdjust, Amount: delta, Reason: reason}
}

// Credit books realized P&L from an exit.
func Credit(pnl decimal.Decimal) Mutation {
	return Adjust(pnl, "realized")
}

// ForceSet overwrites the balance, for manual corrections.
func ForceSet(value decimal.Decimal) Mutation {
	return Mutation{Kind: KindForceSet, Amount: value, Reason: "manual"}
}

// Apply returns the account after m, stamped with now.
func (a Account) Apply(m Mutation, now time.Time) (Account, error) {
	switch m.Kind {
	case KindAdjust:
		a.Equity = a.Equity.Add(m.Amount)
	case KindForceSet:
		a.Equity = m.Amount
	default:
		return a, fmt.Errorf("account: unknown mutation kind %d", m.Kind)
	}
	a.LastUpdated = now
	return a, nil
}

// Float is the balance as used by the sizing math.
func (a Account) Float() float64 {
	return a.Equity.InexactFloat64()
}
