package account

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a := Seed(DefaultSeed, now)
	assert.True(t, a.Equity.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, now, a.LastUpdated)
}

func TestApply(t *testing.T) {
	t.Parallel()

	start := Seed(10000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	later := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		m    Mutation
		want string
	}{
		{"deposit", Adjust(decimal.NewFromInt(500), "deposit"), "10500"},
		{"withdrawal", Adjust(decimal.NewFromInt(-2500), "withdrawal"), "7500"},
		{"realized credit", Credit(decimal.RequireFromString("200.10")), "10200.1"},
		{"force set", ForceSet(decimal.RequireFromString("1234.56")), "1234.56"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := start.Apply(tt.m, later)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Equity.String())
			assert.Equal(t, later, got.LastUpdated)
		})
	}
}

func TestApplyUnknownKind(t *testing.T) {
	t.Parallel()

	start := Seed(100, time.Now())
	_, err := start.Apply(Mutation{Kind: Kind(42)}, time.Now())
	assert.Error(t, err)
}

func TestCreditsAreExact(t *testing.T) {
	t.Parallel()

	a := Seed(0, time.Now())
	var err error
	for i := 0; i < 10; i++ {
		a, err = a.Apply(Credit(decimal.RequireFromString("0.1")), time.Now())
		require.NoError(t, err)
	}
	assert.True(t, a.Equity.Equal(decimal.NewFromInt(1)))
	assert.InDelta(t, 1.0, a.Float(), 1e-12)
}
