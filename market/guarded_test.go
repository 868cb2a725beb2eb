package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flaky fails until healthy is set and counts upstream calls.
type flaky struct {
	mu      sync.Mutex
	calls   int
	healthy bool
	series  []Candle
}

func (f *flaky) hit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !f.healthy {
		return errors.New("connection reset")
	}
	return nil
}

func (f *flaky) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *flaky) LatestClose(ctx context.Context, symbol string) (float64, error) {
	if err := f.hit(); err != nil {
		return 0, err
	}
	last, _ := Last(f.series)
	return last.Close, nil
}

func (f *flaky) History(ctx context.Context, symbol string, days int) ([]Candle, error) {
	if err := f.hit(); err != nil {
		return nil, err
	}
	return f.series, nil
}

func testGuardConfig() GuardConfig {
	return GuardConfig{Name: "test", MaxFailures: 3, OpenTimeout: time.Minute}
}

func TestGuardedPassesThrough(t *testing.T) {
	t.Parallel()

	up := &flaky{healthy: true, series: Closes(day, 1, 2, 3)}
	g := NewGuarded(up, testGuardConfig())

	px, err := g.LatestClose(context.Background(), "SPY")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, px, 1e-12)

	c, err := g.History(context.Background(), "SPY", 10)
	require.NoError(t, err)
	assert.Len(t, c, 3)
	assert.Equal(t, "closed", g.State())
}

func TestGuardedTripsAndDegrades(t *testing.T) {
	t.Parallel()

	up := &flaky{}
	g := NewGuarded(up, testGuardConfig())

	var failures []string
	g.OnFailure = func(symbol string, err error) {
		failures = append(failures, symbol)
	}

	for i := 0; i < 3; i++ {
		_, err := g.History(context.Background(), "SPY", 60)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDataUnavailable)
		assert.ErrorContains(t, err, "connection reset")
	}
	assert.Equal(t, "open", g.State())

	// open breaker short-circuits without touching upstream
	_, err := g.LatestClose(context.Background(), "RSP")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Equal(t, 3, up.count())
	assert.Equal(t, []string{"SPY", "SPY", "SPY", "RSP"}, failures)
}

func TestGuardedKeepsUnavailableErrors(t *testing.T) {
	t.Parallel()

	g := NewGuarded(NewStatic(), testGuardConfig())

	_, err := g.History(context.Background(), "NOPE", 10)
	require.ErrorIs(t, err, ErrDataUnavailable)
	assert.Equal(t, "market data unavailable: no series for NOPE", err.Error())
}

func TestGuardedCancelledContext(t *testing.T) {
	t.Parallel()

	up := &flaky{healthy: true}
	g := NewGuarded(up, GuardConfig{RPS: 0.001, Burst: 1, MaxFailures: 1})

	// burn the single token so the next call has to wait
	_, err := g.LatestClose(context.Background(), "SPY")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.LatestClose(ctx, "SPY")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Equal(t, "closed", g.State())
	assert.Equal(t, 1, up.count())
}
