package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 14, 9, 30, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Set(ctx, "forever", []byte("x"), 0)

	b, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(b))

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	_, ok = c.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestCachedServesRepeatReads(t *testing.T) {
	t.Parallel()

	up := &flaky{healthy: true, series: Closes(day, 4, 5, 6)}
	c := NewCached(up, NewMemoryCache(), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h, err := c.History(ctx, "spy", 30)
		require.NoError(t, err)
		require.Len(t, h, 3)
		assert.InDelta(t, 6.0, h[2].Close, 1e-12)
		assert.True(t, h[2].Time.Equal(day))
	}
	assert.Equal(t, 1, up.count())

	// a different window is a different key
	_, err := c.History(ctx, "SPY", 60)
	require.NoError(t, err)
	assert.Equal(t, 2, up.count())

	for i := 0; i < 2; i++ {
		px, err := c.LatestClose(ctx, "SPY")
		require.NoError(t, err)
		assert.InDelta(t, 6.0, px, 1e-12)
	}
	assert.Equal(t, 3, up.count())
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	up := &flaky{}
	c := NewCached(up, NewMemoryCache(), time.Minute)
	ctx := context.Background()

	_, err := c.History(ctx, "SPY", 30)
	require.Error(t, err)

	up.mu.Lock()
	up.healthy = true
	up.series = Closes(day, 1)
	up.mu.Unlock()

	h, err := c.History(ctx, "SPY", 30)
	require.NoError(t, err)
	assert.Len(t, h, 1)
	assert.Equal(t, 2, up.count())
}

func TestCachedDisabled(t *testing.T) {
	t.Parallel()

	up := &flaky{healthy: true, series: Closes(day, 1)}
	c := NewCached(up, NewMemoryCache(), 0)

	for i := 0; i < 2; i++ {
		_, err := c.LatestClose(context.Background(), "SPY")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, up.count())
}

func TestRedisCache(t *testing.T) {
	t.Parallel()

	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db)
	ctx := context.Background()

	mock.ExpectGet("riskos:close:SPY").RedisNil()
	_, ok := c.Get(ctx, "riskos:close:SPY")
	assert.False(t, ok)

	mock.ExpectSet("riskos:close:SPY", []byte("512.5"), time.Minute).SetVal("OK")
	c.Set(ctx, "riskos:close:SPY", []byte("512.5"), time.Minute)

	mock.ExpectGet("riskos:close:SPY").SetVal("512.5")
	b, ok := c.Get(ctx, "riskos:close:SPY")
	require.True(t, ok)
	assert.Equal(t, "512.5", string(b))

	mock.ExpectGet("riskos:close:RSP").SetErr(errors.New("connection refused"))
	_, ok = c.Get(ctx, "riskos:close:RSP")
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}
