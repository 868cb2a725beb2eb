package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache stores provider responses for a short while.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu  sync.Mutex
	m   map[string]memEntry
	now func() time.Time
}

type memEntry struct {
	b   []byte
	exp time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]memEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		delete(c.m, key)
		return nil, false
	}
	return e.b, true
}

func (c *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memEntry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}
	c.m[key] = e
}

// RedisCache shares cached responses between processes.
type RedisCache struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, timeout: 500 * time.Millisecond}
}

// DialRedis connects to addr.
func DialRedis(addr string) *RedisCache {
	return NewRedisCache(redis.NewClient(&redis.Options{Addr: addr}))
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	v, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("redis get failed")
		}
		return nil, false
	}
	return v, true
}

func (r *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("redis set failed")
	}
}

// Close releases the client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Cached serves repeated reads from a Cache. Failures are never cached.
type Cached struct {
	inner Provider
	cache Cache
	ttl   time.Duration
}

// NewCached wraps inner with cache; ttl <= 0 disables caching.
func NewCached(inner Provider, cache Cache, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: cache, ttl: ttl}
}

func historyKey(symbol string, days int) string {
	return fmt.Sprintf("riskos:history:%s:%d", strings.ToUpper(symbol), days)
}

func closeKey(symbol string) string {
	return "riskos:close:" + strings.ToUpper(symbol)
}

func (c *Cached) LatestClose(ctx context.Context, symbol string) (float64, error) {
	if c.ttl > 0 {
		if b, ok := c.cache.Get(ctx, closeKey(symbol)); ok {
			if v, err := strconv.ParseFloat(string(b), 64); err == nil {
				return v, nil
			}
		}
	}

	v, err := c.inner.LatestClose(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if c.ttl > 0 {
		c.cache.Set(ctx, closeKey(symbol), []byte(strconv.FormatFloat(v, 'f', -1, 64)), c.ttl)
	}
	return v, nil
}

func (c *Cached) History(ctx context.Context, symbol string, days int) ([]Candle, error) {
	key := historyKey(symbol, days)
	if c.ttl > 0 {
		if b, ok := c.cache.Get(ctx, key); ok {
			var out []Candle
			if err := json.Unmarshal(b, &out); err == nil {
				return out, nil
			}
		}
	}

	out, err := c.inner.History(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 {
		if b, err := json.Marshal(out); err == nil {
			c.cache.Set(ctx, key, b, c.ttl)
		}
	}
	return out, nil
}
