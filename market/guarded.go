package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardConfig tunes the breaker and limiter in front of a provider.
type GuardConfig struct {
	Name        string
	RPS         float64
	Burst       int
	MaxFailures uint32
	OpenTimeout time.Duration
}

// DefaultGuardConfig suits a free public quote API.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Name:        "market",
		RPS:         2,
		Burst:       4,
		MaxFailures: 3,
		OpenTimeout: 30 * time.Second,
	}
}

// Guarded rate limits an upstream provider and stops calling it after
// repeated failures. Every failure it returns wraps ErrDataUnavailable.
type Guarded struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	// OnFailure, when set, is told about every degraded call.
	OnFailure func(symbol string, err error)
}

// NewGuarded wraps inner.
func NewGuarded(inner Provider, cfg GuardConfig) *Guarded {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	settings := gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about upstream health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("market data breaker state change")
		},
	}

	return &Guarded{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
}

// State exposes the breaker state for status output.
func (g *Guarded) State() string {
	return g.breaker.State().String()
}

func (g *Guarded) LatestClose(ctx context.Context, symbol string) (float64, error) {
	v, err := g.call(ctx, symbol, func() (interface{}, error) {
		return g.inner.LatestClose(ctx, symbol)
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (g *Guarded) History(ctx context.Context, symbol string, days int) ([]Candle, error) {
	v, err := g.call(ctx, symbol, func() (interface{}, error) {
		return g.inner.History(ctx, symbol, days)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Candle), nil
}

func (g *Guarded) call(ctx context.Context, symbol string, fn func() (interface{}, error)) (interface{}, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, g.degrade(symbol, err)
	}

	start := time.Now()
	v, err := g.breaker.Execute(fn)
	if err != nil {
		return nil, g.degrade(symbol, err)
	}

	log.Debug().
		Str("symbol", symbol).
		Dur("elapsed", time.Since(start)).
		Msg("market data fetched")
	return v, nil
}

func (g *Guarded) degrade(symbol string, err error) error {
	log.Warn().Err(err).Str("symbol", symbol).Msg("market data degraded")
	if g.OnFailure != nil {
		g.OnFailure(symbol, err)
	}
	if errors.Is(err, ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrDataUnavailable, symbol, err)
}
