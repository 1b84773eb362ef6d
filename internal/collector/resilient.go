package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"CrashSentinel/internal/model"
)

// ResilientFetcher rate-limits a Fetcher and trips a circuit breaker when the provider keeps failing.
type ResilientFetcher struct {
	inner   Fetcher
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// ResilienceConfig tunes ResilientFetcher.
type ResilienceConfig struct {
	RequestsPerSecond float64
	Burst             int
	MaxFailures       uint32
	OpenTimeout       time.Duration
}

// DefaultResilienceConfig returns limits that stay well below public API quotas.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{RequestsPerSecond: 2, Burst: 4, MaxFailures: 5, OpenTimeout: 2 * time.Minute}
}

// NewResilientFetcher wraps inner.
func NewResilientFetcher(inner Fetcher, cfg ResilienceConfig) *ResilientFetcher {
	settings := gobreaker.Settings{
		Name:    inner.Name(),
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return &ResilientFetcher{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (f *ResilientFetcher) Name() string { return f.inner.Name() }

// State reports the breaker state, used by the status endpoint.
func (f *ResilientFetcher) State() gobreaker.State { return f.breaker.State() }

func (f *ResilientFetcher) FetchCloses(ctx context.Context, symbol string, days int) (*model.PriceSeries, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	out, err := f.breaker.Execute(func() (interface{}, error) {
		return f.inner.FetchCloses(ctx, symbol, days)
	})
	if err != nil {
		return nil, err
	}
	return out.(*model.PriceSeries), nil
}
