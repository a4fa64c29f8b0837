package label

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
)

// GuardConfig bounds how hard a provider is hit.
type GuardConfig struct {
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
	// Consecutive failures that open the breaker.
	MaxFailures  uint32
	OpenDuration time.Duration
}

// DefaultGuardConfig allows 2 requests/s and opens after 5 straight failures
// for 30 seconds.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{RequestsPerSecond: 2, Burst: 4, MaxFailures: 5, OpenDuration: 30 * time.Second}
}

// Guarded wraps a Provider with a rate limiter and a circuit breaker, so a
// provider that keeps failing is skipped quickly instead of timing out on
// every cluster.
type Guarded struct {
	inner   Provider
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
}

// Guard wraps p.
func Guard(p Provider, cfg GuardConfig, log zerolog.Logger) *Guarded {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultGuardConfig().MaxFailures
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = DefaultGuardConfig().OpenDuration
	}
	g := &Guarded{inner: p}
	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, cfg.Burst))
	}
	maxFailures := cfg.MaxFailures
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(p.Source()),
		MaxRequests: 1,
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("label provider breaker state changed")
		},
	})
	return g
}

// Source implements Provider.
func (g *Guarded) Source() Source { return g.inner.Source() }

// Open reports whether the breaker is currently rejecting calls.
func (g *Guarded) Open() bool { return g.cb.State() == gobreaker.StateOpen }

// Complete implements Provider.
func (g *Guarded) Complete(ctx context.Context, system, user string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%s: rate limit: %w", g.inner.Source(), err)
		}
	}
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.Complete(ctx, system, user)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", fmt.Errorf("%s: %v: %w", g.inner.Source(), err, internalerr.ErrProviderUnavailable)
		}
		return "", err
	}
	return out.(string), nil
}
