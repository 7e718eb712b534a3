// Package ratelimit implements the shared request throttle: a minimum
// interval between consecutive outbound requests, across all hosts.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/player-dossier/internal/metrics"
)

// MinInterval is the smallest interval the limiter accepts.
const MinInterval = 200 * time.Millisecond

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 1200 * time.Millisecond

// Config holds rate limiter configuration.
type Config struct {
	// Interval is the minimum spacing between request starts. Values below
	// MinInterval are raised to it; zero means DefaultInterval.
	Interval time.Duration
}

// Limiter spaces outbound requests. It is safe for concurrent use; callers
// serialize on a single token bucket with a burst of one.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	metrics.Init()
	interval := Clamp(cfg.Interval)
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Clamp applies the default and the floor to a configured interval.
func Clamp(interval time.Duration) time.Duration {
	switch {
	case interval == 0:
		return DefaultInterval
	case interval < MinInterval:
		return MinInterval
	default:
		return interval
	}
}

// Interval returns the effective spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the next request may start and returns how long it
// waited. The wait is recorded against the host of rawURL.
func (l *Limiter) Wait(ctx context.Context, rawURL string) (time.Duration, error) {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return time.Since(start), fmt.Errorf("rate limit wait: %w", err)
	}
	waited := time.Since(start)
	if waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(metrics.SanitizeSite(rawURL), waited)
	}
	return waited, nil
}
