// Package ratelimit throttles reconnects to a feed source so a flapping endpoint
// is not hammered.
package ratelimit

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

type Limiter struct {
	limiter  *rate.Limiter
	attempts atomic.Int64
}

// New allows perSecond attempts on average with bursts of burst. A perSecond of 0
// or less disables throttling; burst is raised to 1.
func New(perSecond float64, burst int) *Limiter {
	burst = max(burst, 1)
	if perSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, burst)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until the next attempt is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.attempts.Add(1)
	return l.limiter.Wait(ctx)
}

// Allow is non-blocking and useful for checking throttling.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Attempts returns how many times Wait was called.
func (l *Limiter) Attempts() int64 {
	return l.attempts.Load()
}

// SetLimit can be called at runtime.
func (l *Limiter) SetLimit(perSecond float64) {
	if perSecond <= 0 {
		l.limiter.SetLimit(rate.Inf)
	} else {
		l.limiter.SetLimit(rate.Limit(perSecond))
	}
}

// Limit returns the configured rate, 0 when unthrottled.
func (l *Limiter) Limit() float64 {
	limit := l.limiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	return float64(limit)
}
