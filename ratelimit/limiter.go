// Package ratelimit paces outbound RPC calls so a burst of discovery or
// hydration work never exceeds the rate an upstream gateway allows. It is a thin adapter over golang.org/x/time/rate: the interesting
// behavior (token bucket, context-aware waiting) already lives there.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter grants one permit every MinInterval, with no burst headroom: each
// caller of Acquire blocks until its own slot comes up, which is what keeps
// two independently-scanning goroutines sharing one limiter from exceeding
// the configured rate between them.
type Limiter struct {
	rl *rate.Limiter
}

// New builds a Limiter that allows at most one call per minInterval. A
// non-positive minInterval disables pacing entirely (used by tests and by
// endpoints explicitly configured as unthrottled).
func New(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		return &Limiter{rl: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{rl: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Acquire blocks until a permit is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.rl.Wait(ctx)
}
