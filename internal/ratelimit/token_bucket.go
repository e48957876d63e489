/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-msgthrottle/clock"
	"github.com/acronis/go-msgthrottle/lrucache"
)

// TokenBucketLimiter implements token bucket rate limiting algorithm.
// The bucket holds up to maxBurst tokens and refills continuously at maxRate.
type TokenBucketLimiter struct {
	getLimiter func(key string) *rate.Limiter
	clock      clock.Clock
}

// NewTokenBucketLimiter creates a new token bucket rate limiter.
func NewTokenBucketLimiter(maxRate Rate, maxBurst, maxKeys int, clk clock.Clock) (*TokenBucketLimiter, error) {
	if err := maxRate.validate(); err != nil {
		return nil, err
	}
	if maxBurst < 1 {
		return nil, fmt.Errorf("max burst must be greater than 0, got %d", maxBurst)
	}
	if clk == nil {
		clk = clock.System{}
	}
	limit := rate.Limit(float64(maxRate.Count) / maxRate.Duration.Seconds())

	if maxKeys == 0 {
		lim := rate.NewLimiter(limit, maxBurst)
		return &TokenBucketLimiter{clock: clk, getLimiter: func(_ string) *rate.Limiter { return lim }}, nil
	}

	store, err := lrucache.New[string, *rate.Limiter](maxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	return &TokenBucketLimiter{
		clock: clk,
		getLimiter: func(key string) *rate.Limiter {
			lim, _ := store.GetOrAdd(key, func() *rate.Limiter {
				return rate.NewLimiter(limit, maxBurst)
			})
			return lim
		},
	}, nil
}

// Allow checks if the event should be allowed based on the rate limit.
// A denied reservation is canceled, so the tokens it would have taken are given back.
func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	now := l.clock.Now()
	r := l.getLimiter(key).ReserveN(now, 1)
	if !r.OK() {
		return false, 0, fmt.Errorf("token bucket reservation is not possible")
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}
