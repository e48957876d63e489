/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-msgthrottle/admission"
	"github.com/acronis/go-msgthrottle/clock"
	"github.com/acronis/go-msgthrottle/lrucache"
)

// WindowLimiter implements exact sliding window rate limiting on top of admission.Window.
// Unlike the admission.Window itself, it is safe for concurrent use.
type WindowLimiter struct {
	mu        sync.Mutex
	getWindow func(key string) *admission.Window
}

// NewWindowLimiter creates a new sliding window rate limiter that admits maxRate.Count
// events within any trailing maxRate.Duration.
func NewWindowLimiter(maxRate Rate, maxKeys int, clk clock.Clock) (*WindowLimiter, error) {
	if clk == nil {
		clk = clock.System{}
	}
	// Validate parameters once, so that windows created lazily below can't fail.
	first, err := admission.New(maxRate.Count, maxRate.Duration, admission.WithClock(clk))
	if err != nil {
		return nil, err
	}

	if maxKeys == 0 {
		return &WindowLimiter{getWindow: func(_ string) *admission.Window { return first }}, nil
	}

	store, err := lrucache.New[string, *admission.Window](maxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	return &WindowLimiter{
		getWindow: func(key string) *admission.Window {
			w, _ := store.GetOrAdd(key, func() *admission.Window {
				w, _ := admission.New(maxRate.Count, maxRate.Duration, admission.WithClock(clk))
				return w
			})
			return w
		},
	}, nil
}

// Allow checks if the event should be allowed based on the rate limit.
func (l *WindowLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if retryAfter = l.getWindow(key).Request(); retryAfter == 0 {
		return true, 0, nil
	}
	return false, retryAfter, nil
}
