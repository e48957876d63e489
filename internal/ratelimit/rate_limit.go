/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-msgthrottle/admission"
)

// DefaultErrorRetryAfter is the delay reported by a limiter gate when the limiter fails.
const DefaultErrorRetryAfter = time.Second

// Rate describes the frequency of events.
type Rate struct {
	Count    int
	Duration time.Duration
}

func (r Rate) validate() error {
	if r.Count < 1 {
		return fmt.Errorf("%w, got %d", admission.ErrInvalidMaxEvents, r.Count)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("%w, got %s", admission.ErrInvalidInterval, r.Duration)
	}
	return nil
}

// Limiter interface defines the rate limiting contract.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}

// GateOpts contains optional parameters for Gate.
type GateOpts struct {
	// ErrorRetryAfter is reported when the limiter returns an error. DefaultErrorRetryAfter is used if 0.
	ErrorRetryAfter time.Duration

	// OnError is called with every limiter error (e.g. to log it).
	OnError func(err error)
}

// Gate binds a limiter and a key into an admission.Gate.
func Gate(limiter Limiter, key string) admission.Gate {
	return GateWithOpts(limiter, key, GateOpts{})
}

// GateWithOpts is a more configurable version of Gate.
// Limiter errors can't be propagated through admission.Gate, so they are reported
// via opts.OnError and turned into a retry delay.
func GateWithOpts(limiter Limiter, key string, opts GateOpts) admission.Gate {
	if opts.ErrorRetryAfter <= 0 {
		opts.ErrorRetryAfter = DefaultErrorRetryAfter
	}
	return admission.GateFunc(func() time.Duration {
		allow, retryAfter, err := limiter.Allow(context.Background(), key)
		if err != nil {
			if opts.OnError != nil {
				opts.OnError(err)
			}
			return opts.ErrorRetryAfter
		}
		if allow {
			return 0
		}
		if retryAfter <= 0 {
			return time.Nanosecond
		}
		return retryAfter
	})
}
