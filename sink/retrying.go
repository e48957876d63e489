/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package sink

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"github.com/acronis/go-msgthrottle/log"
	"github.com/acronis/go-msgthrottle/retry"
	"github.com/acronis/go-msgthrottle/throttle"
)

// DeliverFunc delivers a single message and reports whether it succeeded.
type DeliverFunc func(ctx context.Context, msg interface{}) error

// Retrying adapts a failing delivery function into a throttle.Sink.
// Every failed delivery is retried according to the policy. When the policy gives up,
// the failure is logged and counted, and the message is considered dispatched.
//
// Notify blocks for the whole retry sequence, so the policy should be short:
// a Throttle is not drained while its sink is busy.
type Retrying struct {
	deliver     DeliverFunc
	policy      retry.Policy
	isRetryable retry.IsRetryable
	ctx         context.Context
	logger      log.FieldLogger

	delivered atomic.Int64
	failed    atomic.Int64
}

var _ throttle.Sink = (*Retrying)(nil)

// RetryingOption is a functional option for NewRetrying.
type RetryingOption func(*Retrying)

// WithRetryLogger sets the logger for retry attempts and final failures.
func WithRetryLogger(logger log.FieldLogger) RetryingOption {
	return func(r *Retrying) {
		r.logger = logger
	}
}

// WithRetryContext sets the context that bounds all delivery attempts (context.Background by default).
func WithRetryContext(ctx context.Context) RetryingOption {
	return func(r *Retrying) {
		r.ctx = ctx
	}
}

// WithRetryableErrors sets a predicate that selects errors worth another attempt.
// By default, any error is retried.
func WithRetryableErrors(isRetryable retry.IsRetryable) RetryingOption {
	return func(r *Retrying) {
		r.isRetryable = isRetryable
	}
}

// NewRetrying creates a new Retrying sink.
func NewRetrying(deliver DeliverFunc, policy retry.Policy, opts ...RetryingOption) *Retrying {
	r := &Retrying{
		deliver: deliver,
		policy:  policy,
		ctx:     context.Background(),
		logger:  log.NewDisabledLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Notify implements throttle.Sink.
func (r *Retrying) Notify(msg interface{}) {
	attempt := 1
	notify := func(err error, delay time.Duration) {
		r.logger.Warn("message delivery failed, retrying",
			log.MessageType(msg), log.Int("attempt", attempt), log.Duration("retry_in", delay), log.Error(err))
		attempt++
	}
	err := retry.DoWithRetry(r.ctx, r.policy, r.isRetryable, notify, func(ctx context.Context) error {
		return r.deliver(ctx, msg)
	})
	if err != nil {
		r.failed.Inc()
		r.logger.Error("message delivery failed, giving up",
			log.MessageType(msg), log.Int("attempts", attempt), log.Error(err))
		return
	}
	r.delivered.Inc()
}

// Delivered returns the number of successfully delivered messages.
func (r *Retrying) Delivered() int64 {
	return r.delivered.Load()
}

// Failed returns the number of messages that could not be delivered.
func (r *Retrying) Failed() int64 {
	return r.failed.Load()
}
