/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package admission provides sliding-window admission control.
//
// A Window answers a single question: can one more event be admitted now, and if not,
// how long until it can. It never blocks and never schedules anything itself,
// retry timing is left to the caller.
package admission

import (
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-msgthrottle/clock"
	"github.com/acronis/go-msgthrottle/ringbuf"
)

// Errors returned by New for invalid window parameters.
var (
	ErrInvalidMaxEvents = errors.New("max events must be greater than 0")
	ErrInvalidInterval  = errors.New("interval must be greater than 0")
)

// Gate decides whether an event may be admitted now.
// Request returns 0 when the event is admitted (and recorded),
// or a positive duration to wait before asking again.
type Gate interface {
	Request() time.Duration
}

// GateFunc is an adapter to allow the use of ordinary functions as Gate.
type GateFunc func() time.Duration

// Request implements Gate.
func (f GateFunc) Request() time.Duration {
	return f()
}

// Window admits at most maxEvents events within any trailing interval.
// It keeps timestamps of the last maxEvents admissions in a ring history.
//
// Window is not safe for concurrent use, it must be owned by a single goroutine.
type Window struct {
	maxEvents int
	interval  time.Duration
	clock     clock.Clock
	history   *ringbuf.History[time.Time]
}

var _ Gate = (*Window)(nil)

// Option configures a Window.
type Option func(*Window)

// WithClock sets the time source. clock.System is used by default.
func WithClock(clk clock.Clock) Option {
	return func(w *Window) {
		w.clock = clk
	}
}

// New creates a new Window that admits up to maxEvents events per interval.
func New(maxEvents int, interval time.Duration, opts ...Option) (*Window, error) {
	if maxEvents < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidMaxEvents, maxEvents)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w, got %s", ErrInvalidInterval, interval)
	}
	history, err := ringbuf.New[time.Time](maxEvents)
	if err != nil {
		return nil, fmt.Errorf("new ring history: %w", err)
	}
	w := &Window{maxEvents: maxEvents, interval: interval, clock: clock.System{}, history: history}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Request tries to admit one event.
//
// While fewer than maxEvents events have ever been admitted, every request is admitted
// regardless of timing. After that, a request is denied as long as the oldest of the last
// maxEvents admissions is within interval of now, and the remaining time until it leaves
// the window is returned. A denied request leaves the window state unchanged.
func (w *Window) Request() time.Duration {
	now := w.clock.Now()
	if oldest, full := w.history.Oldest(); full {
		if sinceOldest := now.Sub(oldest); sinceOldest <= w.interval {
			if wait := w.interval - sinceOldest; wait > 0 {
				return wait
			}
			// The oldest event is exactly on the window edge: still counted, so retry at the next tick.
			return time.Nanosecond
		}
	}
	w.history.Insert(now)
	return 0
}

// MaxEvents returns the maximum number of events admitted per interval.
func (w *Window) MaxEvents() int {
	return w.maxEvents
}

// Interval returns the window length.
func (w *Window) Interval() time.Duration {
	return w.interval
}
