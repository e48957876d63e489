/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package clock provides a time source abstraction for admission control.
//
// Production code uses System, which relies on the monotonic reading carried by time.Now(),
// so durations computed with time.Time.Sub are not affected by wall-clock adjustments.
// Tests use Manual to move time forward deterministically without sleeping.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock is a source of monotonic time.
//
// Successive calls on the same Clock must never go backward.
// Only differences between returned values are meaningful.
type Clock interface {
	Now() time.Time
}

// ClockFunc is an adapter to allow the use of ordinary functions as Clock.
// nolint: revive
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// System is a Clock backed by time.Now().
type System struct{}

var _ Clock = System{}

// Now returns the current time with the monotonic clock reading.
func (System) Now() time.Time {
	return time.Now()
}

// Manual is a Clock that moves only when told to. It is safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

var _ Clock = (*Manual)(nil)

// NewManual creates a Manual clock that starts at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d. Negative values are rejected.
func (m *Manual) Advance(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("advance duration must be >= 0, got %s", d)
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
	return nil
}

// Set moves the clock to an absolute time.
// Unlike Advance, it may move time backward, so it is meant for test setup only.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
