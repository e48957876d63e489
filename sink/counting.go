/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package sink

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/acronis/go-msgthrottle/throttle"
)

// Counting counts dispatched messages per concrete type and passes them on to the next sink (if any).
// It is safe to read the counters from other goroutines while messages are being dispatched.
type Counting struct {
	next   throttle.Sink
	total  atomic.Int64
	mu     sync.RWMutex
	byType map[string]*atomic.Int64
}

var _ throttle.Sink = (*Counting)(nil)

// NewCounting creates a Counting sink. next may be nil.
func NewCounting(next throttle.Sink) *Counting {
	return &Counting{next: next, byType: make(map[string]*atomic.Int64)}
}

// Notify implements throttle.Sink.
func (c *Counting) Notify(msg interface{}) {
	c.counter(typeName(msg)).Inc()
	c.total.Inc()
	if c.next != nil {
		c.next.Notify(msg)
	}
}

// Total returns the number of all dispatched messages.
func (c *Counting) Total() int64 {
	return c.total.Load()
}

// CountOf returns the number of dispatched messages that have the same concrete type as sample.
func (c *Counting) CountOf(sample interface{}) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cnt, ok := c.byType[typeName(sample)]; ok {
		return cnt.Load()
	}
	return 0
}

// Snapshot returns counters keyed by type name (as printed by %T).
func (c *Counting) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make(map[string]int64, len(c.byType))
	for name, cnt := range c.byType {
		res[name] = cnt.Load()
	}
	return res
}

func (c *Counting) counter(name string) *atomic.Int64 {
	c.mu.RLock()
	cnt, ok := c.byType[name]
	c.mu.RUnlock()
	if ok {
		return cnt
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cnt, ok = c.byType[name]; !ok {
		cnt = atomic.NewInt64(0)
		c.byType[name] = cnt
	}
	return cnt
}

func typeName(msg interface{}) string {
	return fmt.Sprintf("%T", msg)
}
