/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package throttle provides a rate-limited message sender with deferred, priority-ordered delivery.
//
// A Throttle admits submitted messages through an admission gate (a sliding window by default).
// Admitted messages are handed to the Sink immediately. Throttled messages are buffered in one of
// two lanes: the high-priority lane for messages of the designated type H, and the secondary lane
// for everything else. Drain flushes the buffered messages as capacity frees up, always emptying
// the high-priority lane before touching the secondary one. Within a lane, messages are delivered
// in submission order.
//
// Neither Submit nor Drain ever blocks. A non-zero returned duration means "something is still
// buffered, call Drain again no earlier than after this delay". Calling Drain earlier is harmless.
//
// The lanes are unbounded: if submissions persistently outpace the configured rate, the backlog
// grows without limit. Capacity planning (or shedding at the producer side) is up to the caller.
//
// Throttle is not safe for concurrent use. If several goroutines produce messages, they must be
// serialized by the caller, e.g. by feeding a single owning goroutine through a channel
// (see the dispatcher package).
package throttle

import (
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-msgthrottle/admission"
)

// Errors returned by constructors.
var (
	ErrNilSink = errors.New("sink must not be nil")
	ErrNilGate = errors.New("admission gate must not be nil")
)

// Sink receives every message exactly once, at the moment it is dispatched.
// Notify must not panic for a well-formed message. Delivery failures are the sink's own concern.
type Sink interface {
	Notify(msg interface{})
}

// SinkFunc is an adapter to allow the use of ordinary functions as Sink.
type SinkFunc func(msg interface{})

// Notify implements Sink.
func (f SinkFunc) Notify(msg interface{}) {
	f(msg)
}

// pendingMessage is a buffered message of any type together with the operation that delivers it.
type pendingMessage struct {
	msg    interface{}
	notify func()
}

// Throttle is a rate-limited sender with a high-priority lane for messages of type H.
type Throttle[H any] struct {
	gate      admission.Gate
	sink      Sink
	highLane  lane[H]
	otherLane lane[pendingMessage]
}

// New creates a Throttle that admits up to maxEvents messages per interval
// using a sliding window. Window options (e.g. admission.WithClock) are passed through.
func New[H any](maxEvents int, interval time.Duration, sink Sink, opts ...admission.Option) (*Throttle[H], error) {
	window, err := admission.New(maxEvents, interval, opts...)
	if err != nil {
		return nil, fmt.Errorf("new admission window: %w", err)
	}
	return NewWithGate[H](window, sink)
}

// NewWithGate creates a Throttle that uses the given admission gate.
func NewWithGate[H any](gate admission.Gate, sink Sink) (*Throttle[H], error) {
	if gate == nil {
		return nil, ErrNilGate
	}
	if sink == nil {
		return nil, ErrNilSink
	}
	return &Throttle[H]{gate: gate, sink: sink}, nil
}

// Submit sends msg right away if the gate admits it and returns 0.
// Otherwise msg is buffered (in the high-priority lane if it is an H) and the delay
// after which Drain should be called is returned. Submit never drops a message.
func (t *Throttle[H]) Submit(msg interface{}) time.Duration {
	delay := t.gate.Request()
	if delay == 0 {
		t.sink.Notify(msg)
		return 0
	}
	if hp, ok := msg.(H); ok {
		t.highLane.push(hp)
		return delay
	}
	t.otherLane.push(pendingMessage{msg: msg, notify: func() { t.sink.Notify(msg) }})
	return delay
}

// Drain sends buffered messages while the gate admits them, high-priority lane first.
// It stops at the first denial and returns the delay reported by the gate; in that case
// the secondary lane is not touched unless the high-priority lane has been emptied.
// Drain returns 0 only when both lanes are empty. With nothing buffered it does not
// consult the gate at all.
func (t *Throttle[H]) Drain() time.Duration {
	for {
		hp, ok := t.highLane.front()
		if !ok {
			break
		}
		if delay := t.gate.Request(); delay != 0 {
			return delay
		}
		t.highLane.popFront()
		t.sink.Notify(hp)
	}
	for {
		pm, ok := t.otherLane.front()
		if !ok {
			break
		}
		if delay := t.gate.Request(); delay != 0 {
			return delay
		}
		t.otherLane.popFront()
		pm.notify()
	}
	return 0
}

// Pending returns the number of buffered messages in the high-priority and secondary lanes.
func (t *Throttle[H]) Pending() (high, other int) {
	return t.highLane.len(), t.otherLane.len()
}

// Len returns the total number of buffered messages.
func (t *Throttle[H]) Len() int {
	return t.highLane.len() + t.otherLane.len()
}
