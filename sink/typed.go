/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package sink provides throttle.Sink implementations: per-type routing, retrying delivery and counting.
package sink

import (
	"reflect"

	"github.com/acronis/go-msgthrottle/log"
	"github.com/acronis/go-msgthrottle/throttle"
)

// Typed routes every message to the handler registered for its concrete type.
// Messages of a type without a handler go to the fallback, which logs them at warn level by default.
//
// Handlers must be registered before the sink is used. Typed itself does not synchronize
// registration with Notify.
type Typed struct {
	handlers map[reflect.Type]func(msg interface{})
	fallback func(msg interface{})
}

var _ throttle.Sink = (*Typed)(nil)

// NewTyped creates a Typed sink. Unhandled messages are reported to logger.
func NewTyped(logger log.FieldLogger) *Typed {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Typed{
		handlers: make(map[reflect.Type]func(msg interface{})),
		fallback: func(msg interface{}) {
			logger.Warn("no handler for message, dropping it", log.MessageType(msg))
		},
	}
}

// Handle registers fn as the handler for messages of type M, replacing any previous one.
// M must be a concrete (non-interface) type.
func Handle[M any](t *Typed, fn func(msg M)) {
	t.handlers[reflect.TypeOf((*M)(nil)).Elem()] = func(msg interface{}) {
		fn(msg.(M))
	}
}

// SetFallback replaces the handler for messages of unregistered types.
func (t *Typed) SetFallback(fn func(msg interface{})) {
	t.fallback = fn
}

// Notify implements throttle.Sink.
func (t *Typed) Notify(msg interface{}) {
	if h, ok := t.handlers[reflect.TypeOf(msg)]; ok {
		h(msg)
		return
	}
	t.fallback(msg)
}
