/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ringbuf provides a fixed-capacity history of the most recently inserted values.
package ringbuf

import (
	"errors"
	"fmt"
)

// ErrInvalidCapacity is returned when a History is created with a capacity less than 1.
var ErrInvalidCapacity = errors.New("capacity must be greater than 0")

// History keeps the last N inserted values in insertion order, overwriting the oldest one when full.
// Insert and Back are O(1) and never allocate.
//
// History is not safe for concurrent use.
type History[T any] struct {
	items  []T
	cursor int
	full   bool
}

// New creates an empty History with the given capacity.
func New[T any](capacity int) (*History[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCapacity, capacity)
	}
	return &History[T]{items: make([]T, capacity)}, nil
}

// Insert writes v over the oldest slot and advances the cursor.
// The history becomes full once the cursor wraps for the first time and stays full afterwards.
func (h *History[T]) Insert(v T) {
	h.items[h.cursor] = v
	h.cursor++
	if h.cursor == len(h.items) {
		h.cursor = 0
		h.full = true
	}
}

// Back returns the value that the next Insert will overwrite.
// Until the history is full it returns the first slot, which holds the zero value of T
// before the first insertion. Callers should check IsFull (or use Oldest) before trusting it.
func (h *History[T]) Back() T {
	if !h.full {
		return h.items[0]
	}
	return h.items[h.cursor]
}

// Oldest returns the oldest retained value.
// ok is false until the history is full, since before that the oldest slot has no meaning
// for callers reasoning about the last N values.
func (h *History[T]) Oldest() (v T, ok bool) {
	if !h.full {
		return v, false
	}
	return h.items[h.cursor], true
}

// IsFull reports whether capacity insertions have happened.
func (h *History[T]) IsFull() bool {
	return h.full
}

// Len returns the number of retained values.
func (h *History[T]) Len() int {
	if h.full {
		return len(h.items)
	}
	return h.cursor
}

// Cap returns the capacity of the history.
func (h *History[T]) Cap() int {
	return len(h.items)
}
