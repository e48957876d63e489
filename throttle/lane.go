/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

// lane is an unbounded FIFO queue. Popped slots are zeroed so payloads can be collected,
// and the backing slice is compacted once more than half of it is dead space.
type lane[T any] struct {
	items []T
	head  int
}

func (l *lane[T]) push(v T) {
	l.items = append(l.items, v)
}

func (l *lane[T]) front() (v T, ok bool) {
	if l.head == len(l.items) {
		return v, false
	}
	return l.items[l.head], true
}

func (l *lane[T]) popFront() {
	var zero T
	l.items[l.head] = zero
	l.head++
	switch {
	case l.head == len(l.items):
		l.items = l.items[:0]
		l.head = 0
	case l.head > len(l.items)/2:
		n := copy(l.items, l.items[l.head:])
		for i := n; i < len(l.items); i++ {
			l.items[i] = zero
		}
		l.items = l.items[:n]
		l.head = 0
	}
}

func (l *lane[T]) len() int {
	return len(l.items) - l.head
}
