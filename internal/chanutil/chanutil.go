// Package chanutil provides the bounded queue and signal primitives the
// core's cooperative pipeline is built from: a fixed-capacity multi-producer
// channel that drops the oldest pending item on overflow instead of
// blocking a producer, and a single-slot wakeup signal.
package chanutil

import "sync"

// Bounded wraps a buffered channel of capacity N and reports whether a send
// dropped the oldest pending value to make room. The firmware core never
// lets a producer block indefinitely on a full queue (scanner interrupts
// must keep running), so Send always succeeds immediately.
type Bounded[T any] struct {
	ch chan T
}

// NewBounded creates a Bounded channel with the given fixed capacity.
func NewBounded[T any](capacity int) *Bounded[T] {
	return &Bounded[T]{ch: make(chan T, capacity)}
}

// Send enqueues v, dropping the oldest pending value first if the channel
// is full. Returns the dropped value and true if an older value was
// dropped to make room.
func (b *Bounded[T]) Send(v T) (droppedVal T, dropped bool) {
	for {
		select {
		case b.ch <- v:
			return droppedVal, dropped
		default:
			select {
			case old := <-b.ch:
				droppedVal = old
				dropped = true
			default:
				// Raced with a concurrent receive; retry the send.
			}
		}
	}
}

// C exposes the receive side for use in a select statement.
func (b *Bounded[T]) C() <-chan T {
	return b.ch
}

// Len returns the number of values currently queued.
func (b *Bounded[T]) Len() int {
	return len(b.ch)
}

// Signal is a single-slot wakeup used where a producer only needs to notify
// a consumer that state changed, coalescing repeated notifications.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates an unset Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify wakes a waiter, coalescing with any pending unconsumed notification.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C exposes the receive side for use in a select statement.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Mutex is the cooperative mutex named in the concurrency model: a plain
// mutex that must never be held across a channel send or receive, held
// only across a single KeyMap lookup or write.
type Mutex = sync.Mutex
