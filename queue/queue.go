package queue

import (
	"fmt"
	"sync/atomic"
)

type (
	// Ring is a first-in-first-out byte buffer that decouples the rate
	// at which payload words are produced from the rate at which the
	// transmitter consumes them (the software rendition of the
	// hardware dual-clock FIFO).
	//
	// It is safe for concurrent use by exactly one producer (Push) and
	// one consumer (Pop, Peek, Reset). Occupancy is derived from two
	// monotonic atomic cursors, so no reader ever observes a count the
	// true state never passed through, and a word only becomes visible
	// to the consumer after it has been fully written.
	Ring struct {
		buf       []byte
		head      atomic.Uint64 // consumer cursor
		tail      atomic.Uint64 // producer cursor
		resetBusy atomic.Bool
		notify    chan struct{}
	}
)

// New creates a Ring with the given capacity.
func New(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue capacity must be positive, got %d", capacity)
	}
	return &Ring{
		buf:    make([]byte, capacity),
		notify: make(chan struct{}, 1),
	}, nil
}

// Push appends one word, failing with ErrFull when occupancy is at
// capacity. Only the producer may call Push.
func (r *Ring) Push(w byte) error {
	tail := r.tail.Load()
	if tail-r.head.Load() == uint64(len(r.buf)) {
		return ErrFull
	}
	r.buf[tail%uint64(len(r.buf))] = w
	r.tail.Store(tail + 1)
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes and returns the oldest word, failing with ErrEmpty when
// occupancy is zero. Only the consumer may call Pop.
func (r *Ring) Pop() (byte, error) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return 0, ErrEmpty
	}
	w := r.buf[head%uint64(len(r.buf))]
	r.head.Store(head + 1)
	return w, nil
}

// Peek returns the i-th oldest word without removing it, failing with
// ErrEmpty when i is not less than the current occupancy. Only the
// consumer may call Peek.
func (r *Ring) Peek(i int) (byte, error) {
	head := r.head.Load()
	if i < 0 || uint64(i) >= r.tail.Load()-head {
		return 0, ErrEmpty
	}
	return r.buf[(head+uint64(i))%uint64(len(r.buf))], nil
}

// Len returns the current occupancy.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Full tells whether occupancy is at capacity.
func (r *Ring) Full() bool {
	return r.Len() == len(r.buf)
}

// Empty tells whether occupancy is zero.
func (r *Ring) Empty() bool {
	return r.Len() == 0
}

// Reset discards all queued words. Only the consumer may call Reset.
func (r *Ring) Reset() {
	r.resetBusy.Store(true)
	r.head.Store(r.tail.Load())
	r.resetBusy.Store(false)
}

// ResetBusy tells whether a Reset is in progress.
func (r *Ring) ResetBusy() bool {
	return r.resetBusy.Load()
}

// Notify returns a channel signalled on every Push. The consumer may
// block on it while waiting for occupancy to build up. The signal is
// edge-triggered and coalesced, so a waiter must re-check occupancy
// after every wake-up.
func (r *Ring) Notify() <-chan struct{} {
	return r.notify
}
