package queue

import "errors"

var (
	// ErrFull is returned by Push when occupancy is at capacity. This
	// is backpressure surfaced as status, not a failure: the producer
	// is expected to retry after the consumer drains some words.
	ErrFull = errors.New("queue full")

	// ErrEmpty is returned by Pop and Peek when the requested word
	// does not exist.
	ErrEmpty = errors.New("queue empty")
)
