package phy

import "context"

type (
	// Sink is the boundary with the physical transmit interface. The
	// transmitter drives it like an MII bus: one data unit (nibble- or
	// byte-wide) and a transmit-enable flag per output tick, plus an
	// active-low reset line held asserted during the transmitter's
	// power-up window.
	Sink interface {
		// Reset drives the reset line. asserted=true means the
		// interface is held in reset.
		Reset(asserted bool) error

		// Tick delivers one output tick. data is meaningful only
		// while enable is true.
		Tick(ctx context.Context, enable bool, data byte) error

		Close() error
	}
)
