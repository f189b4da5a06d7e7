package phy

import "github.com/matheuscscp/ethertx-sim/frame"

const (
	// MaxFrameSize is the maximum number of bytes that are allowed on
	// a frame handed to the wire: the full header stack plus the
	// maximum safe UDP payload plus the FCS.
	MaxFrameSize = frame.MaxFrameSize

	channelSize = 1024

	promNamespace = "phy"
)
