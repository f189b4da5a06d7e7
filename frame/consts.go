package frame

import "github.com/matheuscscp/ethertx-sim/fcs"

const (
	// PreambleLength is the number of preamble bytes emitted before
	// the start-of-frame delimiter.
	PreambleLength = 7

	// PreambleByte is the fixed preamble pattern.
	PreambleByte = 0x55

	// SFD is the start-of-frame delimiter.
	SFD = 0xd5

	// EthernetHeaderLength is the Ethernet header length.
	EthernetHeaderLength = 14

	// IPv4HeaderLength is the IPv4 header length.
	IPv4HeaderLength = 20

	// UDPHeaderLength is the UDP header length.
	UDPHeaderLength = 8

	// HeadersLength is the length of the full header stack.
	HeadersLength = EthernetHeaderLength + IPv4HeaderLength + UDPHeaderLength

	// FCSLength is the frame check sequence length.
	FCSLength = fcs.Length

	// MinFrameSize is the minimum Ethernet frame size, excluding the
	// preamble and including the FCS. Shorter frames are padded with
	// zero bytes between the payload and the FCS.
	MinFrameSize = 64

	// MaxUDPPayload is the maximum safe UDP payload: 576 - 20 - 8,
	// after RFC 791's minimum-reassembly guarantee.
	MaxUDPPayload = 508

	// MaxFrameSize is the size of a frame carrying MaxUDPPayload.
	MaxFrameSize = HeadersLength + MaxUDPPayload + FCSLength

	// EthernetTypeIPv4 is the protocol type of the Ethernet header.
	EthernetTypeIPv4 = 0x0800

	// IPv4Version is the version field of the IPv4 header.
	IPv4Version = 4

	// IPv4IHL is the IPv4 header length in 32-bit words.
	IPv4IHL = IPv4HeaderLength / 4

	// TTL is the time-to-live field of the IPv4 header.
	TTL = 255

	// ProtocolUDP is the protocol field of the IPv4 header.
	ProtocolUDP = 17
)
