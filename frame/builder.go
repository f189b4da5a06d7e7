package frame

import (
	"encoding/binary"
	"net"

	"github.com/matheuscscp/ethertx-sim/checksum"
)

type (
	// Headers is the header stack of one frame under assembly:
	// Ethernet, IPv4 and UDP records in wire layout (big-endian).
	// NewHeaders() installs the addressing fields and the fixed
	// constants; the length and checksum fields are left zero and
	// filled by the transmitter as it walks its states. The stack must
	// be rebuilt per frame since the addressing parameters may change
	// between frames.
	Headers struct {
		eth [EthernetHeaderLength]byte
		ip  [IPv4HeaderLength]byte
		udp [UDPHeaderLength]byte
	}
)

// NewHeaders assembles the header stack for one frame from the latched
// connection parameters and the IPv4 identification value.
func NewHeaders(p *Params, id uint16) *Headers {
	h := &Headers{}

	copy(h.eth[0:6], p.DstMAC)
	copy(h.eth[6:12], p.SrcMAC)
	binary.BigEndian.PutUint16(h.eth[12:14], EthernetTypeIPv4)

	h.ip[0] = IPv4Version<<4 | IPv4IHL
	binary.BigEndian.PutUint16(h.ip[4:6], id)
	h.ip[8] = TTL
	h.ip[9] = ProtocolUDP
	copy(h.ip[12:16], p.SrcIP.To4())
	copy(h.ip[16:20], p.DstIP.To4())

	binary.BigEndian.PutUint16(h.udp[0:2], p.SrcPort)
	binary.BigEndian.PutUint16(h.udp[2:4], p.DstPort)

	return h
}

// SetLengths fills the IPv4 total length and the UDP length fields
// from the payload length of the current frame. Padding is not
// accounted: it lives between the UDP payload and the FCS, outside the
// IP datagram.
func (h *Headers) SetLengths(payloadLen int) {
	binary.BigEndian.PutUint16(h.ip[2:4], uint16(IPv4HeaderLength+UDPHeaderLength+payloadLen))
	binary.BigEndian.PutUint16(h.udp[4:6], uint16(UDPHeaderLength+payloadLen))
}

// InstallIPChecksum computes the IPv4 header checksum with the
// checksum field treated as zero and overwrites the field with the
// result.
func (h *Headers) InstallIPChecksum() {
	binary.BigEndian.PutUint16(h.ip[10:12], checksum.IPv4Header(h.ip[:]))
}

// ComputeUDPChecksum returns the UDP checksum over the pseudo-header,
// the UDP header and the given payload. SetLengths() must have been
// called first.
func (h *Headers) ComputeUDPChecksum(payload []byte) uint16 {
	return checksum.UDP(net.IP(h.ip[12:16]), net.IP(h.ip[16:20]), h.udp[:], payload)
}

// SetUDPChecksum overwrites the UDP checksum field. When UDP checksum
// generation is disabled the field keeps its zero value, which is the
// "no checksum" marker of RFC 768.
func (h *Headers) SetUDPChecksum(v uint16) {
	binary.BigEndian.PutUint16(h.udp[6:8], v)
}

// EthernetBytes returns the 14 Ethernet header bytes in wire order.
func (h *Headers) EthernetBytes() []byte {
	return h.eth[:]
}

// IPv4Bytes returns the 20 IPv4 header bytes in wire order.
func (h *Headers) IPv4Bytes() []byte {
	return h.ip[:]
}

// UDPBytes returns the 8 UDP header bytes in wire order.
func (h *Headers) UDPBytes() []byte {
	return h.udp[:]
}

// Bytes returns the full header stack in wire order.
func (h *Headers) Bytes() []byte {
	b := make([]byte, 0, HeadersLength)
	b = append(b, h.eth[:]...)
	b = append(b, h.ip[:]...)
	b = append(b, h.udp[:]...)
	return b
}

// PreambleSFD returns the fixed 7-byte preamble pattern followed by
// the 1-byte start-of-frame delimiter.
func PreambleSFD() []byte {
	b := make([]byte, PreambleLength+1)
	for i := 0; i < PreambleLength; i++ {
		b[i] = PreambleByte
	}
	b[PreambleLength] = SFD
	return b
}
