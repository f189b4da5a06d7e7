// Package checksum implements the ones'-complement 16-bit-word
// summation behind the IPv4 header checksum (RFC 791) and the UDP
// checksum (RFC 768).
package checksum

import (
	"encoding/binary"
	"net"
)

const protocolUDP = 17

type (
	// Sum accumulates the ones'-complement sum of big-endian 16-bit
	// words. The zero value is ready for use.
	Sum struct {
		acc uint32
	}
)

// Add16 adds one 16-bit word.
func (s *Sum) Add16(v uint16) {
	s.acc += uint32(v)
}

// AddBytes adds a byte sequence as big-endian 16-bit words, padding an
// odd trailing byte with zero.
func (s *Sum) AddBytes(p []byte) {
	for len(p) >= 2 {
		s.Add16(binary.BigEndian.Uint16(p))
		p = p[2:]
	}
	if len(p) == 1 {
		s.Add16(uint16(p[0]) << 8)
	}
}

// Fold16 folds the carries out of the 16-bit accumulator back in and
// returns the folded sum.
func (s *Sum) Fold16() uint16 {
	acc := s.acc
	for acc > 0xffff {
		acc = (acc >> 16) + (acc & 0xffff)
	}
	return uint16(acc)
}

// Finish folds the accumulated carries and returns the ones'
// complement of the low 16 bits.
func (s *Sum) Finish() uint16 {
	return ^s.Fold16()
}

// IPv4Header computes the checksum of a 20-byte IPv4 header, treating
// the checksum field (bytes 10 and 11) as zero.
func IPv4Header(h []byte) uint16 {
	var s Sum
	s.AddBytes(h[:10])
	s.AddBytes(h[12:])
	return s.Finish()
}

// ValidIPv4Header tells whether an IPv4 header with its checksum field
// in place sums to 0xffff after folding, i.e. whether an independent
// validator accepts it.
func ValidIPv4Header(h []byte) bool {
	var s Sum
	s.AddBytes(h)
	return s.Fold16() == 0xffff
}

// UDP computes the UDP checksum over the RFC 768 pseudo-header (source
// and destination address, zero byte, protocol, UDP length), the
// 8-byte UDP header (checksum field treated as zero) and the payload.
// A zero result is replaced by 0xffff so the value on the wire is
// never the "no checksum" marker.
func UDP(srcIP, dstIP net.IP, hdr, payload []byte) uint16 {
	var s Sum
	s.AddBytes(srcIP.To4())
	s.AddBytes(dstIP.To4())
	s.Add16(protocolUDP)
	s.Add16(binary.BigEndian.Uint16(hdr[4:6])) // pseudo-header copy of the UDP length
	s.AddBytes(hdr[:6])
	s.AddBytes(payload)
	v := s.Finish()
	if v == 0 {
		v = 0xffff
	}
	return v
}
