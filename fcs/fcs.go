// Package fcs computes the Ethernet frame check sequence incrementally
// over an arbitrary-width data stream, one bit, nibble or byte at a
// time, in the exact order the units appear on the wire.
package fcs

import (
	"encoding/binary"
	"math/bits"
)

const (
	// Poly is the IEEE 802.3 CRC-32 generator polynomial.
	Poly = 0x04C11DB7

	// Length is the frame check sequence length in bytes.
	Length = 4

	initValue = 0xFFFFFFFF
)

type (
	// Accumulator is the running CRC-32 shift register, in the
	// hardware formulation: shift left one bit and, when the bit
	// shifted out differs from the input bit being consumed, fold in
	// the generator polynomial. Input bits are consumed in wire order,
	// least significant bit first within each unit.
	//
	// Sum32() of the bytes folded so far matches crc32.ChecksumIEEE
	// over the same bytes, so any standard CRC-32/Ethernet verifier
	// accepts frames trailed by WireBytes().
	Accumulator struct {
		crc uint32
	}
)

// New returns an Accumulator initialized for a new frame.
func New() *Accumulator {
	return &Accumulator{crc: initValue}
}

// Reset restarts the accumulator for a new frame.
func (a *Accumulator) Reset() {
	a.crc = initValue
}

// UpdateBit folds one input bit (the least significant bit of b).
func (a *Accumulator) UpdateBit(b uint32) {
	out := a.crc >> 31
	a.crc <<= 1
	if out != b&1 {
		a.crc ^= Poly
	}
}

// UpdateNibble folds one 4-bit unit, least significant bit first.
func (a *Accumulator) UpdateNibble(n byte) {
	for i := 0; i < 4; i++ {
		a.UpdateBit(uint32(n) >> i)
	}
}

// UpdateByte folds one byte, low nibble first.
func (a *Accumulator) UpdateByte(b byte) {
	a.UpdateNibble(b)
	a.UpdateNibble(b >> 4)
}

// Update folds a byte sequence in wire order.
func (a *Accumulator) Update(p []byte) {
	for _, b := range p {
		a.UpdateByte(b)
	}
}

// Sum32 returns the standard CRC-32/Ethernet value of the units folded
// so far.
func (a *Accumulator) Sum32() uint32 {
	return ^bits.Reverse32(a.crc)
}

// WireBytes returns the four FCS bytes in the order they are placed on
// the wire after the last data unit of the frame.
func (a *Accumulator) WireBytes() [Length]byte {
	var b [Length]byte
	binary.LittleEndian.PutUint32(b[:], a.Sum32())
	return b
}

// WireNibbles returns the eight FCS nibbles in transmit order: the
// ones' complement of the shift register, most significant nibble
// first, with the bit order reversed within each transmitted nibble.
// Pairing them low-first reconstructs WireBytes().
func (a *Accumulator) WireNibbles() [2 * Length]byte {
	reg := ^a.crc
	var n [2 * Length]byte
	for i := range n {
		n[i] = ReverseNibble(byte(reg>>(28-4*i)) & 0x0f)
	}
	return n
}

// ReverseNibble reverses the bit order of the low 4 bits of n.
func ReverseNibble(n byte) byte {
	return bits.Reverse8(n&0x0f) >> 4
}
