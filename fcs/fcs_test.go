package fcs_test

import (
	"encoding/binary"
	"hash/crc32"
	"math/rand"
	"testing"

	"github.com/matheuscscp/ethertx-sim/fcs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesStandardCRC32(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{0, 1, 2, 3, 14, 42, 64, 508, 1500} {
		data := make([]byte, n)
		rng.Read(data)

		a := fcs.New()
		a.Update(data)
		assert.Equal(t, crc32.ChecksumIEEE(data), a.Sum32(), "length %d", n)
	}
}

func TestAppendedFCSVerifies(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	a := fcs.New()
	a.Update(data)
	wire := a.WireBytes()

	// an independent verifier recomputes the CRC over the data and
	// compares it against the trailing four bytes
	expected := crc32.ChecksumIEEE(data)
	assert.Equal(t, expected, binary.LittleEndian.Uint32(wire[:]))
}

func TestNibbleAndBitUpdatesAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(43))
	data := make([]byte, 97)
	rng.Read(data)

	byByte := fcs.New()
	byByte.Update(data)

	byNibble := fcs.New()
	for _, b := range data {
		byNibble.UpdateNibble(b & 0x0f)
		byNibble.UpdateNibble(b >> 4)
	}

	byBit := fcs.New()
	for _, b := range data {
		for i := 0; i < 8; i++ {
			byBit.UpdateBit(uint32(b) >> i)
		}
	}

	assert.Equal(t, byByte.Sum32(), byNibble.Sum32())
	assert.Equal(t, byByte.Sum32(), byBit.Sum32())
}

func TestWireNibblesPairIntoWireBytes(t *testing.T) {
	a := fcs.New()
	a.Update([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x42})

	wireBytes := a.WireBytes()
	wireNibbles := a.WireNibbles()
	for i := 0; i < fcs.Length; i++ {
		lo, hi := wireNibbles[2*i], wireNibbles[2*i+1]
		assert.Equal(t, wireBytes[i], lo|hi<<4, "byte %d", i)
	}
}

func TestReset(t *testing.T) {
	a := fcs.New()
	a.Update([]byte{1, 2, 3})
	a.Reset()
	a.Update([]byte{4, 5, 6})

	require.Equal(t, crc32.ChecksumIEEE([]byte{4, 5, 6}), a.Sum32())
}

func TestReverseNibble(t *testing.T) {
	for n, expected := range map[byte]byte{
		0x0: 0x0,
		0x1: 0x8,
		0x2: 0x4,
		0x3: 0xc,
		0x6: 0x6,
		0x8: 0x1,
		0xa: 0x5,
		0xf: 0xf,
	} {
		assert.Equal(t, expected, fcs.ReverseNibble(n), "nibble %x", n)
	}
}
