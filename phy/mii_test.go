package phy_test

import (
	"context"
	"testing"

	"github.com/matheuscscp/ethertx-sim/frame"
	"github.com/matheuscscp/ethertx-sim/phy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMIISink(t *testing.T, unitBits int) (*phy.MIISink, *[][]byte) {
	frames := &[][]byte{}
	sink, err := phy.NewMIISink(phy.MIISinkConfig{UnitBits: unitBits}, func(frameBuf []byte) {
		frame := make([]byte, len(frameBuf))
		copy(frame, frameBuf)
		*frames = append(*frames, frame)
	})
	require.NoError(t, err)
	require.NoError(t, sink.Reset(false))
	return sink, frames
}

func tickBytes(t *testing.T, sink *phy.MIISink, unitBits int, data []byte) {
	ctx := context.Background()
	for _, b := range data {
		if unitBits == 8 {
			require.NoError(t, sink.Tick(ctx, true, b))
			continue
		}
		require.NoError(t, sink.Tick(ctx, true, b&0x0f))
		require.NoError(t, sink.Tick(ctx, true, b>>4))
	}
}

func TestReassembleNibbleTrain(t *testing.T) {
	sink, frames := newMIISink(t, 4)

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	tickBytes(t, sink, 4, frame.PreambleSFD())
	tickBytes(t, sink, 4, payload)
	require.NoError(t, sink.Tick(context.Background(), false, 0))

	require.Len(t, *frames, 1)
	assert.Equal(t, payload, (*frames)[0])
}

func TestReassembleByteTrain(t *testing.T) {
	sink, frames := newMIISink(t, 8)

	payload := []byte{1, 2, 3, 4, 5}
	tickBytes(t, sink, 8, frame.PreambleSFD())
	tickBytes(t, sink, 8, payload)
	require.NoError(t, sink.Tick(context.Background(), false, 0))

	require.Len(t, *frames, 1)
	assert.Equal(t, payload, (*frames)[0])
}

func TestOddNibbleTrainIsDropped(t *testing.T) {
	sink, frames := newMIISink(t, 4)

	tickBytes(t, sink, 4, frame.PreambleSFD())
	require.NoError(t, sink.Tick(context.Background(), true, 0xa)) // dangling nibble
	require.NoError(t, sink.Tick(context.Background(), false, 0))

	assert.Empty(t, *frames)
}

func TestWrongPreambleIsDropped(t *testing.T) {
	sink, frames := newMIISink(t, 4)

	train := frame.PreambleSFD()
	train[2] = 0xaa
	tickBytes(t, sink, 4, train)
	tickBytes(t, sink, 4, []byte{1, 2, 3})
	require.NoError(t, sink.Tick(context.Background(), false, 0))

	assert.Empty(t, *frames)
}

func TestWrongSFDIsDropped(t *testing.T) {
	sink, frames := newMIISink(t, 4)

	train := frame.PreambleSFD()
	train[frame.PreambleLength] = 0x55
	tickBytes(t, sink, 4, train)
	tickBytes(t, sink, 4, []byte{1, 2, 3})
	require.NoError(t, sink.Tick(context.Background(), false, 0))

	assert.Empty(t, *frames)
}

func TestResetDiscardsPartialTrain(t *testing.T) {
	sink, frames := newMIISink(t, 4)

	tickBytes(t, sink, 4, frame.PreambleSFD())
	tickBytes(t, sink, 4, []byte{1, 2})
	require.NoError(t, sink.Reset(true))
	assert.Equal(t, phy.OperStatusDown, sink.Status())

	// units are ignored while the reset line is asserted
	tickBytes(t, sink, 4, []byte{3, 4})
	require.NoError(t, sink.Tick(context.Background(), false, 0))
	assert.Empty(t, *frames)

	// after deasserting, a fresh train goes through
	require.NoError(t, sink.Reset(false))
	assert.Equal(t, phy.OperStatusUp, sink.Status())
	payload := []byte{5, 6, 7}
	tickBytes(t, sink, 4, frame.PreambleSFD())
	tickBytes(t, sink, 4, payload)
	require.NoError(t, sink.Tick(context.Background(), false, 0))

	require.Len(t, *frames, 1)
	assert.Equal(t, payload, (*frames)[0])
}

func TestInvalidUnitWidth(t *testing.T) {
	_, err := phy.NewMIISink(phy.MIISinkConfig{UnitBits: 5}, func([]byte) {})
	assert.Error(t, err)
}
