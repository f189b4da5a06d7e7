package phy_test

import (
	"context"
	"testing"
	"time"

	"github.com/matheuscscp/ethertx-sim/phy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWirePair(t *testing.T, portA, portB string) (phy.Wire, phy.Wire) {
	ctx := context.Background()

	confA := phy.WireConfig{
		RecvUDPEndpoint: "127.0.0.1:" + portA,
		SendUDPEndpoint: "127.0.0.1:" + portB,
	}
	a, err := phy.NewWire(ctx, confA)
	require.NoError(t, err)

	confB := phy.WireConfig{
		RecvUDPEndpoint: "127.0.0.1:" + portB,
		SendUDPEndpoint: "127.0.0.1:" + portA,
	}
	b, err := phy.NewWire(ctx, confB)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, a.Close())
		assert.NoError(t, b.Close())
	})
	return a, b
}

func TestWireSendRecv(t *testing.T) {
	a, b := newWirePair(t, "16661", "16662")

	frameBuf := []byte("the quick brown fox jumps over the lazy dog")
	n, err := a.Send(context.Background(), frameBuf)
	require.NoError(t, err)
	assert.Equal(t, len(frameBuf), n)

	recvBuf := make([]byte, phy.MaxFrameSize)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err = b.Recv(ctx, recvBuf)
	require.NoError(t, err)
	assert.Equal(t, frameBuf, recvBuf[:n])
}

func TestWireSendValidatesSize(t *testing.T) {
	a, _ := newWirePair(t, "16663", "16664")

	_, err := a.Send(context.Background(), nil)
	assert.ErrorIs(t, err, phy.ErrCannotSendEmpty)

	_, err = a.Send(context.Background(), make([]byte, phy.MaxFrameSize+1))
	assert.ErrorContains(t, err, "maximum frame size")
}

func TestWireRecvHonorsContext(t *testing.T) {
	_, b := newWirePair(t, "16665", "16666")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	recvBuf := make([]byte, phy.MaxFrameSize)
	_, err := b.Recv(ctx, recvBuf)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
