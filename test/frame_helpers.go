package test

import (
	"testing"
	"time"

	"github.com/matheuscscp/ethertx-sim/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// WaitFrame blocks until a frame arrives on ch or the timeout expires.
func WaitFrame(t *testing.T, ch <-chan []byte, timeout time.Duration) []byte {
	t.Helper()
	select {
	case frameBuf := <-ch:
		return frameBuf
	case <-time.After(timeout):
		require.FailNow(t, "timed out waiting for frame")
		return nil
	}
}

// AssertNoFrame flags an error if a frame arrives on ch within d.
func AssertNoFrame(t *testing.T, ch <-chan []byte, d time.Duration) {
	t.Helper()
	select {
	case frameBuf := <-ch:
		t.Errorf("received a frame when none was expected: %x", frameBuf)
	case <-time.After(d):
	}
}

// AssertFrame validates a serialized frame end to end: FCS and IPv4
// checksum accepted by independent verifiers, minimum frame size
// honored, and addressing and payload matching the expectation.
func AssertFrame(t *testing.T, frameBuf []byte, p *frame.Params, payload []byte) *frame.Decoded {
	t.Helper()
	assert.GreaterOrEqual(t, len(frameBuf), frame.MinFrameSize)

	decoded, err := frame.Deserialize(frameBuf)
	require.NoError(t, err)
	assert.Equal(t, p.SrcMAC, decoded.Ethernet.SrcMAC)
	assert.Equal(t, p.DstMAC, decoded.Ethernet.DstMAC)
	assert.Equal(t, p.SrcIP.To4(), decoded.IPv4.SrcIP.To4())
	assert.Equal(t, p.DstIP.To4(), decoded.IPv4.DstIP.To4())
	assert.EqualValues(t, p.SrcPort, decoded.UDP.SrcPort)
	assert.EqualValues(t, p.DstPort, decoded.UDP.DstPort)
	if len(payload) == 0 {
		assert.Empty(t, decoded.Payload)
	} else {
		assert.Equal(t, payload, decoded.Payload)
	}
	return decoded
}

// MustParseParams parses a ParamsConfig, failing the test on error.
func MustParseParams(t *testing.T, conf frame.ParamsConfig) *frame.Params {
	t.Helper()
	p, err := conf.Parse()
	require.NoError(t, err)
	return p
}
