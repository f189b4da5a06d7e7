package frame_test

import (
	"testing"

	"github.com/matheuscscp/ethertx-sim/fcs"
	"github.com/matheuscscp/ethertx-sim/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFrame assembles a complete frame the way the transmitter does:
// header stack, payload, zero padding up to the minimum frame size and
// the trailing FCS.
func buildFrame(t *testing.T, p *frame.Params, payload []byte) []byte {
	h := frame.NewHeaders(p, 1)
	h.SetLengths(len(payload))
	h.InstallIPChecksum()

	buf := h.Bytes()
	buf = append(buf, payload...)
	for len(buf) < frame.MinFrameSize-frame.FCSLength {
		buf = append(buf, 0)
	}

	a := fcs.New()
	a.Update(buf)
	wire := a.WireBytes()
	return append(buf, wire[:]...)
}

func TestDeserializeRoundTrip(t *testing.T) {
	p := testParams(t)
	payload := []byte("0123456789abcdef0123456789abcdef") // 32 bytes

	frameBuf := buildFrame(t, p, payload)
	require.GreaterOrEqual(t, len(frameBuf), frame.MinFrameSize)

	decoded, err := frame.Deserialize(frameBuf)
	require.NoError(t, err)
	assert.Equal(t, p.SrcMAC, decoded.Ethernet.SrcMAC)
	assert.Equal(t, p.DstMAC, decoded.Ethernet.DstMAC)
	assert.Equal(t, p.SrcIP.To4(), decoded.IPv4.SrcIP.To4())
	assert.Equal(t, p.DstIP.To4(), decoded.IPv4.DstIP.To4())
	assert.Equal(t, payload, decoded.Payload)
}

func TestDeserializeDiscardsPadding(t *testing.T) {
	p := testParams(t)
	payload := []byte{0xca, 0xfe} // well below the 64-byte floor

	frameBuf := buildFrame(t, p, payload)
	require.Equal(t, frame.MinFrameSize, len(frameBuf))

	decoded, err := frame.Deserialize(frameBuf)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded.Payload)
	assert.Equal(t, uint16(8+2), decoded.UDP.Length)
}

func TestDeserializeBadFCS(t *testing.T) {
	p := testParams(t)
	frameBuf := buildFrame(t, p, []byte("some payload bytes"))
	frameBuf[20] ^= 0x40

	_, err := frame.Deserialize(frameBuf)
	assert.ErrorContains(t, err, "fcs")
}

func TestDeserializeBadIPChecksum(t *testing.T) {
	p := testParams(t)
	h := frame.NewHeaders(p, 1)
	payload := make([]byte, 32)
	h.SetLengths(len(payload))
	// checksum deliberately not installed

	buf := append(h.Bytes(), payload...)
	a := fcs.New()
	a.Update(buf)
	wire := a.WireBytes()
	frameBuf := append(buf, wire[:]...)

	_, err := frame.Deserialize(frameBuf)
	assert.ErrorContains(t, err, "checksum")
}

func TestDeserializeTooShort(t *testing.T) {
	_, err := frame.Deserialize(make([]byte, frame.MinFrameSize-1))
	assert.ErrorContains(t, err, "minimum frame size")
}
