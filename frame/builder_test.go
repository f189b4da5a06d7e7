package frame_test

import (
	"testing"

	"github.com/matheuscscp/ethertx-sim/checksum"
	"github.com/matheuscscp/ethertx-sim/frame"

	"github.com/google/gopacket"
	gplayers "github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams(t *testing.T) *frame.Params {
	p, err := frame.ParamsConfig{
		SrcMAC:  "00:00:5e:00:53:ae",
		DstMAC:  "00:00:5e:00:53:af",
		SrcIP:   "10.0.0.1",
		DstIP:   "10.0.0.2",
		SrcPort: 4660,
		DstPort: 22136,
	}.Parse()
	require.NoError(t, err)
	return p
}

func TestHeadersWireLayout(t *testing.T) {
	p := testParams(t)
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}

	h := frame.NewHeaders(p, 7)
	h.SetLengths(len(payload))
	h.InstallIPChecksum()

	stack := h.Bytes()
	require.Len(t, stack, frame.HeadersLength)

	pkt := gopacket.NewPacket(append(stack, payload...), gplayers.LayerTypeEthernet, gopacket.Default)

	eth, ok := pkt.LinkLayer().(*gplayers.Ethernet)
	require.True(t, ok)
	assert.Equal(t, p.SrcMAC, eth.SrcMAC)
	assert.Equal(t, p.DstMAC, eth.DstMAC)
	assert.Equal(t, gplayers.EthernetTypeIPv4, eth.EthernetType)

	ip, ok := pkt.NetworkLayer().(*gplayers.IPv4)
	require.True(t, ok)
	assert.Equal(t, uint8(4), ip.Version)
	assert.Equal(t, uint8(5), ip.IHL)
	assert.Equal(t, uint8(255), ip.TTL)
	assert.Equal(t, uint16(7), ip.Id)
	assert.Equal(t, gplayers.IPProtocolUDP, ip.Protocol)
	assert.Equal(t, uint16(20+8+100), ip.Length)
	assert.Equal(t, p.SrcIP.To4(), ip.SrcIP.To4())
	assert.Equal(t, p.DstIP.To4(), ip.DstIP.To4())
	assert.True(t, checksum.ValidIPv4Header(ip.Contents))

	udp, ok := pkt.TransportLayer().(*gplayers.UDP)
	require.True(t, ok)
	assert.Equal(t, gplayers.UDPPort(4660), udp.SrcPort)
	assert.Equal(t, gplayers.UDPPort(22136), udp.DstPort)
	assert.Equal(t, uint16(8+100), udp.Length)
	assert.Equal(t, uint16(0), udp.Checksum) // generation disabled
	assert.Equal(t, payload, udp.Payload)
}

func TestUDPChecksumAgainstGopacket(t *testing.T) {
	p := testParams(t)
	payload := []byte("hello wire")

	h := frame.NewHeaders(p, 1)
	h.SetLengths(len(payload))
	h.SetUDPChecksum(h.ComputeUDPChecksum(payload))

	ip := &gplayers.IPv4{
		Version:  4,
		IHL:      5,
		Protocol: gplayers.IPProtocolUDP,
		SrcIP:    p.SrcIP.To4(),
		DstIP:    p.DstIP.To4(),
	}
	udp := &gplayers.UDP{
		BaseLayer: gplayers.BaseLayer{
			Payload: payload,
		},
		SrcPort: gplayers.UDPPort(p.SrcPort),
		DstPort: gplayers.UDPPort(p.DstPort),
		Length:  uint16(8 + len(payload)),
	}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(
		buf,
		gopacket.SerializeOptions{ComputeChecksums: true},
		udp,
		gopacket.Payload(payload),
	))

	assert.Equal(t, udp.Checksum, h.ComputeUDPChecksum(payload))
	assert.Equal(t, buf.Bytes()[:8], h.UDPBytes())
}

func TestPreambleSFD(t *testing.T) {
	b := frame.PreambleSFD()
	require.Len(t, b, frame.PreambleLength+1)
	for i := 0; i < frame.PreambleLength; i++ {
		assert.Equal(t, byte(frame.PreambleByte), b[i])
	}
	assert.Equal(t, byte(frame.SFD), b[frame.PreambleLength])
}

func TestParamsConfigValidation(t *testing.T) {
	for name, conf := range map[string]frame.ParamsConfig{
		"bad src mac": {SrcMAC: "nope", DstMAC: "00:00:5e:00:53:af", SrcIP: "10.0.0.1", DstIP: "10.0.0.2"},
		"bad dst mac": {SrcMAC: "00:00:5e:00:53:ae", DstMAC: "nope", SrcIP: "10.0.0.1", DstIP: "10.0.0.2"},
		"bad src ip":  {SrcMAC: "00:00:5e:00:53:ae", DstMAC: "00:00:5e:00:53:af", SrcIP: "nope", DstIP: "10.0.0.2"},
		"ipv6 dst ip": {SrcMAC: "00:00:5e:00:53:ae", DstMAC: "00:00:5e:00:53:af", SrcIP: "10.0.0.1", DstIP: "::1"},
	} {
		_, err := conf.Parse()
		assert.Error(t, err, name)
	}
}
