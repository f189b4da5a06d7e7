package checksum_test

import (
	"net"
	"testing"

	"github.com/matheuscscp/ethertx-sim/checksum"

	"github.com/google/gopacket"
	gplayers "github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldAndComplement(t *testing.T) {
	// the worked example of RFC 1071 section 3
	var s checksum.Sum
	s.AddBytes([]byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7})
	assert.Equal(t, uint16(0xddf2), s.Fold16())
	assert.Equal(t, uint16(0x220d), s.Finish())
}

func TestOddLength(t *testing.T) {
	// a trailing odd byte is padded with zero on the right
	var odd, even checksum.Sum
	odd.AddBytes([]byte{0x12, 0x34, 0xab})
	even.AddBytes([]byte{0x12, 0x34, 0xab, 0x00})
	assert.Equal(t, even.Fold16(), odd.Fold16())
}

func TestIPv4HeaderAgainstGopacket(t *testing.T) {
	ip := &gplayers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      255,
		Id:       7,
		Protocol: gplayers.IPProtocolUDP,
		SrcIP:    net.ParseIP("10.0.0.1").To4(),
		DstIP:    net.ParseIP("10.0.0.2").To4(),
		Length:   20 + 8 + 32,
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(
		buf,
		gopacket.SerializeOptions{ComputeChecksums: true},
		ip,
	))
	header := buf.Bytes()[:20]

	assert.Equal(t, ip.Checksum, checksum.IPv4Header(header))
	assert.True(t, checksum.ValidIPv4Header(header))

	// corrupting any byte must be caught by the validator
	header[8] ^= 0x01
	assert.False(t, checksum.ValidIPv4Header(header))
}

func TestUDPAgainstGopacket(t *testing.T) {
	srcIP := net.ParseIP("192.168.0.10")
	dstIP := net.ParseIP("192.168.0.20")
	for _, payload := range [][]byte{
		{},
		{0xaa},
		[]byte("hello world"),
		make([]byte, 508),
	} {
		ip := &gplayers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      255,
			Protocol: gplayers.IPProtocolUDP,
			SrcIP:    srcIP.To4(),
			DstIP:    dstIP.To4(),
		}
		udp := &gplayers.UDP{
			BaseLayer: gplayers.BaseLayer{
				Payload: payload,
			},
			SrcPort: 4660,
			DstPort: 22136,
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

		hdr := make([]byte, 8)
		copy(hdr, buf.Bytes()[:8])
		hdr[6], hdr[7] = 0, 0 // checksum field treated as zero

		assert.Equal(t, udp.Checksum, checksum.UDP(srcIP, dstIP, hdr, payload),
			"payload length %d", len(payload))
	}
}
