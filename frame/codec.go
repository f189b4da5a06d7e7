package frame

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/matheuscscp/ethertx-sim/checksum"

	"github.com/google/gopacket"
	gplayers "github.com/google/gopacket/layers"
)

type (
	// Decoded holds the parsed layers of a verified frame. Payload is
	// the UDP payload with any Ethernet padding already discarded.
	Decoded struct {
		Ethernet *gplayers.Ethernet
		IPv4     *gplayers.IPv4
		UDP      *gplayers.UDP
		Payload  []byte
	}
)

// Deserialize parses a full Ethernet frame (without preamble/SFD,
// including the trailing FCS), validating the FCS and the IPv4 header
// checksum along the way.
func Deserialize(frameBuf []byte) (*Decoded, error) {
	// split frame data and fcs
	if len(frameBuf) < MinFrameSize {
		return nil, fmt.Errorf("frame has %d bytes, less than the minimum frame size (%d)", len(frameBuf), MinFrameSize)
	}
	siz := len(frameBuf) - FCSLength
	frameData, fcsBuf := frameBuf[:siz], frameBuf[siz:]

	// validate fcs
	crc := crc32.ChecksumIEEE(frameData)
	expectedCrc := binary.LittleEndian.Uint32(fcsBuf)
	if crc != expectedCrc {
		return nil, fmt.Errorf("fcs integrity check failed, want %x, got %x", expectedCrc, crc)
	}

	// deserialize the header stack
	pkt := gopacket.NewPacket(frameData, gplayers.LayerTypeEthernet, gopacket.Lazy)
	eth, _ := pkt.LinkLayer().(*gplayers.Ethernet)
	if eth == nil {
		return nil, fmt.Errorf("error deserializing link layer: %w", pkt.ErrorLayer().Error())
	}
	if eth.EthernetType != gplayers.EthernetTypeIPv4 {
		return nil, fmt.Errorf("unexpected ethernet type: %v", eth.EthernetType)
	}
	ip, _ := pkt.NetworkLayer().(*gplayers.IPv4)
	if ip == nil {
		return nil, fmt.Errorf("error deserializing network layer: %w", pkt.ErrorLayer().Error())
	}
	if !checksum.ValidIPv4Header(ip.Contents) {
		return nil, fmt.Errorf("ipv4 header checksum check failed, header: %x", ip.Contents)
	}
	udp, _ := pkt.TransportLayer().(*gplayers.UDP)
	if udp == nil {
		return nil, fmt.Errorf("error deserializing transport layer: %w", pkt.ErrorLayer().Error())
	}

	return &Decoded{
		Ethernet: eth,
		IPv4:     ip,
		UDP:      udp,
		Payload:  udp.Payload,
	}, nil
}
