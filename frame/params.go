package frame

import (
	"errors"
	"fmt"
	"net"
)

type (
	// Params are the caller-supplied connection parameters. They are
	// pre-resolved (no ARP or any other address resolution happens
	// here), may change between frames and are latched by the
	// transmitter at the moment a new frame starts.
	Params struct {
		SrcMAC  net.HardwareAddr
		DstMAC  net.HardwareAddr
		SrcIP   net.IP
		DstIP   net.IP
		SrcPort uint16
		DstPort uint16
	}

	// ParamsConfig contains the YAML form of Params.
	ParamsConfig struct {
		SrcMAC  string `yaml:"srcMAC"`
		DstMAC  string `yaml:"dstMAC"`
		SrcIP   string `yaml:"srcIP"`
		DstIP   string `yaml:"dstIP"`
		SrcPort uint16 `yaml:"srcPort"`
		DstPort uint16 `yaml:"dstPort"`
	}
)

// Parse validates the config and returns the connection parameters.
func (c ParamsConfig) Parse() (*Params, error) {
	srcMAC, err := net.ParseMAC(c.SrcMAC)
	if err != nil {
		return nil, fmt.Errorf("error parsing src mac address: %w", err)
	}
	dstMAC, err := net.ParseMAC(c.DstMAC)
	if err != nil {
		return nil, fmt.Errorf("error parsing dst mac address: %w", err)
	}
	srcIP := net.ParseIP(c.SrcIP)
	if srcIP == nil || srcIP.To4() == nil {
		return nil, fmt.Errorf("src ip address is not a valid ipv4 address: %s", c.SrcIP)
	}
	dstIP := net.ParseIP(c.DstIP)
	if dstIP == nil || dstIP.To4() == nil {
		return nil, fmt.Errorf("dst ip address is not a valid ipv4 address: %s", c.DstIP)
	}
	p := &Params{
		SrcMAC:  srcMAC,
		DstMAC:  dstMAC,
		SrcIP:   srcIP.To4(),
		DstIP:   dstIP.To4(),
		SrcPort: c.SrcPort,
		DstPort: c.DstPort,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that all six addressing fields are present and
// well-formed.
func (p *Params) Validate() error {
	if len(p.SrcMAC) != 6 || len(p.DstMAC) != 6 {
		return errors.New("mac addresses must have exactly 6 bytes")
	}
	if p.SrcIP.To4() == nil || p.DstIP.To4() == nil {
		return errors.New("ip addresses must be valid ipv4 addresses")
	}
	return nil
}
