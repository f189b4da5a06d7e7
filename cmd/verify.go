package cmd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/matheuscscp/ethertx-sim/config"
	"github.com/matheuscscp/ethertx-sim/frame"
	"github.com/matheuscscp/ethertx-sim/observability"
	"github.com/matheuscscp/ethertx-sim/phy"
	pkgcontext "github.com/matheuscscp/ethertx-sim/pkg/context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type verifySpec struct {
	Wire        phy.WireConfig     `yaml:"wire"`
	Connection  frame.ParamsConfig `yaml:"connection"`
	Seed        byte               `yaml:"seed"`
	MetricsAddr string             `yaml:"metricsAddr"`
}

var (
	verifyFrames   int
	verifyFailOnly bool

	verifyCmd = &cobra.Command{
		Use:   "verify <yaml-config-file>",
		Short: "Receive frames from a transmit engine and verify integrity and payload sequence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var spec verifySpec
			if err := config.ReadYAML(args[0], &spec); err != nil {
				return err
			}

			// the expected addressing is optional
			var expected *frame.Params
			if spec.Connection != (frame.ParamsConfig{}) {
				p, err := spec.Connection.Parse()
				if err != nil {
					return fmt.Errorf("error parsing expected connection parameters: %w", err)
				}
				expected = p
			}

			ctx, cancel := contextWithCancelOnInterrupt(context.Background())
			defer cancel()

			wire, err := phy.NewWire(ctx, spec.Wire)
			if err != nil {
				return fmt.Errorf("error creating wire: %w", err)
			}
			defer wire.Close()

			if spec.MetricsAddr != "" {
				go func() {
					if err := observability.ListenAndServe(ctx, spec.MetricsAddr); err != nil {
						logrus.
							WithError(err).
							WithField("metrics_addr", spec.MetricsAddr).
							Error("error serving metrics endpoint")
					}
				}()
			}

			gen := newPatternGenerator(spec.Seed)
			buf := make([]byte, phy.MaxFrameSize)
			var passed, failed int
			for verifyFrames == 0 || passed+failed < verifyFrames {
				n, err := wire.Recv(ctx, buf)
				if err != nil {
					if pkgcontext.IsContextError(ctx, err) {
						break
					}
					return fmt.Errorf("error receiving frame: %w", err)
				}
				if n == 0 {
					continue
				}
				if verifyFrame(buf[:n], expected, gen) {
					passed++
				} else {
					failed++
				}
			}

			logrus.
				WithField("passed", passed).
				WithField("failed", failed).
				Info("verification finished")
			if failed > 0 {
				return fmt.Errorf("%d frames failed verification", failed)
			}
			return nil
		},
	}
)

func init() {
	verifyCmd.Flags().IntVar(&verifyFrames, "frames", 0, "number of frames to verify before exiting (zero means run until interrupted)")
	verifyCmd.Flags().BoolVar(&verifyFailOnly, "fail-only", false, "only log frames that fail verification")
	rootCmd.AddCommand(verifyCmd)
}

func verifyFrame(frameBuf []byte, expected *frame.Params, gen *patternGenerator) bool {
	l := logrus.WithField("frame_len", len(frameBuf))

	decoded, err := frame.Deserialize(frameBuf)
	if err != nil {
		l.
			WithError(err).
			Error("frame failed verification")
		return false
	}
	l = l.WithField("payload_len", len(decoded.Payload))

	if expected != nil {
		if !bytes.Equal(decoded.Ethernet.SrcMAC, expected.SrcMAC) ||
			!bytes.Equal(decoded.Ethernet.DstMAC, expected.DstMAC) ||
			!decoded.IPv4.SrcIP.Equal(expected.SrcIP) ||
			!decoded.IPv4.DstIP.Equal(expected.DstIP) ||
			uint16(decoded.UDP.SrcPort) != expected.SrcPort ||
			uint16(decoded.UDP.DstPort) != expected.DstPort {
			l.
				WithField("src_mac", decoded.Ethernet.SrcMAC.String()).
				WithField("dst_mac", decoded.Ethernet.DstMAC.String()).
				WithField("src_ip", decoded.IPv4.SrcIP.String()).
				WithField("dst_ip", decoded.IPv4.DstIP.String()).
				Error("frame addressing does not match the expected connection")
			return false
		}
	}

	if offset := gen.expect(decoded.Payload); offset >= 0 {
		l.
			WithField("offset", offset).
			Error("payload does not continue the test pattern")
		return false
	}

	if !verifyFailOnly {
		l.Info("frame passed verification")
	}
	return true
}
