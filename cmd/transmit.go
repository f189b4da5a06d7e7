package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matheuscscp/ethertx-sim/config"
	"github.com/matheuscscp/ethertx-sim/observability"
	"github.com/matheuscscp/ethertx-sim/phy"
	pkgtime "github.com/matheuscscp/ethertx-sim/pkg/time"
	"github.com/matheuscscp/ethertx-sim/queue"
	"github.com/matheuscscp/ethertx-sim/transmit"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type (
	transmitSpec struct {
		Transmitter transmit.Config    `yaml:"transmitter"`
		Sink        phy.WireSinkConfig `yaml:"sink"`
		Feeder      feederConfig       `yaml:"feeder"`
		MetricsAddr string             `yaml:"metricsAddr"`
	}

	// feederConfig describes the payload producer. With Stdin the
	// engine transmits whatever arrives on standard input; otherwise
	// it transmits the built-in test pattern in bursts.
	feederConfig struct {
		Stdin         bool          `yaml:"stdin"`
		Seed          byte          `yaml:"seed"`
		BurstBytes    int           `yaml:"burstBytes"`
		BurstInterval time.Duration `yaml:"burstInterval"`
		FlushInterval time.Duration `yaml:"flushInterval"`
	}
)

var transmitCmd = &cobra.Command{
	Use:   "transmit <yaml-config-file>",
	Short: "Run a transmit engine fed by stdin or by the built-in test pattern",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var spec transmitSpec
		if err := config.ReadYAML(args[0], &spec); err != nil {
			return err
		}
		if spec.Transmitter.Name == "" {
			spec.Transmitter.Name = petname.Generate(2, "-")
		}
		spec.Sink.MII.MetricLabels.EngineName = spec.Transmitter.Name
		spec.Sink.MII.UnitBits = spec.Transmitter.UnitBits
		if spec.Sink.MII.UnitBits == 0 {
			spec.Sink.MII.UnitBits = 4
		}

		ctx, cancel := contextWithCancelOnInterrupt(context.Background())
		defer cancel()

		sink, err := phy.NewWireSink(ctx, spec.Sink)
		if err != nil {
			return fmt.Errorf("error creating wire sink: %w", err)
		}
		tx, err := transmit.NewTransmitter(ctx, spec.Transmitter, sink)
		if err != nil {
			sink.Close()
			return err
		}
		defer tx.Close()

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

		logrus.
			WithField("engine_name", spec.Transmitter.Name).
			WithField("send_udp_endpoint", spec.Sink.Wire.SendUDPEndpoint).
			WithField("stdin", spec.Feeder.Stdin).
			Info("transmit engine running")

		if spec.Feeder.FlushInterval > 0 {
			go flushPeriodically(ctx, tx, spec.Feeder.FlushInterval)
		}
		if spec.Feeder.Stdin {
			return feedStdin(ctx, tx)
		}
		return feedPattern(ctx, tx, spec.Feeder)
	},
}

func init() {
	rootCmd.AddCommand(transmitCmd)
}

func flushPeriodically(ctx context.Context, tx transmit.Transmitter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tx.Flush()
		}
	}
}

// pushWord blocks on intended backpressure: a full queue means the
// producer outpaces the wire, so wait and retry.
func pushWord(ctx context.Context, tx transmit.Transmitter, w byte) error {
	for {
		err := tx.Queue().Push(w)
		if err == nil {
			return nil
		}
		if !errors.Is(err, queue.ErrFull) {
			return err
		}
		timer, stop := pkgtime.NewTimer(time.Millisecond)
		select {
		case <-ctx.Done():
			stop()
			return ctx.Err()
		case <-timer.C:
			stop()
		}
	}
}

func feedStdin(ctx context.Context, tx transmit.Transmitter) error {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		for _, w := range buf[:n] {
			if pushErr := pushWord(ctx, tx, w); pushErr != nil {
				return pushErr
			}
		}
		if errors.Is(err, io.EOF) {
			tx.Flush()
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading stdin: %w", err)
		}
	}
}

func feedPattern(ctx context.Context, tx transmit.Transmitter, conf feederConfig) error {
	burstBytes := conf.BurstBytes
	if burstBytes == 0 {
		burstBytes = transmit.DefaultMinPayloadBytes
	}

	gen := newPatternGenerator(conf.Seed)
	burst := make([]byte, burstBytes)
	for {
		gen.fill(burst)
		for _, w := range burst {
			if err := pushWord(ctx, tx, w); err != nil {
				if errors.Is(err, ctx.Err()) {
					return nil
				}
				return err
			}
		}

		if conf.BurstInterval <= 0 {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			continue
		}
		timer, stop := pkgtime.NewTimer(conf.BurstInterval)
		select {
		case <-ctx.Done():
			stop()
			return nil
		case <-timer.C:
			stop()
		}
	}
}
