package phy

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/matheuscscp/ethertx-sim/observability"

	"github.com/google/gopacket"
	gplayers "github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

type (
	// CaptureConfig allows specifying configurations for capturing
	// the wire traffic in the pcapng format.
	CaptureConfig struct {
		Filename string `yaml:"filename"`
	}

	// capture is the pcapng writer thread of a Wire. A nil *capture is
	// valid and discards everything.
	capture struct {
		ctx context.Context
		ch  chan []byte

		activeCaptures prometheus.Gauge
	}
)

var activeCaptures = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: promNamespace,
	Subsystem: promSubsystemWire,
	Name:      "active_captures",
	Help:      "Number of go routines currently blocked on producing a wire capture into the capture channel.",
}, []string{observability.EngineName})

func newCapture(ctx context.Context, wg *sync.WaitGroup, conf CaptureConfig, engineName string) (*capture, error) {
	// open capture file and pcapng writer
	captureFile, err := os.Create(conf.Filename)
	if err != nil {
		return nil, fmt.Errorf("error creating capture file %s: %w", conf.Filename, err)
	}
	captureWriter, err := pcapgo.NewNgWriter(captureFile, gplayers.LinkTypeEthernet)
	if err != nil {
		captureFile.Close()
		return nil, fmt.Errorf("error creating pcapng writer: %w", err)
	}

	c := &capture{
		ctx:            ctx,
		ch:             make(chan []byte, channelSize),
		activeCaptures: activeCaptures.With(prometheus.Labels{observability.EngineName: engineName}),
	}

	// start capture thread
	wg.Add(1)
	go func() {
		defer func() {
			captureWriter.Flush()
			captureFile.Close()
			wg.Done()
		}()

		l := logrus.
			WithField("capture_file", conf.Filename).
			WithField("engine_name", engineName)

		ctxDone := ctx.Done()
		for {
			select {
			case <-ctxDone:
				return
			case b := <-c.ch:
				err := captureWriter.WritePacket(gopacket.CaptureInfo{
					Timestamp:     time.Now(),
					CaptureLength: len(b),
					Length:        len(b),
				}, b)
				if err != nil {
					l.
						WithError(err).
						Error("error capturing frame")
					continue
				}
				captureWriter.Flush()
			}
		}
	}()

	return c, nil
}

func (c *capture) enqueue(b []byte) {
	if c == nil {
		return
	}

	frame := make([]byte, len(b))
	copy(frame, b)

	go func() {
		c.activeCaptures.Inc()
		defer c.activeCaptures.Dec()
		select {
		case c.ch <- frame:
		case <-c.ctx.Done():
		}
	}()
}
