package phy

import (
	"context"
	"fmt"
	"sync"

	pkgcontext "github.com/matheuscscp/ethertx-sim/pkg/context"
	pkgio "github.com/matheuscscp/ethertx-sim/pkg/io"

	"github.com/sirupsen/logrus"
)

type (
	// WireSinkConfig contains the configs for NewWireSink.
	WireSinkConfig struct {
		MII  MIISinkConfig `yaml:"mii"`
		Wire WireConfig    `yaml:"wire"`
	}

	// wireSink glues an MIISink to a Wire: frames reassembled from the
	// unit stream are handed to an outbound thread which puts them on
	// the wire, so a slow medium never stalls the transmitter's tick
	// cadence.
	wireSink struct {
		ctx       context.Context
		cancelCtx context.CancelFunc
		l         logrus.FieldLogger
		mii       *MIISink
		wire      Wire
		out       chan []byte
		wg        sync.WaitGroup
	}
)

// NewWireSink creates a Sink that reassembles the unit stream into
// frames and forwards them over a UDP-backed Wire.
func NewWireSink(ctx context.Context, conf WireSinkConfig) (Sink, error) {
	conf.MII.MetricLabels.EngineName = nonEmptyEngineName(conf)

	wire, err := NewWire(ctx, conf.Wire)
	if err != nil {
		return nil, fmt.Errorf("error creating wire: %w", err)
	}

	sinkCtx, cancel := context.WithCancel(context.Background())
	s := &wireSink{
		ctx:       sinkCtx,
		cancelCtx: cancel,
		l: logrus.
			WithField("send_udp_endpoint", conf.Wire.SendUDPEndpoint).
			WithField("engine_name", conf.MII.MetricLabels.EngineName),
		wire: wire,
		out:  make(chan []byte, channelSize),
	}

	mii, err := NewMIISink(conf.MII, s.enqueue)
	if err != nil {
		cancel()
		wire.Close()
		return nil, fmt.Errorf("error creating mii sink: %w", err)
	}
	s.mii = mii

	s.startThreads()
	return s, nil
}

func nonEmptyEngineName(conf WireSinkConfig) string {
	if name := conf.MII.MetricLabels.EngineName; name != "" {
		return name
	}
	return conf.Wire.MetricLabels.EngineName
}

func (s *wireSink) startThreads() {
	ctxDone := s.ctx.Done()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctxDone:
				return
			case frame := <-s.out:
				got, err := s.wire.Send(s.ctx, frame)
				if err != nil {
					if pkgcontext.IsContextError(s.ctx, err) {
						return
					}
					s.l.
						WithError(err).
						WithField("frame_len", len(frame)).
						Error("error sending frame over wire")
				} else if want := len(frame); got < want {
					s.l.
						WithField("want", want).
						WithField("got", got).
						Error("wrong number of bytes sent for frame")
				}
			}
		}
	}()
}

func (s *wireSink) enqueue(frameBuf []byte) {
	frame := make([]byte, len(frameBuf))
	copy(frame, frameBuf)
	select {
	case s.out <- frame:
	default:
		s.l.
			WithField("frame_len", len(frame)).
			Error("outbound channel is full, dropping frame")
	}
}

func (s *wireSink) Reset(asserted bool) error {
	return s.mii.Reset(asserted)
}

func (s *wireSink) Tick(ctx context.Context, enable bool, data byte) error {
	return s.mii.Tick(ctx, enable, data)
}

func (s *wireSink) Close() error {
	// cancel ctx and wait threads
	var cancel context.CancelFunc
	cancel, s.cancelCtx = s.cancelCtx, nil
	if cancel == nil {
		return nil
	}
	cancel()
	s.wg.Wait()

	// drain outbound channel
	close(s.out)
	for range s.out {
	}

	return pkgio.Close(s.mii, s.wire)
}
