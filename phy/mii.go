package phy

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/matheuscscp/ethertx-sim/frame"
	"github.com/matheuscscp/ethertx-sim/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

type (
	// FrameHandler consumes a complete frame reassembled from the unit
	// stream, with the preamble and SFD stripped and the FCS included.
	FrameHandler func(frame []byte)

	// MIISinkConfig contains the configs for MIISink.
	MIISinkConfig struct {
		// UnitBits is the width of the data bus: 4 (nibble-wide, the
		// reference arrangement) or 8.
		UnitBits int `yaml:"unitBits"`

		MetricLabels struct {
			EngineName string `yaml:"engineName"`
		} `yaml:"metricLabels"`
	}

	// MIISink reassembles the unit stream of an MII-style bus into
	// frames: enabled units accumulate (low nibble first on a 4-bit
	// bus) and a falling edge of the enable flag closes the frame. The
	// preamble and SFD are validated and stripped before the frame is
	// handed to the handler.
	//
	// Units arriving while the reset line is asserted are ignored.
	// Malformed unit trains are dropped, counted and logged, never
	// fatal: there is no error path back into the transmitter.
	MIISink struct {
		conf    *MIISinkConfig
		l       logrus.FieldLogger
		handler FrameHandler
		status  atomic.Int32

		// unit train state, owned by the transmitter's tick routine
		buf       []byte
		nibble    byte
		hasNibble bool
		sending   bool

		droppedFrames prometheus.Counter
	}
)

const promSubsystemMII = "mii_sink"

var (
	metricLabelsMII = []string{observability.EngineName}

	droppedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystemMII,
		Name:      "dropped_frames",
		Help:      "Total number of unit trains dropped because they did not reassemble into a valid frame.",
	}, metricLabelsMII)
)

// NewMIISink creates an MIISink from config.
func NewMIISink(conf MIISinkConfig, handler FrameHandler) (*MIISink, error) {
	if conf.UnitBits != 4 && conf.UnitBits != 8 {
		return nil, fmt.Errorf("unit width must be 4 or 8 bits, got %d", conf.UnitBits)
	}
	if handler == nil {
		return nil, errors.New("nil frame handler")
	}
	engineName := conf.MetricLabels.EngineName
	if engineName == "" {
		engineName = "default"
	}
	metricLabels := prometheus.Labels{
		observability.EngineName: engineName,
	}
	return &MIISink{
		conf: &conf,
		l: logrus.
			WithField("unit_bits", conf.UnitBits).
			WithField("engine_name", engineName),
		handler:       handler,
		droppedFrames: droppedFrames.With(metricLabels),
	}, nil
}

// Reset drives the reset line, dropping any partial unit train when
// the line is asserted.
func (m *MIISink) Reset(asserted bool) error {
	if asserted {
		m.status.Store(int32(OperStatusDown))
		m.discardTrain()
	} else {
		m.status.Store(int32(OperStatusUp))
	}
	return nil
}

// Status returns the state of the interface as seen through the reset
// line.
func (m *MIISink) Status() OperStatus {
	return OperStatus(m.status.Load())
}

// Tick consumes one output tick.
func (m *MIISink) Tick(ctx context.Context, enable bool, data byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Status() == OperStatusDown {
		return nil
	}

	if !enable {
		if m.sending {
			m.closeTrain()
		}
		return nil
	}

	m.sending = true
	if m.conf.UnitBits == 8 {
		m.buf = append(m.buf, data)
		return nil
	}
	if !m.hasNibble {
		m.nibble = data & 0x0f
		m.hasNibble = true
	} else {
		m.buf = append(m.buf, m.nibble|(data&0x0f)<<4)
		m.hasNibble = false
	}
	return nil
}

func (m *MIISink) Close() error {
	return nil
}

func (m *MIISink) closeTrain() {
	defer m.discardTrain()

	var frameBuf []byte
	err := func() error {
		if m.hasNibble {
			return errors.New("unit train carries an odd number of nibbles")
		}
		if len(m.buf) < frame.PreambleLength+1 {
			return fmt.Errorf("unit train has %d bytes, shorter than preamble plus sfd", len(m.buf))
		}
		for i := 0; i < frame.PreambleLength; i++ {
			if m.buf[i] != frame.PreambleByte {
				return fmt.Errorf("wrong preamble byte at offset %d: %x", i, m.buf[i])
			}
		}
		if m.buf[frame.PreambleLength] != frame.SFD {
			return fmt.Errorf("wrong start-of-frame delimiter: %x", m.buf[frame.PreambleLength])
		}
		frameBuf = m.buf[frame.PreambleLength+1:]
		return nil
	}()

	if err != nil {
		m.droppedFrames.Inc()
		m.l.
			WithError(err).
			WithField("train_bytes", len(m.buf)).
			Error("error reassembling frame from unit train")
		return
	}

	m.handler(frameBuf)
}

func (m *MIISink) discardTrain() {
	m.buf, m.hasNibble, m.sending = nil, false, false
}
