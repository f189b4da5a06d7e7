package transmit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheuscscp/ethertx-sim/frame"
	"github.com/matheuscscp/ethertx-sim/observability"
	"github.com/matheuscscp/ethertx-sim/phy"
	pkgcontext "github.com/matheuscscp/ethertx-sim/pkg/context"
	pkgio "github.com/matheuscscp/ethertx-sim/pkg/io"
	pkgtime "github.com/matheuscscp/ethertx-sim/pkg/time"
	"github.com/matheuscscp/ethertx-sim/queue"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

type (
	// Transmitter models the transmit engine: it waits for the
	// physical link's power-up delay, drains the payload queue when
	// enough data has accumulated (or a flush was requested), builds
	// the Ethernet/IPv4/UDP header stack and serializes preamble,
	// headers, payload, padding and FCS, unit by unit, to the physical
	// sink, enforcing the minimum frame size and the inter-frame gap.
	//
	// Once a frame starts there is no cancellation: the frame runs to
	// completion (including the gap) before the next trigger is
	// evaluated.
	Transmitter interface {
		// Queue returns the payload queue. The producer pushes words
		// into it and observes Full()/Len() to throttle.
		Queue() *queue.Ring

		// SetParams replaces the connection parameters. They are
		// latched at the moment a new frame starts, not continuously.
		SetParams(p frame.Params) error

		// Flush requests transmission of the currently queued payload
		// even if below the minimum threshold. A flush while the queue
		// is empty is a no-op.
		Flush()

		// Ready tells whether the transmitter is waiting for a trigger.
		Ready() bool

		// Busy tells whether a frame is currently being transmitted.
		Busy() bool

		Close() error
	}

	// Config contains the configs for the concrete implementation of
	// Transmitter. Malformed values are a construction-time fault,
	// reported once and fatal to instantiation, never recovered at
	// runtime.
	Config struct {
		// Name identifies the engine instance in logs and metrics.
		// Auto-generated when empty.
		Name string `yaml:"name"`

		// Connection supplies the six pre-resolved addressing fields.
		Connection frame.ParamsConfig `yaml:"connection"`

		// QueueCapacity is the payload queue capacity in bytes.
		// Defaults to twice MaxPayloadBytes.
		QueueCapacity int `yaml:"queueCapacity"`

		// WordSize is the payload word size in bytes. The payload
		// length of every frame is a multiple of WordSize.
		WordSize int `yaml:"wordSize"`

		// MinPayloadBytes is the queue occupancy required to start a
		// frame without a flush. Defaults to 256.
		MinPayloadBytes int `yaml:"minPayloadBytes"`

		// MaxPayloadBytes caps the payload length of one frame.
		// Defaults to the maximum safe UDP payload (508).
		MaxPayloadBytes int `yaml:"maxPayloadBytes"`

		// PowerUpTicks is the number of ticks spent in the power-up
		// state before ready is asserted. Zero means ready on the
		// first evaluated tick.
		PowerUpTicks int `yaml:"powerUpTicks"`

		// InterFrameGapUnits is the number of output ticks between
		// frames. The reference design revisions disagree (24 vs 40
		// nibble-times), so it is explicit policy. Defaults to 24.
		InterFrameGapUnits int `yaml:"interFrameGapUnits"`

		// UnitBits is the width of the physical data bus: 4 (nibble,
		// the reference arrangement) or 8. Defaults to 4.
		UnitBits int `yaml:"unitBits"`

		// UDPChecksum enables UDP checksum generation. The reference
		// design revisions also disagree here; when disabled the field
		// is transmitted as zero.
		UDPChecksum bool `yaml:"udpChecksum"`

		// ClockDivider is the ratio between the core clock and the
		// derived output clock. Must be at least 2.
		ClockDivider int `yaml:"clockDivider"`

		// CoreClockPeriod is the simulated core clock period. Zero
		// means free-running (as fast as the host allows), which is
		// what tests use.
		CoreClockPeriod time.Duration `yaml:"coreClockPeriod"`
	}

	transmitter struct {
		ctx       context.Context
		cancelCtx context.CancelFunc
		conf      *Config
		l         logrus.FieldLogger
		queue     *queue.Ring
		sink      phy.Sink
		wg        sync.WaitGroup

		params  atomic.Pointer[frame.Params]
		flushed atomic.Bool
		flushCh chan struct{}
		ready   atomic.Bool
		busy    atomic.Bool

		// fields below are owned by the run thread
		state       state
		tickPeriod  time.Duration
		powerUpLeft int
		gapLeft     int
		frameID     uint16
		cur         *assembly

		framesSent   prometheus.Counter
		payloadBytes prometheus.Counter
		paddingBytes prometheus.Counter
		flushFrames  prometheus.Counter
	}
)

const (
	// DefaultMinPayloadBytes matches the burst size of the reference
	// system's control-plane decoder.
	DefaultMinPayloadBytes = 256

	// DefaultInterFrameGapUnits is 24 nibble-times, which at the
	// default 4-bit bus is the standard 12 byte-times gap.
	DefaultInterFrameGapUnits = 24

	promNamespace = "transmit"
	promSubsystem = "engine"
)

var (
	metricLabels = []string{observability.EngineName}

	framesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "frames_sent",
		Help:      "Total number of frames serialized to the physical sink.",
	}, metricLabels)
	payloadBytesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "payload_bytes_sent",
		Help:      "Total number of payload bytes drained from the queue and serialized.",
	}, metricLabels)
	paddingBytesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "padding_bytes_sent",
		Help:      "Total number of zero bytes appended to satisfy the minimum frame size.",
	}, metricLabels)
	flushFramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "flush_frames_sent",
		Help:      "Total number of frames triggered by a flush request.",
	}, metricLabels)
)

// NewTransmitter creates a Transmitter from config. The sink is owned
// by the transmitter from this point on and is closed by Close().
func NewTransmitter(ctx context.Context, conf Config, sink phy.Sink) (Transmitter, error) {
	if sink == nil {
		return nil, errors.New("nil physical sink")
	}
	if err := conf.applyDefaultsAndValidate(); err != nil {
		return nil, fmt.Errorf("invalid transmitter config: %w", err)
	}
	params, err := conf.Connection.Parse()
	if err != nil {
		return nil, fmt.Errorf("error parsing connection parameters: %w", err)
	}
	q, err := queue.New(conf.QueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("error creating payload queue: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t := &transmitter{
		ctx:         runCtx,
		cancelCtx:   cancel,
		conf:        &conf,
		l:           logrus.WithField("engine_name", conf.Name),
		queue:       q,
		sink:        sink,
		flushCh:     make(chan struct{}, 1),
		state:       statePowerUp,
		tickPeriod:  conf.CoreClockPeriod * time.Duration(conf.ClockDivider),
		powerUpLeft: conf.PowerUpTicks,

		framesSent:   framesSent.With(prometheus.Labels{observability.EngineName: conf.Name}),
		payloadBytes: payloadBytesSent.With(prometheus.Labels{observability.EngineName: conf.Name}),
		paddingBytes: paddingBytesSent.With(prometheus.Labels{observability.EngineName: conf.Name}),
		flushFrames:  flushFramesSent.With(prometheus.Labels{observability.EngineName: conf.Name}),
	}
	t.params.Store(params)
	t.startThreads()
	return t, nil
}

func (c *Config) applyDefaultsAndValidate() error {
	if c.Name == "" {
		c.Name = petname.Generate(2, "-")
	}
	if c.WordSize == 0 {
		c.WordSize = 1
	}
	if c.MinPayloadBytes == 0 {
		c.MinPayloadBytes = DefaultMinPayloadBytes
	}
	if c.MaxPayloadBytes == 0 {
		c.MaxPayloadBytes = frame.MaxUDPPayload
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 2 * c.MaxPayloadBytes
	}
	if c.UnitBits == 0 {
		c.UnitBits = 4
	}
	if c.InterFrameGapUnits == 0 {
		c.InterFrameGapUnits = DefaultInterFrameGapUnits
	}
	if c.ClockDivider == 0 {
		c.ClockDivider = 2
	}

	var err error
	if c.WordSize < 0 {
		err = multierror.Append(err, fmt.Errorf("word size must be positive, got %d", c.WordSize))
	}
	if c.MinPayloadBytes < 0 || c.MaxPayloadBytes < c.MinPayloadBytes {
		err = multierror.Append(err, fmt.Errorf("payload bounds must satisfy 0 <= min <= max, got min %d, max %d", c.MinPayloadBytes, c.MaxPayloadBytes))
	}
	if c.MaxPayloadBytes > frame.MaxUDPPayload {
		err = multierror.Append(err, fmt.Errorf("max payload exceeds the maximum safe udp payload (%d), got %d", frame.MaxUDPPayload, c.MaxPayloadBytes))
	}
	if c.WordSize > 0 && (c.MinPayloadBytes%c.WordSize != 0 || c.MaxPayloadBytes%c.WordSize != 0) {
		err = multierror.Append(err, fmt.Errorf("payload bounds must be multiples of the word size %d, got min %d, max %d", c.WordSize, c.MinPayloadBytes, c.MaxPayloadBytes))
	}
	if c.UnitBits != 4 && c.UnitBits != 8 {
		err = multierror.Append(err, fmt.Errorf("unit width must be 4 or 8 bits, got %d", c.UnitBits))
	}
	if c.ClockDivider < 2 {
		err = multierror.Append(err, fmt.Errorf("clock divider must be at least 2, got %d", c.ClockDivider))
	}
	if c.PowerUpTicks < 0 {
		err = multierror.Append(err, fmt.Errorf("power-up ticks must not be negative, got %d", c.PowerUpTicks))
	}
	if c.InterFrameGapUnits < 0 {
		err = multierror.Append(err, fmt.Errorf("inter-frame gap must not be negative, got %d", c.InterFrameGapUnits))
	}
	if c.QueueCapacity < c.MinPayloadBytes {
		err = multierror.Append(err, fmt.Errorf("queue capacity %d can never reach the minimum payload threshold %d", c.QueueCapacity, c.MinPayloadBytes))
	}
	return err
}

func (t *transmitter) startThreads() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		// the reset line is held asserted during the power-up window
		if err := t.sink.Reset(true); err != nil {
			t.l.
				WithError(err).
				Error("error asserting reset line")
		}

		ctxDone := t.ctx.Done()
		for {
			select {
			case <-ctxDone:
				return
			default:
			}
			if err := t.step(); err != nil {
				if pkgcontext.IsContextError(t.ctx, err) {
					return
				}
				t.l.
					WithError(err).
					WithField("state", t.state.String()).
					Error("error driving physical sink")
			}
			t.waitTick()
		}
	}()
}

// waitTick paces the run thread at the derived output clock. A zero
// period free-runs.
func (t *transmitter) waitTick() {
	if t.tickPeriod <= 0 {
		return
	}
	timer, stop := pkgtime.NewTimer(t.tickPeriod)
	defer stop()
	select {
	case <-t.ctx.Done():
	case <-timer.C:
	}
}

func (t *transmitter) Queue() *queue.Ring {
	return t.queue
}

func (t *transmitter) SetParams(p frame.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	t.params.Store(&p)
	return nil
}

func (t *transmitter) Flush() {
	t.flushed.Store(true)
	select {
	case t.flushCh <- struct{}{}:
	default:
	}
}

func (t *transmitter) Ready() bool {
	return t.ready.Load()
}

func (t *transmitter) Busy() bool {
	return t.busy.Load()
}

func (t *transmitter) Close() error {
	// cancel ctx and wait threads
	var cancel context.CancelFunc
	cancel, t.cancelCtx = t.cancelCtx, nil
	if cancel == nil {
		return nil
	}
	cancel()
	t.wg.Wait()

	return pkgio.Close(t.sink)
}
