package phy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/matheuscscp/ethertx-sim/observability"
	pkgcontext "github.com/matheuscscp/ethertx-sim/pkg/context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type (
	// Wire represents the guided medium behind the transmit interface.
	// It carries whole frames (preamble and SFD already stripped, FCS
	// included), one frame per datagram, over a UDP socket on the host
	// network. No guarantee is provided about delivery/integrity:
	// reliability is explicitly the caller's problem.
	Wire interface {
		Send(ctx context.Context, frame []byte) (n int, err error)
		Recv(ctx context.Context, frame []byte) (n int, err error)
		Close() error
	}

	// WireConfig contains the UDP configs for the concrete
	// implementation of Wire.
	WireConfig struct {
		RecvUDPEndpoint string         `yaml:"recvUDPEndpoint"`
		SendUDPEndpoint string         `yaml:"sendUDPEndpoint"`
		Capture         *CaptureConfig `yaml:"capture"`
		MetricLabels    struct {
			EngineName string `yaml:"engineName"`
		} `yaml:"metricLabels"`
	}

	wire struct {
		ctx       context.Context
		cancelCtx context.CancelFunc
		conf      *WireConfig
		conn      net.Conn
		wg        sync.WaitGroup
		capture   *capture

		sentFrames    prometheus.Counter
		sentBytes     prometheus.Counter
		recvdBytes    prometheus.Counter
		sendLatencyNs prometheus.Observer
		recvLatencyNs prometheus.Observer
	}
)

const (
	promSubsystemWire        = "wire"
	labelNameRecvUDPEndpoint = "recv_udp_endpoint"
	labelNameSendUDPEndpoint = "send_udp_endpoint"
)

var (
	metricLabelsWire = []string{
		observability.EngineName,
		labelNameRecvUDPEndpoint,
		labelNameSendUDPEndpoint,
	}
	sentFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystemWire,
		Name:      "sent_frames",
		Help:      "Total number of sent frames.",
	}, metricLabelsWire)
	sentBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystemWire,
		Name:      "sent_bytes",
		Help:      "Total number of sent bytes.",
	}, metricLabelsWire)
	recvdBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystemWire,
		Name:      "recvd_bytes",
		Help:      "Total number of received bytes.",
	}, metricLabelsWire)
	sendLatencyNs = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystemWire,
		Name:      "send_latency_ns",
		Help:      "Latency in nanoseconds of Wire.Send().",
	}, metricLabelsWire)
	recvLatencyNs = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystemWire,
		Name:      "recv_latency_ns",
		Help:      "Latency in nanoseconds of Wire.Recv().",
	}, metricLabelsWire)
)

// NewWire creates a Wire from config.
func NewWire(ctx context.Context, conf WireConfig) (Wire, error) {
	recvAddr, err := net.ResolveUDPAddr("udp", conf.RecvUDPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("error resolving udp address of recv endpoint: %w", err)
	}
	dialer := &net.Dialer{LocalAddr: recvAddr}
	conn, err := dialer.DialContext(ctx, "udp", conf.SendUDPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("error dialing udp: %w", err)
	}

	wireCtx, cancel := context.WithCancel(context.Background())
	engineName := conf.MetricLabels.EngineName
	if engineName == "" {
		engineName = "default"
	}
	metricLabels := prometheus.Labels{
		observability.EngineName: engineName,
		labelNameRecvUDPEndpoint: conf.RecvUDPEndpoint,
		labelNameSendUDPEndpoint: conf.SendUDPEndpoint,
	}
	w := &wire{
		ctx:           wireCtx,
		cancelCtx:     cancel,
		conf:          &conf,
		conn:          conn,
		sentFrames:    sentFrames.With(metricLabels),
		sentBytes:     sentBytes.With(metricLabels),
		recvdBytes:    recvdBytes.With(metricLabels),
		sendLatencyNs: sendLatencyNs.With(metricLabels),
		recvLatencyNs: recvLatencyNs.With(metricLabels),
	}

	if conf.Capture != nil {
		w.capture, err = newCapture(wireCtx, &w.wg, *conf.Capture, engineName)
		if err != nil {
			cancel()
			conn.Close()
			return nil, err
		}
	}

	return w, nil
}

func (w *wire) Send(ctx context.Context, frame []byte) (n int, err error) {
	// validate frame size
	if len(frame) == 0 {
		return 0, ErrCannotSendEmpty
	}
	if len(frame) > MaxFrameSize {
		return 0, fmt.Errorf("frame is larger than the maximum frame size (%d)", MaxFrameSize)
	}

	c := w.conn

	// one frame per datagram, so a single write either fully succeeds
	// or fully fails. a deadline is only needed when the caller set one
	if d, ok := ctx.Deadline(); ok {
		if err := c.SetWriteDeadline(d); err != nil {
			return 0, fmt.Errorf("error setting write deadline for udp socket: %w", err)
		}
	} else if err := c.SetWriteDeadline(time.Time{}); err != nil {
		return 0, fmt.Errorf("error setting write deadline to zero: %w", err)
	}

	t0 := time.Now()
	n, err = c.Write(frame)
	w.sendLatencyNs.Observe(float64(time.Since(t0).Nanoseconds()))
	if err != nil {
		return n, fmt.Errorf("error writing frame to udp socket: %w", err)
	}
	w.sentFrames.Inc()
	w.sentBytes.Add(float64(n))
	w.capture.enqueue(frame[:n])
	return n, nil
}

func (w *wire) Recv(ctx context.Context, frame []byte) (n int, err error) {
	c := w.conn

	// initially, no timeout
	if err := c.SetReadDeadline(time.Time{}); err != nil {
		return 0, fmt.Errorf("error setting read deadline to zero: %w", err)
	}

	// read in a separate thread
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		t0 := time.Now()
		n, err = c.Read(frame)
		w.recvLatencyNs.Observe(float64(time.Since(t0).Nanoseconds()))
		if err == nil {
			w.recvdBytes.Add(float64(n))
			w.capture.enqueue(frame[:n])
		} else if errors.Is(err, syscall.ECONNREFUSED) {
			n, err = 0, nil
		}
	}()

	// wait for ch or for ctx.Done() and cancel the operation
	ctx, cancel := pkgcontext.WithCancelOnAnotherContext(ctx, w.ctx)
	defer cancel()
	select {
	case <-ctx.Done():
		if err := c.SetReadDeadline(time.Now()); err != nil { // force timeout for ongoing blocked read
			return 0, fmt.Errorf("error forcing timeout after context done: %w", err)
		}
		<-ch
		return 0, ctx.Err()
	case <-ch:
		return
	}
}

func (w *wire) Close() error {
	// cancel ctx
	var cancel context.CancelFunc
	cancel, w.cancelCtx = w.cancelCtx, nil
	if cancel == nil {
		return nil
	}
	cancel()

	// wait threads
	w.wg.Wait()

	return w.conn.Close()
}
