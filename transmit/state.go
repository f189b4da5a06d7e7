package transmit

import (
	"fmt"

	"github.com/matheuscscp/ethertx-sim/fcs"
	"github.com/matheuscscp/ethertx-sim/frame"
)

type (
	state int

	// assembly is the per-frame state: the header stack under
	// construction, the running CRC, the computed payload and padding
	// lengths and the serialization cursor. It is created when the
	// scheduler leaves Ready, exclusively owned by the run thread,
	// consumed entirely during serialization and discarded when the
	// frame completes.
	assembly struct {
		headers    *frame.Headers
		crc        *fcs.Accumulator
		payloadLen int
		padLen     int
		flushed    bool

		// serialization cursor: the bytes remaining in the segment
		// being emitted, whether emitted units fold into the CRC, and
		// which nibble of the current byte goes out next
		seg      []byte
		fold     bool
		nibbleHi bool
	}
)

// The global state machine: a fixed enumerated set of named phases with
// explicit transition rules.
const (
	statePowerUp state = iota
	stateReady
	statePrepare
	stateComputeLengths
	stateIPChecksum
	stateSendPreambleSFD
	stateSendMACHeader
	stateSendIPHeader
	stateSendUDPHeader
	stateSendPayload
	stateSendPadding
	stateSendFCS
	stateWait
)

func (s state) String() string {
	switch s {
	case statePowerUp:
		return "power-up"
	case stateReady:
		return "ready"
	case statePrepare:
		return "prepare"
	case stateComputeLengths:
		return "compute-lengths"
	case stateIPChecksum:
		return "ip-checksum"
	case stateSendPreambleSFD:
		return "send-preamble-sfd"
	case stateSendMACHeader:
		return "send-mac-header"
	case stateSendIPHeader:
		return "send-ip-header"
	case stateSendUDPHeader:
		return "send-udp-header"
	case stateSendPayload:
		return "send-payload"
	case stateSendPadding:
		return "send-padding"
	case stateSendFCS:
		return "send-fcs"
	case stateWait:
		return "wait"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

func (t *transmitter) transition(s state) {
	t.l.
		WithField("from", t.state.String()).
		WithField("to", s.String()).
		Debug("state transition")
	t.state = s
}

// step executes one tick of the state machine.
func (t *transmitter) step() error {
	switch t.state {
	case statePowerUp:
		if t.powerUpLeft > 0 {
			t.powerUpLeft--
			return t.sink.Tick(t.ctx, false, 0)
		}
		if err := t.sink.Reset(false); err != nil {
			return fmt.Errorf("error deasserting reset line: %w", err)
		}
		t.ready.Store(true)
		t.transition(stateReady)
		return nil

	case stateReady:
		if t.tryTrigger() {
			return nil
		}
		// intended backpressure, not a fault: block until occupancy or
		// flush state changes
		select {
		case <-t.ctx.Done():
			return t.ctx.Err()
		case <-t.queue.Notify():
		case <-t.flushCh:
		}
		return nil

	case statePrepare:
		padLen := frame.MinFrameSize - frame.HeadersLength - frame.FCSLength - t.cur.payloadLen
		if padLen < 0 {
			padLen = 0
		}
		t.cur.padLen = padLen
		t.transition(stateComputeLengths)
		return t.sink.Tick(t.ctx, false, 0)

	case stateComputeLengths:
		t.cur.headers.SetLengths(t.cur.payloadLen)
		t.transition(stateIPChecksum)
		return t.sink.Tick(t.ctx, false, 0)

	case stateIPChecksum:
		t.cur.headers.InstallIPChecksum()
		if t.conf.UDPChecksum {
			payload, err := t.peekPayload()
			if err != nil {
				return fmt.Errorf("error peeking payload for udp checksum: %w", err)
			}
			t.cur.headers.SetUDPChecksum(t.cur.headers.ComputeUDPChecksum(payload))
		}
		t.startSegment(stateSendPreambleSFD, frame.PreambleSFD(), false)
		return t.sink.Tick(t.ctx, false, 0)

	case stateSendPreambleSFD, stateSendMACHeader, stateSendIPHeader,
		stateSendUDPHeader, stateSendPayload, stateSendPadding, stateSendFCS:
		return t.stepSend()

	case stateWait:
		if t.gapLeft > 0 {
			t.gapLeft--
			return t.sink.Tick(t.ctx, false, 0)
		}
		t.cur = nil
		t.busy.Store(false)
		t.ready.Store(true)
		t.transition(stateReady)
		return nil
	}

	return fmt.Errorf("unknown state: %d", int(t.state))
}

// tryTrigger evaluates the Ready guards: either occupancy reached the
// minimum payload size, or a flush was requested and occupancy is
// non-zero. On trigger it latches the connection parameters, computes
// the frame's payload length (occupancy clamped to the maximum, then
// rounded down to a multiple of the word size) and leaves Ready.
func (t *transmitter) tryTrigger() bool {
	occupancy := t.queue.Len()
	flush := t.flushed.Swap(false) // a flush at zero occupancy is consumed as a no-op
	if occupancy < t.conf.MinPayloadBytes && !(flush && occupancy > 0) {
		return false
	}

	payloadLen := occupancy
	if payloadLen > t.conf.MaxPayloadBytes {
		payloadLen = t.conf.MaxPayloadBytes
	}
	payloadLen -= payloadLen % t.conf.WordSize

	t.frameID++
	t.cur = &assembly{
		headers:    frame.NewHeaders(t.params.Load(), t.frameID),
		crc:        fcs.New(),
		payloadLen: payloadLen,
		flushed:    flush,
	}

	t.ready.Store(false)
	t.busy.Store(true)
	t.transition(statePrepare)
	return true
}

// stepSend emits exactly one unit of the current segment and advances
// to the next segment when the current one is exhausted.
func (t *transmitter) stepSend() error {
	a := t.cur
	b := a.seg[0]

	var unit byte
	if t.conf.UnitBits == 8 {
		unit = b
		a.seg = a.seg[1:]
	} else if !a.nibbleHi {
		unit = b & 0x0f
		a.nibbleHi = true
	} else {
		unit = b >> 4
		a.nibbleHi = false
		a.seg = a.seg[1:]
	}

	// the CRC consumes exactly the units that appear on the wire
	// between the SFD and the FCS
	if a.fold {
		if t.conf.UnitBits == 8 {
			a.crc.UpdateByte(unit)
		} else {
			a.crc.UpdateNibble(unit)
		}
	}

	if err := t.sink.Tick(t.ctx, true, unit); err != nil {
		return err
	}

	if len(a.seg) == 0 {
		return t.advanceSend()
	}
	return nil
}

func (t *transmitter) startSegment(s state, seg []byte, fold bool) {
	t.cur.seg = seg
	t.cur.fold = fold
	t.cur.nibbleHi = false
	t.transition(s)
}

// advanceSend chains the send states: preamble+SFD, MAC header, IP
// header, UDP header, payload (skipped when empty), padding (skipped
// when none), FCS.
func (t *transmitter) advanceSend() error {
	a := t.cur
	switch t.state {
	case stateSendPreambleSFD:
		t.startSegment(stateSendMACHeader, a.headers.EthernetBytes(), true)

	case stateSendMACHeader:
		t.startSegment(stateSendIPHeader, a.headers.IPv4Bytes(), true)

	case stateSendIPHeader:
		t.startSegment(stateSendUDPHeader, a.headers.UDPBytes(), true)

	case stateSendUDPHeader:
		if a.payloadLen > 0 {
			payload, err := t.popPayload()
			if err != nil {
				return fmt.Errorf("error draining payload from queue: %w", err)
			}
			t.startSegment(stateSendPayload, payload, true)
			return nil
		}
		fallthrough

	case stateSendPayload:
		if a.padLen > 0 {
			t.startSegment(stateSendPadding, make([]byte, a.padLen), true)
			return nil
		}
		fallthrough

	case stateSendPadding:
		wire := a.crc.WireBytes()
		t.startSegment(stateSendFCS, wire[:], false)

	case stateSendFCS:
		t.finishFrame()
	}
	return nil
}

func (t *transmitter) finishFrame() {
	a := t.cur
	t.framesSent.Inc()
	t.payloadBytes.Add(float64(a.payloadLen))
	t.paddingBytes.Add(float64(a.padLen))
	if a.flushed {
		t.flushFrames.Inc()
	}
	t.l.
		WithField("frame_len", frame.HeadersLength+a.payloadLen+a.padLen+frame.FCSLength).
		WithField("payload_len", a.payloadLen).
		WithField("padding_len", a.padLen).
		WithField("flushed", a.flushed).
		Debug("frame serialized")

	t.gapLeft = t.conf.InterFrameGapUnits
	t.transition(stateWait)
}

// peekPayload reads the frame's payload without consuming it. Safe
// because the transmitter is the queue's only consumer.
func (t *transmitter) peekPayload() ([]byte, error) {
	payload := make([]byte, t.cur.payloadLen)
	for i := range payload {
		w, err := t.queue.Peek(i)
		if err != nil {
			return nil, err
		}
		payload[i] = w
	}
	return payload, nil
}

// popPayload consumes exactly payloadLen words from the queue. The
// words are guaranteed to be there: occupancy only grows between the
// trigger and this point.
func (t *transmitter) popPayload() ([]byte, error) {
	payload := make([]byte, t.cur.payloadLen)
	for i := range payload {
		w, err := t.queue.Pop()
		if err != nil {
			return nil, err
		}
		payload[i] = w
	}
	return payload, nil
}
