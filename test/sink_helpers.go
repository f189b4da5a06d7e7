package test

import (
	"context"
	"sync"

	"github.com/matheuscscp/ethertx-sim/phy"
)

type (
	// RecordingSink implements phy.Sink for tests: it reassembles
	// frames like the real MII sink but keeps everything in memory,
	// and additionally records the reset line activity and the
	// disabled-tick runs observed between frames (the inter-frame
	// gap).
	RecordingSink struct {
		mii    *phy.MIISink
		frames chan []byte

		mu             sync.Mutex
		resetAsserts   int
		resetDeasserts int
		idleRun        int
		sawFrame       bool
		gaps           []int
	}
)

// NewRecordingSink creates a RecordingSink for the given bus width.
func NewRecordingSink(unitBits int) (*RecordingSink, error) {
	s := &RecordingSink{
		frames: make(chan []byte, 64),
	}
	mii, err := phy.NewMIISink(phy.MIISinkConfig{UnitBits: unitBits}, func(frameBuf []byte) {
		frame := make([]byte, len(frameBuf))
		copy(frame, frameBuf)
		s.frames <- frame
	})
	if err != nil {
		return nil, err
	}
	s.mii = mii
	return s, nil
}

func (s *RecordingSink) Reset(asserted bool) error {
	s.mu.Lock()
	if asserted {
		s.resetAsserts++
	} else {
		s.resetDeasserts++
	}
	s.mu.Unlock()
	return s.mii.Reset(asserted)
}

func (s *RecordingSink) Tick(ctx context.Context, enable bool, data byte) error {
	s.mu.Lock()
	if enable {
		if s.idleRun > 0 && s.sawFrame {
			s.gaps = append(s.gaps, s.idleRun)
		}
		s.idleRun = 0
		s.sawFrame = true
	} else {
		s.idleRun++
	}
	s.mu.Unlock()
	return s.mii.Tick(ctx, enable, data)
}

func (s *RecordingSink) Close() error {
	return s.mii.Close()
}

// Frames returns the channel of reassembled frames (preamble and SFD
// stripped, FCS included).
func (s *RecordingSink) Frames() <-chan []byte {
	return s.frames
}

// Gaps returns the lengths of the disabled-tick runs observed between
// enabled-tick bursts, i.e. the inter-frame gaps in output ticks.
func (s *RecordingSink) Gaps() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	gaps := make([]int, len(s.gaps))
	copy(gaps, s.gaps)
	return gaps
}

// ResetActivity returns how many times the reset line was asserted and
// deasserted.
func (s *RecordingSink) ResetActivity() (asserts, deasserts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetAsserts, s.resetDeasserts
}
