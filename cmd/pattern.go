package cmd

// patternStep is the additive increment of the built-in test pattern:
// each payload byte is the previous one plus 87, modulo 256. The cycle
// visits all 256 byte values because 87 is odd.
const patternStep = 87

// patternGenerator produces the built-in test pattern starting from a
// seed byte. The sequence continues across bursts and frames, which is
// what lets the verify command detect dropped or reordered payload.
type patternGenerator struct {
	next byte
}

func newPatternGenerator(seed byte) *patternGenerator {
	return &patternGenerator{next: seed}
}

func (g *patternGenerator) fill(p []byte) {
	for i := range p {
		p[i] = g.next
		g.next += patternStep
	}
}

// expect checks that p continues the sequence, returning the offset of
// the first mismatch or -1. The generator state advances past p so
// that a single corrupted frame is reported once and the check
// resynchronizes on the next frame.
func (g *patternGenerator) expect(p []byte) int {
	mismatch := -1
	for i := range p {
		if p[i] != g.next && mismatch < 0 {
			mismatch = i
			g.next = p[i] // resync on the observed value
		}
		g.next += patternStep
	}
	return mismatch
}
