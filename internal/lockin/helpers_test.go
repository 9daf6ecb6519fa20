package lockin

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
)

const floatTolerance = 1e-9

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// squareWave generates a reference that is high for the first half of every
// period, so rising edges fall on multiples of period.
func squareWave(n, period int, low, high uint32) []uint32 {
	out := make([]uint32, n)
	for k := range out {
		if k%period < period/2 {
			out[k] = high
		} else {
			out[k] = low
		}
	}
	return out
}

// lockedCosine generates offset + amplitude*cos(angle) where angle is the
// angle AnalyzeReference assigns to sample k of a squareWave reference.
func lockedCosine(n, period int, offset, amplitude float64) []uint32 {
	out := make([]uint32, n)
	for k := range out {
		angle := 2 * math.Pi * float64((k+period-1)%period) / float64(period)
		out[k] = uint32(math.Round(offset + amplitude*math.Cos(angle)))
	}
	return out
}

func zipPairs(measurement, reference []uint32) []SamplePair {
	pairs := make([]SamplePair, len(measurement))
	for i := range pairs {
		pairs[i] = SamplePair{Measurement: measurement[i], Reference: reference[i]}
	}
	return pairs
}

func encodePairs(pairs []SamplePair, order binary.AppendByteOrder) []byte {
	out := make([]byte, 0, len(pairs)*pairSize)
	for _, p := range pairs {
		out = order.AppendUint32(out, p.Measurement)
		out = order.AppendUint32(out, p.Reference)
	}
	return out
}

// fakeSource hands its writer to the test instead of producing data
type fakeSource struct {
	format   Format
	startErr error
	stopErr  error

	mu      sync.Mutex
	w       io.Writer
	started int
	stopped int
}

func newFakeSource(sampleRate int) *fakeSource {
	return &fakeSource{format: DefaultFormat(sampleRate)}
}

func (s *fakeSource) Format() Format {
	return s.format
}

func (s *fakeSource) Start(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startErr != nil {
		return s.startErr
	}
	s.w = w
	s.started++
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped++
	return s.stopErr
}

func (s *fakeSource) feed(pairs []SamplePair) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.w.Write(encodePairs(pairs, binary.LittleEndian))
}
