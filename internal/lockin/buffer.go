package lockin

import (
	"bytes"
	"sync"
)

// pairSize is the size of one interleaved (measurement, reference) frame in bytes
const pairSize = 8

// sampleBuffer receives raw bytes from a Source and hands complete sample
// pairs to the processing cycle. Incomplete trailing frames stay buffered.
type sampleBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func newSampleBuffer() *sampleBuffer {
	return &sampleBuffer{}
}

// Write implements io.Writer and is safe to call from the source goroutine
func (b *sampleBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

// Len returns the number of buffered bytes
func (b *sampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Len()
}

// drain decodes every complete pair currently buffered
func (b *sampleBuffer) drain(order ByteOrder) []SamplePair {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.buf.Len() / pairSize
	if n == 0 {
		return nil
	}

	bo := order.binary()
	raw := b.buf.Next(n * pairSize)

	pairs := make([]SamplePair, n)
	for i := range pairs {
		frame := raw[i*pairSize:]
		pairs[i] = SamplePair{
			Measurement: bo.Uint32(frame[0:4]),
			Reference:   bo.Uint32(frame[4:8]),
		}
	}

	return pairs
}
