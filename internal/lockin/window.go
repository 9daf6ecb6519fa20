package lockin

import (
	"fmt"
	"math"
)

// Window is a bounded FIFO of demodulated samples acting as the time-constant
// filter of the lock-in. Invalid samples keep their position in the window but
// are excluded from the mean.
//
// Window is not safe for concurrent use.
type Window struct {
	buf   []Sample
	start int
	size  int
}

// NewWindow creates a window holding up to capacity samples
func NewWindow(capacity int) (*Window, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: window capacity must be positive: %d", ErrInvalidConfig, capacity)
	}
	return &Window{buf: make([]Sample, capacity)}, nil
}

// Push appends samples in order, evicting the oldest ones once the window is full
func (w *Window) Push(samples []Sample) {
	capacity := len(w.buf)

	// only the newest capacity samples can survive
	if len(samples) > capacity {
		samples = samples[len(samples)-capacity:]
	}

	for _, s := range samples {
		if w.size < capacity {
			w.buf[(w.start+w.size)%capacity] = s
			w.size++
			continue
		}

		w.buf[w.start] = s
		w.start = (w.start + 1) % capacity
	}
}

// Len returns the number of samples held
func (w *Window) Len() int {
	return w.size
}

// Cap returns the window capacity
func (w *Window) Cap() int {
	return len(w.buf)
}

// IsFull returns true once the window holds capacity samples
func (w *Window) IsFull() bool {
	return w.size >= len(w.buf)
}

// Reset empties the window
func (w *Window) Reset() {
	clear(w.buf)
	w.start, w.size = 0, 0
}

// Mean returns the mean of the valid samples and their count. It returns
// ErrPriming until the window is full and ErrNoLock when the window holds no
// valid sample.
func (w *Window) Mean() (x, y float64, count int, err error) {
	if !w.IsFull() {
		return 0, 0, 0, ErrPriming
	}

	var sx, sy kahanSum
	for i := 0; i < w.size; i++ {
		s := w.buf[(w.start+i)%len(w.buf)]
		if !s.Valid {
			continue
		}
		sx.add(s.X)
		sy.add(s.Y)
		count++
	}

	if count == 0 {
		return 0, 0, 0, ErrNoLock
	}

	n := float64(count)
	return sx.sum() / n, sy.sum() / n, count, nil
}

// kahanSum is a Neumaier compensated sum; windows hold up to a few million
// products of 32-bit magnitudes.
type kahanSum struct {
	s, c float64
}

func (k *kahanSum) add(v float64) {
	t := k.s + v
	if math.Abs(k.s) >= math.Abs(v) {
		k.c += (k.s - t) + v
	} else {
		k.c += (v - t) + k.s
	}
	k.s = t
}

func (k *kahanSum) sum() float64 {
	return k.s + k.c
}
