package lockin

import (
	"errors"
	"testing"
)

func valid(x, y float64) Sample {
	return Sample{X: x, Y: y, Valid: true}
}

func TestNewWindow_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := NewWindow(capacity); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Capacity %d: expected ErrInvalidConfig, got %v", capacity, err)
		}
	}
}

func TestWindow_ColdStart(t *testing.T) {
	w, err := NewWindow(5)
	if err != nil {
		t.Fatalf("Failed to create window: %v", err)
	}

	w.Push([]Sample{valid(1, 1), valid(1, 1)})
	if _, _, _, err = w.Mean(); !errors.Is(err, ErrPriming) {
		t.Fatalf("Expected ErrPriming with 2 of 5 samples, got %v", err)
	}

	w.Push([]Sample{valid(1, 1), valid(1, 1)})
	if _, _, _, err = w.Mean(); !errors.Is(err, ErrPriming) {
		t.Fatalf("Expected ErrPriming with 4 of 5 samples, got %v", err)
	}

	w.Push([]Sample{valid(6, -4)})
	x, y, count, err := w.Mean()
	if err != nil {
		t.Fatalf("Expected a mean once full, got %v", err)
	}
	if count != 5 || x != 2 || y != 0 {
		t.Errorf("Expected (2, 0) over 5 samples, got (%f, %f) over %d", x, y, count)
	}
}

func TestWindow_EvictsOldestFirst(t *testing.T) {
	w, err := NewWindow(3)
	if err != nil {
		t.Fatalf("Failed to create window: %v", err)
	}

	w.Push([]Sample{valid(100, 100), valid(1, 0), valid(2, 0)})
	w.Push([]Sample{valid(3, 0)})

	if w.Len() != 3 || !w.IsFull() {
		t.Fatalf("Expected a full window of 3, got %d", w.Len())
	}

	x, _, _, err := w.Mean()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if x != 2 {
		t.Errorf("Expected mean of (1, 2, 3) = 2, got %f", x)
	}
}

func TestWindow_BurstLargerThanCapacity(t *testing.T) {
	w, err := NewWindow(2)
	if err != nil {
		t.Fatalf("Failed to create window: %v", err)
	}

	w.Push([]Sample{valid(9, 9), valid(9, 9), valid(1, 2), valid(3, 4)})

	x, y, count, err := w.Mean()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if count != 2 || x != 2 || y != 3 {
		t.Errorf("Expected the newest two samples only, got (%f, %f) over %d", x, y, count)
	}
}

func TestWindow_InvalidSamplesDoNotShiftMean(t *testing.T) {
	plain, _ := NewWindow(4)
	plain.Push([]Sample{valid(2, 4), valid(4, 8), valid(6, 12), valid(8, 16)})
	wantX, wantY, _, err := plain.Mean()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, invalid := range []int{1, 5, 50} {
		w, _ := NewWindow(4 + invalid)

		var samples []Sample
		for i, s := range []Sample{valid(2, 4), valid(4, 8), valid(6, 12), valid(8, 16)} {
			samples = append(samples, s)
			if i == 1 {
				samples = append(samples, make([]Sample, invalid)...)
			}
		}
		w.Push(samples)

		x, y, count, err := w.Mean()
		if err != nil {
			t.Fatalf("%d invalid: unexpected error: %v", invalid, err)
		}
		if count != 4 {
			t.Errorf("%d invalid: expected 4 valid samples, got %d", invalid, count)
		}
		if x != wantX || y != wantY {
			t.Errorf("%d invalid: expected (%f, %f), got (%f, %f)", invalid, wantX, wantY, x, y)
		}
	}
}

func TestWindow_AllInvalid(t *testing.T) {
	w, _ := NewWindow(3)
	w.Push(make([]Sample, 3))

	x, y, count, err := w.Mean()
	if !errors.Is(err, ErrNoLock) {
		t.Fatalf("Expected ErrNoLock, got %v", err)
	}
	if x != 0 || y != 0 || count != 0 {
		t.Errorf("Expected zero values with ErrNoLock, got (%f, %f, %d)", x, y, count)
	}
}

func TestWindow_Reset(t *testing.T) {
	w, _ := NewWindow(2)
	w.Push([]Sample{valid(1, 1), valid(1, 1)})
	w.Reset()

	if w.Len() != 0 || w.IsFull() {
		t.Errorf("Expected an empty window after reset, got %d", w.Len())
	}
	if w.Cap() != 2 {
		t.Errorf("Reset should keep the capacity, got %d", w.Cap())
	}
}

func TestKahanSum_LargeOffsets(t *testing.T) {
	var k kahanSum
	k.add(1e16)
	for i := 0; i < 1000; i++ {
		k.add(1)
	}
	k.add(-1e16)

	if k.sum() != 1000 {
		t.Errorf("Expected compensated sum 1000, got %f", k.sum())
	}
}
