package spectrum

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const MinSize = 8

var ErrNotEnoughSamples = errors.New("not enough samples")

// Analyzer estimates the spectrum of one channel over its most recent samples
type Analyzer struct {
	sampleRate float64
	size       int
	window     []float64
}

// NewAnalyzer creates an analyzer with a Hann window of the given FFT length
func NewAnalyzer(sampleRate, size int) (*Analyzer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("spectrum: sample rate must be positive: %d", sampleRate)
	}
	if size < MinSize {
		return nil, fmt.Errorf("spectrum: fft size must be at least %d: %d given", MinSize, size)
	}

	return &Analyzer{
		sampleRate: float64(sampleRate),
		size:       size,
		window:     window.Hann(size),
	}, nil
}

// Size returns the FFT length
func (a *Analyzer) Size() int {
	return a.size
}

// Spectrum computes the magnitude spectrum of the last Size samples. The
// mean is removed first so the offset of unsigned samples does not leak
// into the low bins.
func (a *Analyzer) Spectrum(samples []uint32) (Spectrum, error) {
	if len(samples) < a.size {
		return Spectrum{}, fmt.Errorf("%w: %d of %d", ErrNotEnoughSamples, len(samples), a.size)
	}
	input := samples[len(samples)-a.size:]

	var mean float64
	for _, v := range input {
		mean += float64(v)
	}
	mean /= float64(a.size)

	windowed := make([]float64, a.size)
	for i, v := range input {
		windowed[i] = (float64(v) - mean) * a.window[i]
	}

	bins := fft.FFTReal(windowed)

	magnitudes := make([]float64, a.size/2+1)
	for i := range magnitudes {
		magnitudes[i] = cmplx.Abs(bins[i])
	}

	return Spectrum{SampleRate: a.sampleRate, Size: a.size, Magnitudes: magnitudes}, nil
}

// DominantFrequency finds the strongest component between minFreq and
// maxFreq, refined by parabolic interpolation over its neighbours. A zero
// maxFreq searches up to Nyquist.
func (a *Analyzer) DominantFrequency(samples []uint32, minFreq, maxFreq float64) (Peak, error) {
	s, err := a.Spectrum(samples)
	if err != nil {
		return Peak{}, err
	}
	return s.Peak(minFreq, maxFreq), nil
}

// Peak finds the strongest bin between minFreq and maxFreq
func (s Spectrum) Peak(minFreq, maxFreq float64) Peak {
	binWidth := s.BinWidth()

	start := max(int(minFreq/binWidth), 1) // skip DC
	end := len(s.Magnitudes) - 1
	if maxFreq > 0 {
		end = min(int(maxFreq/binWidth), end)
	}

	peak := Peak{BinWidth: binWidth}
	index := -1
	for i := start; i <= end; i++ {
		if s.Magnitudes[i] > peak.Magnitude {
			peak.Magnitude = s.Magnitudes[i]
			index = i
		}
	}
	if index < 0 {
		return peak
	}

	peak.Frequency = float64(index) * binWidth
	if index > 0 && index < len(s.Magnitudes)-1 {
		alpha := s.Magnitudes[index-1]
		beta := s.Magnitudes[index]
		gamma := s.Magnitudes[index+1]

		if denom := alpha - 2*beta + gamma; denom != 0 {
			p := 0.5 * (alpha - gamma) / denom
			peak.Frequency = (float64(index) + p) * binWidth
		}
	}

	return peak
}
