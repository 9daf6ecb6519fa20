package app

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/roman-kulish/lockin/internal/lockin"
	"github.com/roman-kulish/lockin/internal/source/wavfile"
	"github.com/roman-kulish/lockin/internal/spectrum"
)

// Levels summarizes one channel of a recording
type Levels struct {
	Min  uint32
	Max  uint32
	Mean uint32
}

// Report is the result of probing a recording as if it were a single burst
type Report struct {
	Info  wavfile.Info
	Pairs int

	Measurement Levels
	Reference   Levels

	Periods       int     // closed reference periods
	EdgeFrequency float64 // Hz, from rising edges
	ReferencePeak spectrum.Peak
	SignalPeak    spectrum.Peak // strongest component of the measurement channel

	Locked    bool
	Result    lockin.Result
	AutoPhase float64

	Monitor []lockin.MonitorPoint
}

func levels(signal []uint32) Levels {
	if len(signal) == 0 {
		return Levels{}
	}

	l := Levels{Min: math.MaxUint32, Mean: lockin.Average(signal)}
	for _, v := range signal {
		l.Min = min(l.Min, v)
		l.Max = max(l.Max, v)
	}
	return l
}

// fftSize returns the largest power of two not above limit or n
func fftSize(n, limit int) int {
	size := min(n, limit)
	if size < spectrum.MinSize {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// Probe runs the reference analysis and demodulation over the whole recording
func Probe(path string, config *Config) (*Report, error) {
	pairs, info, err := wavfile.ReadAll(path)
	if err != nil {
		return nil, err
	}

	measurement := make([]uint32, len(pairs))
	reference := make([]uint32, len(pairs))
	for i, p := range pairs {
		measurement[i] = p.Measurement
		reference[i] = p.Reference
	}

	r := Report{
		Info:        info,
		Pairs:       len(pairs),
		Measurement: levels(measurement),
		Reference:   levels(reference),
	}

	analysis := lockin.AnalyzeReference(reference, config.Phase)
	r.Periods = analysis.Periods
	r.EdgeFrequency = analysis.Frequency(info.SampleRate)

	if size := fftSize(len(pairs), config.FFTSize); size > 0 {
		analyzer, err := spectrum.NewAnalyzer(info.SampleRate, size)
		if err != nil {
			return nil, fmt.Errorf("creating spectrum analyzer: %w", err)
		}
		if r.ReferencePeak, err = analyzer.DominantFrequency(reference, config.MinFrequency, config.MaxFrequency); err != nil {
			return nil, fmt.Errorf("reference spectrum: %w", err)
		}
		if r.SignalPeak, err = analyzer.DominantFrequency(measurement, config.MinFrequency, config.MaxFrequency); err != nil {
			return nil, fmt.Errorf("measurement spectrum: %w", err)
		}
	}

	if len(pairs) > 0 {
		window, err := lockin.NewWindow(len(pairs))
		if err != nil {
			return nil, err
		}
		window.Push(lockin.Demodulate(measurement, analysis.Points))

		x, y, count, err := window.Mean()
		switch {
		case errors.Is(err, lockin.ErrNoLock):
		case err != nil:
			return nil, fmt.Errorf("integrating: %w", err)
		default:
			r.Locked = true
			r.Result = lockin.Result{Time: info.Duration.Seconds() / 2, X: x, Y: y, Samples: count}
			r.AutoPhase = config.Phase + r.Result.Theta()
		}
	}

	capacity := int(math.Round(float64(info.SampleRate) * config.MonitorTime.Seconds()))
	r.Monitor = lockin.BuildMonitor(measurement, analysis.Points, capacity)

	return &r, nil
}
