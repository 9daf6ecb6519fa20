package lockin

import "math"

// ReferencePoint is the synthesized sine/cosine pair for one sample of the
// reference channel. Valid is false for samples in a boundary region where
// the true period length is unknown.
type ReferencePoint struct {
	Sin   float64
	Cos   float64
	Valid bool
}

// ReferenceAnalysis is the output of AnalyzeReference for one burst
type ReferenceAnalysis struct {
	Points    []ReferencePoint // One entry per input sample
	Threshold uint32           // Burst average used as the edge threshold
	Periods   int              // Number of closed runs that were synthesized
	Samples   int              // Total number of samples in synthesized runs
}

// Frequency returns the mean detected reference frequency in Hz, or 0 when no
// period was closed in the burst.
func (a *ReferenceAnalysis) Frequency(sampleRate int) float64 {
	if a.Periods == 0 || a.Samples == 0 {
		return 0
	}
	return float64(sampleRate) * float64(a.Periods) / float64(a.Samples)
}

// Average returns the integer-truncating mean of the signal
func Average(signal []uint32) uint32 {
	if len(signal) == 0 {
		return 0
	}

	var sum uint64
	for _, v := range signal {
		sum += uint64(v)
	}
	return uint32(sum / uint64(len(signal)))
}

// AnalyzeReference detects the rising edges of the reference channel against
// its burst average and synthesizes, for every run of samples closed by a
// rising edge, one full sine/cosine cycle shifted by phase. The run ending at
// the first edge and the samples after the last edge are marked invalid.
func AnalyzeReference(signal []uint32, phase float64) ReferenceAnalysis {
	avg := Average(signal)

	analysis := ReferenceAnalysis{
		Points:    make([]ReferencePoint, 0, len(signal)),
		Threshold: avg,
	}
	if len(signal) == 0 {
		return analysis
	}

	ignore := true
	wasAbove := signal[0] > avg
	periodSize := 0

	for _, v := range signal {
		isAbove := v > avg
		periodSize++

		if isAbove && !wasAbove { // rising edge closes the run, edge sample included
			if ignore {
				analysis.Points = appendInvalid(analysis.Points, periodSize)
				ignore = false
			} else {
				analysis.Points = appendPeriod(analysis.Points, periodSize, phase)
				analysis.Periods++
				analysis.Samples += periodSize
			}

			periodSize = 0
		}

		wasAbove = isAbove
	}

	// trailing samples after the last edge
	analysis.Points = appendInvalid(analysis.Points, len(signal)-len(analysis.Points))

	return analysis
}

func appendInvalid(points []ReferencePoint, n int) []ReferencePoint {
	for i := 0; i < n; i++ {
		points = append(points, ReferencePoint{})
	}
	return points
}

func appendPeriod(points []ReferencePoint, size int, phase float64) []ReferencePoint {
	step := 2 * math.Pi / float64(size)
	for i := 0; i < size; i++ {
		sin, cos := math.Sincos(step*float64(i) + phase)
		points = append(points, ReferencePoint{Sin: sin, Cos: cos, Valid: true})
	}
	return points
}
