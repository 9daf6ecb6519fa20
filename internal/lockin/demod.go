package lockin

// SamplePair is one interleaved frame of the input stream
type SamplePair struct {
	Measurement uint32
	Reference   uint32
}

// Sample is one demodulated measurement sample. Valid is false for samples
// that fall in a reference boundary region; X and Y are zero in that case.
type Sample struct {
	X     float64 // in-phase, sin * measurement
	Y     float64 // quadrature, cos * measurement
	Valid bool
}

// Demodulate multiplies every measurement sample by its synthesized reference
// pair. Both slices must have the same length; extra entries of the longer one
// are ignored.
func Demodulate(measurement []uint32, reference []ReferencePoint) []Sample {
	n := min(len(measurement), len(reference))

	out := make([]Sample, n)
	for i := 0; i < n; i++ {
		ref := reference[i]
		if !ref.Valid {
			continue
		}

		m := float64(measurement[i])
		out[i] = Sample{
			X:     ref.Sin * m,
			Y:     ref.Cos * m,
			Valid: true,
		}
	}

	return out
}

// splitChannels separates a burst into its measurement and reference channels
func splitChannels(pairs []SamplePair) (measurement, reference []uint32) {
	measurement = make([]uint32, len(pairs))
	reference = make([]uint32, len(pairs))
	for i, p := range pairs {
		measurement[i] = p.Measurement
		reference[i] = p.Reference
	}
	return
}
