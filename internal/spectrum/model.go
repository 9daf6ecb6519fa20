package spectrum

// Peak is the strongest component found in a frequency range
type Peak struct {
	Frequency float64 `json:"frequency"` // Interpolated frequency in Hz
	Magnitude float64 `json:"magnitude"` // Magnitude of the strongest bin
	BinWidth  float64 `json:"binWidth"`  // Frequency resolution in Hz
}

// Spectrum holds the one-sided magnitude spectrum of a block of samples
type Spectrum struct {
	SampleRate float64   `json:"sampleRate"`
	Size       int       `json:"size"`       // FFT length
	Magnitudes []float64 `json:"magnitudes"` // Bins 0 to Size/2
}

// BinWidth returns the frequency resolution in Hz
func (s Spectrum) BinWidth() float64 {
	return s.SampleRate / float64(s.Size)
}

// Frequency returns the centre frequency of bin i
func (s Spectrum) Frequency(i int) float64 {
	return float64(i) * s.BinWidth()
}
