package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/lockin/internal/lockin"
	"github.com/roman-kulish/lockin/internal/plot"
	"github.com/roman-kulish/lockin/internal/spectrum"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"

	defaultFFTSize = 1 << 16
)

type ImageFormat string

type Config struct {
	WavPath      string
	DBPath       string
	OutputFile   string
	Format       ImageFormat
	Theme        plot.ColorTheme
	Phase        float64
	MonitorTime  time.Duration
	MinFrequency float64
	MaxFrequency float64
	FFTSize      int
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

var validThemes = map[plot.ColorTheme]struct{}{
	plot.ClassicTheme:   {},
	plot.GrayscaleTheme: {},
	plot.JungleTheme:    {},
	plot.ThermalTheme:   {},
	plot.MarineTheme:    {},
}

func NewConfig() *Config {
	return &Config{
		Format:      ImagePNG,
		Theme:       plot.ThermalTheme,
		MonitorTime: lockin.DefaultMonitorTime,
		FFTSize:     defaultFFTSize,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, theme string
	flag.StringVar(&c.WavPath, "wav", "", "Path to a two channel WAV recording to analyse")
	flag.StringVar(&c.DBPath, "db", "", "Path to the session journal to list")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the monitor image, without extension")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&theme, "theme", string(plot.ThermalTheme), "Monitor color theme. [classic, grayscale, jungle, thermal, marine]")
	flag.Float64Var(&c.Phase, "phase", 0, "Reference phase offset in radians")
	flag.DurationVar(&c.MonitorTime, "monitor-time", c.MonitorTime, "Length of the monitor plot")
	flag.Float64Var(&c.MinFrequency, "min-freq", 0, "Lower bound of the chopper frequency search, Hz")
	flag.Float64Var(&c.MaxFrequency, "max-freq", 0, "Upper bound of the chopper frequency search, Hz (0 = Nyquist)")
	flag.IntVar(&c.FFTSize, "fft", c.FFTSize, "Largest FFT length")
	flag.Parse()

	c.Format = ImageFormat(strings.ToLower(imageFormat))
	c.Theme = plot.ColorTheme(strings.ToLower(theme))

	if err := c.Validate(); err != nil {
		flag.Usage()
		return nil, err
	}

	if c.OutputFile != "" {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.WavPath == "" && c.DBPath == "":
		return errors.New("wav or db path is required")
	case c.OutputFile != "" && c.WavPath == "":
		return errors.New("monitor image requires a wav recording")
	case c.MonitorTime <= 0:
		return fmt.Errorf("monitor time must be positive: %s", c.MonitorTime)
	case c.MinFrequency < 0 || c.MaxFrequency < 0:
		return errors.New("frequency bounds must not be negative")
	case c.MaxFrequency > 0 && c.MaxFrequency <= c.MinFrequency:
		return fmt.Errorf("invalid frequency range: %g-%g Hz", c.MinFrequency, c.MaxFrequency)
	case c.FFTSize < spectrum.MinSize:
		return fmt.Errorf("fft size too small: %d", c.FFTSize)
	}

	if _, ok := validImageFormats[c.Format]; !ok {
		return fmt.Errorf("invalid image format: %s", c.Format)
	}
	if _, ok := validThemes[c.Theme]; !ok {
		return fmt.Errorf("invalid theme: %s", c.Theme)
	}
	return nil
}
