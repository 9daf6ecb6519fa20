package lockin

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	DefaultOutputPeriod    = 500 * time.Millisecond
	DefaultIntegrationTime = 3 * time.Second
	DefaultMonitorTime     = 20 * time.Millisecond // ten periods of a 500Hz chopper
)

// Source is the sample-delivery collaborator of the lock-in. Once started it
// writes interleaved (measurement, reference) frames in the negotiated Format
// to w, from any goroutine, until stopped.
type Source interface {
	Format() Format
	Start(w io.Writer) error
	Stop() error
}

// Config holds the settings of a lock-in session
type Config struct {
	OutputPeriod    time.Duration `json:"outputPeriod"`    // Cadence of Notify calls and of the time cursor
	IntegrationTime time.Duration `json:"integrationTime"` // Length of the averaging window
	MonitorTime     time.Duration `json:"monitorTime"`     // Length of the monitor snapshot
	Phase           float64       `json:"phase"`           // Offset added to every synthesized angle, radians
}

// DefaultConfig returns the settings used by New
func DefaultConfig() Config {
	return Config{
		OutputPeriod:    DefaultOutputPeriod,
		IntegrationTime: DefaultIntegrationTime,
		MonitorTime:     DefaultMonitorTime,
	}
}

// Result is one output of the lock-in
type Result struct {
	// Time is the centre of the integration window in seconds. It advances by
	// one output period on every Notify cycle of the session, including cycles
	// that return ErrNoData, ErrPriming or ErrNoLock.
	Time    float64 `json:"time"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Samples int     `json:"samples"` // Valid samples averaged
}

// R returns the magnitude of the result
func (r Result) R() float64 {
	return math.Hypot(r.X, r.Y)
}

// Theta returns the phase of the result in radians
func (r Result) Theta() float64 {
	return math.Atan2(r.Y, r.X)
}

// Stats counts the cycles of the current session
type Stats struct {
	Cycles       uint64 `json:"cycles"`
	Results      uint64 `json:"results"`
	NoData       uint64 `json:"noData"`
	NoLock       uint64 `json:"noLock"`
	MonitorSkips uint64 `json:"monitorSkips"`
	Samples      uint64 `json:"samples"`
}

// WithLogger sets the logger for the lock-in
func WithLogger(logger *slog.Logger) func(l *Lockin) {
	return func(l *Lockin) {
		l.logger = logger.With(slog.String("component", "lockin"))
	}
}

// Lockin is a software lock-in amplifier. It demodulates the first channel of
// a Source against the reference carried on the second channel.
//
// Notify drives processing and must be called from a single goroutine;
// MonitorData may be called from any goroutine.
type Lockin struct {
	mu     sync.Mutex
	config Config

	source Source
	format Format
	buffer *sampleBuffer
	window *Window

	sampleIntegration int
	sampleMonitor     int

	timeValue float64
	x, y      float64
	refFreq   float64
	stats     Stats

	monitor *Monitor
	logger  *slog.Logger
}

// New creates an inactive lock-in with the default configuration
func New(options ...func(l *Lockin)) *Lockin {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	l := Lockin{
		config:  DefaultConfig(),
		monitor: NewMonitor(),
		logger:  logger,
	}

	for _, option := range options {
		option(&l)
	}

	return &l
}

// Config returns the current configuration
func (l *Lockin) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.config
}

// SetOutputPeriod sets the cadence at which results are produced
func (l *Lockin) SetOutputPeriod(d time.Duration) error {
	return l.update("output period", func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("%w: output period must be positive: %s", ErrInvalidConfig, d)
		}
		c.OutputPeriod = d
		return nil
	})
}

// SetIntegrationTime sets the length of the averaging window
func (l *Lockin) SetIntegrationTime(d time.Duration) error {
	return l.update("integration time", func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("%w: integration time must be positive: %s", ErrInvalidConfig, d)
		}
		c.IntegrationTime = d
		return nil
	})
}

// SetMonitorTime sets the length of the monitor snapshot
func (l *Lockin) SetMonitorTime(d time.Duration) error {
	return l.update("monitor time", func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("%w: monitor time must be positive: %s", ErrInvalidConfig, d)
		}
		c.MonitorTime = d
		return nil
	})
}

// SetPhase sets the phase offset, in radians, added to the synthesized reference
func (l *Lockin) SetPhase(phase float64) error {
	return l.update("phase", func(c *Config) error {
		if math.IsNaN(phase) || math.IsInf(phase, 0) {
			return fmt.Errorf("%w: phase must be finite: %f", ErrInvalidConfig, phase)
		}
		c.Phase = phase
		return nil
	})
}

// SetConfig applies every field of c, leaving the configuration untouched if
// any field is rejected.
func (l *Lockin) SetConfig(c Config) error {
	return l.update("config", func(cfg *Config) error {
		switch {
		case c.OutputPeriod <= 0:
			return fmt.Errorf("%w: output period must be positive: %s", ErrInvalidConfig, c.OutputPeriod)
		case c.IntegrationTime <= 0:
			return fmt.Errorf("%w: integration time must be positive: %s", ErrInvalidConfig, c.IntegrationTime)
		case c.MonitorTime <= 0:
			return fmt.Errorf("%w: monitor time must be positive: %s", ErrInvalidConfig, c.MonitorTime)
		case math.IsNaN(c.Phase) || math.IsInf(c.Phase, 0):
			return fmt.Errorf("%w: phase must be finite: %f", ErrInvalidConfig, c.Phase)
		}
		*cfg = c
		return nil
	})
}

func (l *Lockin) update(setting string, apply func(c *Config) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.source != nil {
		l.logger.Warn("lockin is running, configuration rejected", slog.String("setting", setting))
		return fmt.Errorf("setting %s: %w", setting, ErrAlreadyActive)
	}

	return apply(&l.config)
}

// Start validates the format of src, derives the window sizes from its sample
// rate and starts it. On error the lock-in stays inactive.
func (l *Lockin) Start(src Source) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.source != nil {
		l.logger.Warn("lockin is already running, stop it before start")
		return ErrAlreadyActive
	}

	format := src.Format()
	if !format.IsValid() {
		return newFormatError(format, "format not valid")
	}
	if !IsFormatSupported(format) {
		return newFormatError(format, "want 2 channels of unsigned 32-bit pcm")
	}

	rate := float64(format.SampleRate)
	sampleIntegration := int(math.Round(rate * l.config.IntegrationTime.Seconds()))
	sampleMonitor := int(math.Round(rate * l.config.MonitorTime.Seconds()))

	window, err := NewWindow(sampleIntegration)
	if err != nil {
		return fmt.Errorf("integration time %s too short for %s: %w",
			l.config.IntegrationTime, humanize.SI(rate, "Hz"), err)
	}

	buffer := newSampleBuffer()
	if err = src.Start(buffer); err != nil {
		return fmt.Errorf("starting source: %w", err)
	}

	l.source = src
	l.format = format
	l.buffer = buffer
	l.window = window
	l.sampleIntegration = sampleIntegration
	l.sampleMonitor = sampleMonitor

	// centre of the integration window
	l.timeValue = -l.config.IntegrationTime.Seconds() / 2
	l.x, l.y, l.refFreq = 0, 0, 0
	l.stats = Stats{}
	l.monitor.Clear()

	l.logger.Info("lockin started",
		slog.String("format", format.String()),
		slog.String("sampleRate", humanize.SI(rate, "Hz")),
		slog.String("integrationSamples", humanize.Comma(int64(sampleIntegration))),
		slog.Int("monitorSamples", sampleMonitor))

	return nil
}

// Stop stops the source. Bursts already delivered but not yet processed are dropped.
func (l *Lockin) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.source == nil {
		l.logger.Warn("lockin is not running")
		return ErrNotActive
	}

	err := l.source.Stop()

	l.source = nil
	l.buffer = nil
	l.window = nil

	l.logger.Info("lockin stopped",
		slog.Uint64("cycles", l.stats.Cycles),
		slog.Uint64("results", l.stats.Results),
		slog.Uint64("noLock", l.stats.NoLock))

	if err != nil {
		return fmt.Errorf("stopping source: %w", err)
	}
	return nil
}

// IsActive returns true while a session is running
func (l *Lockin) IsActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.source != nil
}

// Notify runs one processing cycle over every complete pair delivered since
// the previous cycle. It returns ErrNoData, ErrPriming or ErrNoLock when no
// result is produced; Result.Time is set in all three cases.
func (l *Lockin) Notify() (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.source == nil {
		return Result{}, ErrNotActive
	}

	l.stats.Cycles++
	l.timeValue = -l.config.IntegrationTime.Seconds()/2 + float64(l.stats.Cycles)*l.config.OutputPeriod.Seconds()

	pairs := l.buffer.drain(l.format.ByteOrder)
	if len(pairs) == 0 {
		l.stats.NoData++
		l.logger.Debug("nothing new", slog.Float64("time", l.timeValue))
		return Result{Time: l.timeValue}, ErrNoData
	}

	result, err := l.process(pairs)
	switch {
	case errors.Is(err, ErrNoLock):
		l.stats.NoLock++
		l.logger.Warn("no valid sample in the integration window", slog.Float64("time", l.timeValue))
	case err == nil:
		l.stats.Results++
	}

	return result, err
}

// process runs analysis, demodulation, monitor rebuild and integration over one burst
func (l *Lockin) process(pairs []SamplePair) (Result, error) {
	l.stats.Samples += uint64(len(pairs))

	measurement, reference := splitChannels(pairs)

	analysis := AnalyzeReference(reference, l.config.Phase)
	l.refFreq = analysis.Frequency(l.format.SampleRate)

	samples := Demodulate(measurement, analysis.Points)

	if !l.monitor.TryStore(BuildMonitor(measurement, analysis.Points, l.sampleMonitor)) {
		l.stats.MonitorSkips++
		l.logger.Warn("monitor is locked by a reader, snapshot skipped")
	}

	l.window.Push(samples)

	x, y, count, err := l.window.Mean()
	if err != nil {
		return Result{Time: l.timeValue}, err
	}

	l.x, l.y = x, y
	return Result{Time: l.timeValue, X: x, Y: y, Samples: count}, nil
}

// AutoPhase returns the phase that would null the quadrature component:
// the configured phase plus the phase of the last result.
func (l *Lockin) AutoPhase() (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.source == nil {
		l.logger.Warn("lockin is not running")
		return 0, ErrNotActive
	}

	return l.config.Phase + math.Atan2(l.y, l.x), nil
}

// MonitorData returns the latest monitor snapshot. It never observes a
// partially rebuilt snapshot.
func (l *Lockin) MonitorData() []MonitorPoint {
	return l.monitor.Snapshot()
}

// ReferenceFrequency returns the reference frequency detected in the last burst, in Hz
func (l *Lockin) ReferenceFrequency() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.refFreq
}

// Format returns the format of the running session
func (l *Lockin) Format() (Format, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.source == nil {
		return Format{}, ErrNotActive
	}
	return l.format, nil
}

// Stats returns the counters of the current or last session
func (l *Lockin) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.stats
}
