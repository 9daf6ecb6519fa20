package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gen2brain/malgo"

	"github.com/roman-kulish/lockin/internal/lockin"
)

const (
	DefaultSampleRate = 48_000

	channels   = 2
	sampleSize = 4 // bytes per channel sample
)

var ErrNotStarted = errors.New("capture is not started")

// Config selects the capture device
type Config struct {
	Device     string `yaml:"device" json:"device"` // Case-insensitive substring of the device name, empty for the default device
	SampleRate int    `yaml:"sampleRate" json:"sampleRate"`
}

func (c *Config) Validate() error {
	if c.SampleRate < 0 {
		return fmt.Errorf("capture.Config: sample rate must not be negative: %d", c.SampleRate)
	}
	return nil
}

// WithLogger sets the logger for the capture source
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("source", "capture"))
	}
}

// Source records two channels from an audio input through miniaudio. The
// device delivers signed 32-bit frames, which are written to the lock-in as
// unsigned samples with the same byte order.
type Source struct {
	config Config

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	logger *slog.Logger
}

// New creates a capture source. The audio context is created on Start.
func New(config Config, options ...func(s *Source)) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.SampleRate == 0 {
		config.SampleRate = DefaultSampleRate
	}

	s := Source{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

func (s *Source) Format() lockin.Format {
	return lockin.DefaultFormat(s.config.SampleRate)
}

func (s *Source) Start(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return fmt.Errorf("capture is already running")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		s.logger.Debug(strings.TrimSpace(message))
	})
	if err != nil {
		return fmt.Errorf("initializing audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS32
	deviceConfig.Capture.Channels = channels
	deviceConfig.SampleRate = uint32(s.config.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if s.config.Device != "" {
		info, err := findDevice(ctx, s.config.Device)
		if err != nil {
			freeContext(ctx)
			return err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
		s.logger.Info("audio device selected", slog.String("name", info.Name()))
	}

	var frame []byte
	onRecvFrames := func(_, input []byte, frameCount uint32) {
		n := int(frameCount) * channels * sampleSize
		if n == 0 || len(input) < n {
			return
		}
		if cap(frame) < n {
			frame = make([]byte, n)
		}
		frame = frame[:n]

		toUnsigned(frame, input[:n])
		if _, err := w.Write(frame); err != nil {
			s.logger.Error(fmt.Sprintf("error writing samples: %s", err.Error()))
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		freeContext(ctx)
		return fmt.Errorf("initializing audio device: %w", err)
	}

	if rate := int(device.SampleRate()); rate != s.config.SampleRate {
		s.logger.Warn("device sample rate differs, samples are resampled",
			slog.String("requested", humanize.SI(float64(s.config.SampleRate), "Hz")),
			slog.String("device", humanize.SI(float64(rate), "Hz")))
	}

	if err = device.Start(); err != nil {
		device.Uninit()
		freeContext(ctx)
		return fmt.Errorf("starting audio device: %w", err)
	}

	s.ctx = ctx
	s.device = device

	s.logger.Info("starting audio capture...", slog.String("sampleRate", humanize.SI(float64(s.config.SampleRate), "Hz")))

	return nil
}

func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return ErrNotStarted
	}

	err := s.device.Stop()
	s.device.Uninit()
	s.device = nil

	freeContext(s.ctx)
	s.ctx = nil

	s.logger.Info("audio capture stopped")

	if err != nil {
		return fmt.Errorf("stopping audio device: %w", err)
	}
	return nil
}

// Devices lists the names of the available capture devices
func Devices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	defer freeContext(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("listing capture devices: %w", err)
	}

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

func findDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("listing capture devices: %w", err)
	}

	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(name)) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("capture device '%s' not found", name)
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

// toUnsigned converts little-endian signed 32-bit samples to offset binary by
// flipping the sign bit of every sample.
func toUnsigned(dst, src []byte) {
	copy(dst, src)
	for i := sampleSize - 1; i < len(dst); i += sampleSize {
		dst[i] ^= 0x80
	}
}
