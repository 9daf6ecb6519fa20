package wavfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/roman-kulish/lockin/internal/lockin"
)

const (
	DefaultChunkPeriod = 50 * time.Millisecond

	// wFormatTag of uncompressed PCM
	formatPCM = 1
)

var (
	ErrNotStarted  = errors.New("replay is not started")
	ErrInvalidFile = errors.New("invalid wav file")
)

// Config selects the recording to replay
type Config struct {
	Path        string        `yaml:"path" json:"path"`
	ChunkPeriod time.Duration `yaml:"-" json:"-"`             // Audio written per write, paced in real time
	Loop        bool          `yaml:"loop" json:"loop"`       // Rewind at the end of the file
	Unpaced     bool          `yaml:"unpaced" json:"unpaced"` // Write as fast as possible
}

// Info describes a recording
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// WithLogger sets the logger for the replay source
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("source", "wav"), slog.String("path", s.config.Path))
	}
}

// Source replays the first two channels of a PCM WAV recording as
// (measurement, reference) pairs.
type Source struct {
	config Config
	info   Info

	mu   sync.Mutex
	stop chan struct{}
	done chan error

	logger *slog.Logger
}

// New reads the header of the recording and checks it can be replayed
func New(config Config, options ...func(s *Source)) (*Source, error) {
	if config.ChunkPeriod <= 0 {
		config.ChunkPeriod = DefaultChunkPeriod
	}

	info, err := ReadInfo(config.Path)
	if err != nil {
		return nil, err
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("%s: %w: no samples", config.Path, ErrInvalidFile)
	}

	s := Source{
		config: config,
		info:   info,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// ReadInfo reads the header of a WAV file
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	d, err := openDecoder(f)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}

	duration, err := d.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("%s: reading duration: %w", path, err)
	}

	return Info{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Duration:   duration,
	}, nil
}

func openDecoder(r io.ReadSeeker) (*wav.Decoder, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidFile
	}

	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	switch {
	case d.WavAudioFormat != formatPCM:
		return nil, fmt.Errorf("%w: not pcm: format %d", ErrInvalidFile, d.WavAudioFormat)
	case d.NumChans < 2:
		return nil, fmt.Errorf("%w: need measurement and reference channels, got %d", ErrInvalidFile, d.NumChans)
	case d.BitDepth != 8 && d.BitDepth != 16 && d.BitDepth != 24 && d.BitDepth != 32:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidFile, d.BitDepth)
	}

	return d, nil
}

// Info returns the header of the recording
func (s *Source) Info() Info {
	return s.info
}

func (s *Source) Format() lockin.Format {
	return lockin.DefaultFormat(s.info.SampleRate)
}

func (s *Source) Start(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return fmt.Errorf("replay is already running")
	}

	f, err := os.Open(s.config.Path)
	if err != nil {
		return fmt.Errorf("opening recording: %w", err)
	}

	d, err := openDecoder(f)
	if err != nil {
		_ = f.Close()
		return err
	}

	s.stop = make(chan struct{})
	s.done = make(chan error, 1)

	go s.replay(f, d, w, s.stop, s.done)

	return nil
}

func (s *Source) replay(f *os.File, d *wav.Decoder, w io.Writer, stop <-chan struct{}, done chan<- error) {
	defer close(done)
	defer f.Close()

	frames := int(float64(s.info.SampleRate) * s.config.ChunkPeriod.Seconds())
	if frames < 1 {
		frames = 1
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: s.info.Channels, SampleRate: s.info.SampleRate},
		Data:   make([]int, frames*s.info.Channels),
	}
	out := make([]byte, 0, frames*s.Format().FrameSize())

	var ticker *time.Ticker
	if !s.config.Unpaced {
		ticker = time.NewTicker(s.config.ChunkPeriod)
		defer ticker.Stop()
	}

	s.logger.Info("starting replay...",
		slog.String("sampleRate", humanize.SI(float64(s.info.SampleRate), "Hz")),
		slog.Duration("duration", s.info.Duration),
		slog.Bool("loop", s.config.Loop))

	var written uint64
	for {
		n, err := d.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			done <- fmt.Errorf("decoding samples: %w", err)
			return
		}

		if n == 0 {
			if !s.config.Loop {
				s.logger.Info("replay finished", slog.String("written", humanize.Bytes(written)))
				done <- nil
				return
			}
			if err = d.Rewind(); err != nil {
				done <- fmt.Errorf("rewinding recording: %w", err)
				return
			}
			continue
		}

		out = appendPairs(out[:0], buf.Data[:n], s.info.Channels, s.info.BitDepth)
		if _, err = w.Write(out); err != nil {
			done <- fmt.Errorf("writing samples: %w", err)
			return
		}
		written += uint64(len(out))

		if ticker == nil {
			select {
			case <-stop:
				done <- nil
				return
			default:
			}
			continue
		}

		select {
		case <-stop:
			done <- nil
			return
		case <-ticker.C:
		}
	}
}

// Done returns a channel that receives the replay error, if any, and is
// closed when the replay ends.
func (s *Source) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.done
}

func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return ErrNotStarted
	}

	close(s.stop)
	s.stop = nil

	return <-s.done // nil if Done already consumed the replay error
}

// ReadAll decodes the whole recording into pairs
func ReadAll(path string) ([]lockin.SamplePair, Info, error) {
	info, err := ReadInfo(path)
	if err != nil {
		return nil, Info{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	d, err := openDecoder(f)
	if err != nil {
		return nil, Info{}, err
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, Info{}, fmt.Errorf("decoding samples: %w", err)
	}

	pairs := make([]lockin.SamplePair, 0, len(buf.Data)/info.Channels)
	for i := 0; i+1 < len(buf.Data); i += info.Channels {
		pairs = append(pairs, lockin.SamplePair{
			Measurement: toUnsigned(buf.Data[i], info.BitDepth),
			Reference:   toUnsigned(buf.Data[i+1], info.BitDepth),
		})
	}

	return pairs, info, nil
}

// appendPairs appends the first two channels of every frame as little-endian
// unsigned 32-bit samples.
func appendPairs(out []byte, data []int, channels, bitDepth int) []byte {
	for i := 0; i+channels <= len(data); i += channels {
		out = binary.LittleEndian.AppendUint32(out, toUnsigned(data[i], bitDepth))
		out = binary.LittleEndian.AppendUint32(out, toUnsigned(data[i+1], bitDepth))
	}
	return out
}

// toUnsigned scales a WAV sample to the full unsigned 32-bit range. 8-bit WAV
// is already offset binary, wider samples are signed.
func toUnsigned(v, bitDepth int) uint32 {
	if bitDepth == 8 {
		return uint32(uint8(v)) << 24
	}
	return uint32(int32(v<<(32-bitDepth))) ^ 0x80000000
}
