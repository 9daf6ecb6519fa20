package command

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/lockin/internal/lockin"
)

const (
	// DefaultRuntime is the ALSA recorder shipped with alsa-utils
	DefaultRuntime    = "arecord"
	DefaultSampleRate = 48_000

	SampleRateMin = 8_000
	SampleRateMax = 384_000

	// ByteOrderLittle is the default byte order
	ByteOrderLittle ByteOrder = "little"
	ByteOrderBig    ByteOrder = "big"
)

var validByteOrders = map[ByteOrder]lockin.ByteOrder{
	ByteOrderLittle: lockin.LittleEndian,
	ByteOrderBig:    lockin.BigEndian,
}

type ByteOrder string

func (b ByteOrder) String() string {
	return string(b)
}

func (b ByteOrder) sampleFormat() string {
	if b == ByteOrderBig {
		return "U32_BE"
	}
	return "U32_LE"
}

type TimeDuration time.Duration

func NewTimeDuration(d time.Duration) TimeDuration {
	return TimeDuration(d)
}

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("command.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *TimeDuration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("command.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d TimeDuration) Validate() error {
	if time.Duration(d) < 0 {
		return fmt.Errorf("command.TimeDuration: must not be negative: %s", d)
	}
	return nil
}

func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// Usage examples from man page:
// https://manpages.debian.org/bookworm/alsa-utils/arecord.1.en.html

/*
Example 1: Default card
    config := command.Config{}
    // Executes: arecord -q -t raw -c 2 -f U32_LE -r 48000 -

Example 2: USB interface, 10 minute run
    config := command.Config{
        Device:     "hw:1,0",
        SampleRate: 96_000,
        BufferTime: command.NewTimeDuration(50 * time.Millisecond),
        Duration:   command.NewTimeDuration(10 * time.Minute),
    }
    // Executes: arecord -q -t raw -c 2 -f U32_LE -r 96000 -D hw:1,0 -B 50000 -d 600 -
*/

// Config is the `arecord` tool configuration
type Config struct {
	Runtime    string       `yaml:"runtime" json:"runtime"`       // recorder binary (default: arecord)
	Device     string       `yaml:"device" json:"device"`         // -D pcm device name (default: ALSA default)
	SampleRate int          `yaml:"sampleRate" json:"sampleRate"` // -r rate in Hz (default: 48000)
	ByteOrder  ByteOrder    `yaml:"byteOrder" json:"byteOrder"`   // -f U32_LE or U32_BE (default: little)
	BufferTime TimeDuration `yaml:"bufferTime" json:"bufferTime"` // -B buffer duration, rounded to microseconds
	Duration   TimeDuration `yaml:"duration" json:"duration"`     // -d stop after, rounded down to seconds (default: until stopped)
}

func (c *Config) Validate() error {
	if c.SampleRate != 0 && (c.SampleRate < SampleRateMin || c.SampleRate > SampleRateMax) {
		return fmt.Errorf("command.Config: invalid sample rate: %d, must be between %d and %d Hz", c.SampleRate, SampleRateMin, SampleRateMax)
	}

	if c.ByteOrder != "" {
		if _, ok := validByteOrders[c.ByteOrder]; !ok {
			return fmt.Errorf("command.Config: invalid byte order: %s", c.ByteOrder)
		}
	}

	if err := c.BufferTime.Validate(); err != nil {
		return fmt.Errorf("command.Config: invalid buffer time: %w", err)
	}
	if err := c.Duration.Validate(); err != nil {
		return fmt.Errorf("command.Config: invalid duration: %w", err)
	}
	if c.Duration > 0 && c.Duration.Duration() < time.Second {
		return fmt.Errorf("command.Config: duration must be at least 1 second: %s given", c.Duration)
	}

	return nil
}

// Format returns the format `arecord` is asked to produce
func (c *Config) Format() lockin.Format {
	rate := c.SampleRate
	if rate == 0 {
		rate = DefaultSampleRate
	}

	format := lockin.DefaultFormat(rate)
	if order, ok := validByteOrders[c.ByteOrder]; ok {
		format.ByteOrder = order
	}
	return format
}

func (c *Config) runtime() string {
	if c.Runtime == "" {
		return DefaultRuntime
	}
	return c.Runtime
}

// Args returns the command line arguments for `arecord`
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	format := c.Format()
	args := []string{
		"-q",
		"-t", "raw",
		"-c", strconv.Itoa(format.Channels),
		"-f", c.ByteOrder.sampleFormat(),
		"-r", strconv.Itoa(format.SampleRate),
	}

	if c.Device != "" {
		args = append(args, "-D", c.Device)
	}

	if c.BufferTime > 0 {
		args = append(args, "-B", strconv.FormatInt(c.BufferTime.Duration().Microseconds(), 10))
	}

	if c.Duration > 0 {
		args = append(args, "-d", strconv.Itoa(int(c.Duration.Duration()/time.Second)))
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

func (c *Config) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("command.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", c.runtime(), strings.Join(args, " "))
}
