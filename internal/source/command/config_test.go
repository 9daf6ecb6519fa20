package command

import (
	"slices"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/lockin/internal/lockin"
)

func TestConfig_Args(t *testing.T) {
	testCases := []struct {
		name     string
		config   Config
		expected []string
	}{
		{
			name:     "defaults",
			config:   Config{},
			expected: []string{"-q", "-t", "raw", "-c", "2", "-f", "U32_LE", "-r", "48000", "-"},
		},
		{
			name: "all options",
			config: Config{
				Device:     "hw:1,0",
				SampleRate: 96_000,
				ByteOrder:  ByteOrderBig,
				BufferTime: NewTimeDuration(50 * time.Millisecond),
				Duration:   NewTimeDuration(10*time.Minute + 500*time.Millisecond),
			},
			expected: []string{"-q", "-t", "raw", "-c", "2", "-f", "U32_BE", "-r", "96000",
				"-D", "hw:1,0", "-B", "50000", "-d", "600", "-"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args, err := tc.config.Args()
			if err != nil {
				t.Fatalf("Args failed: %v", err)
			}
			if !slices.Equal(args, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, args)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		config Config
	}{
		{"sample rate too low", Config{SampleRate: 100}},
		{"sample rate too high", Config{SampleRate: 1_000_000}},
		{"byte order", Config{ByteOrder: "middle"}},
		{"negative buffer time", Config{BufferTime: NewTimeDuration(-time.Second)}},
		{"sub-second duration", Config{Duration: NewTimeDuration(time.Millisecond)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.config.Validate(); err == nil {
				t.Error("Expected a validation error")
			}
			if _, err := tc.config.Args(); err == nil {
				t.Error("Args should refuse an invalid config")
			}
		})
	}
}

func TestConfig_Format(t *testing.T) {
	c := Config{SampleRate: 44_100, ByteOrder: ByteOrderBig}
	f := c.Format()

	if f.SampleRate != 44_100 || f.ByteOrder != lockin.BigEndian {
		t.Errorf("Unexpected format %s", f)
	}
	if !lockin.IsFormatSupported(f) {
		t.Errorf("Recorder format should be supported by the lockin: %s", f)
	}
}

func TestConfig_String(t *testing.T) {
	c := Config{Runtime: "/usr/bin/arecord"}
	if s := c.String(); !strings.HasPrefix(s, "/usr/bin/arecord -q") {
		t.Errorf("Unexpected command line %q", s)
	}
}

func TestConfig_UnmarshalYAML(t *testing.T) {
	input := `
device: hw:0
sampleRate: 96000
byteOrder: big
bufferTime: 20ms
duration: 1h
`
	var c Config
	if err := yaml.Unmarshal([]byte(input), &c); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if c.BufferTime.Duration() != 20*time.Millisecond || c.Duration.Duration() != time.Hour {
		t.Errorf("Unexpected durations %s, %s", c.BufferTime, c.Duration)
	}
	if c.ByteOrder != ByteOrderBig || c.SampleRate != 96_000 || c.Device != "hw:0" {
		t.Errorf("Unexpected config %+v", c)
	}

	if err := yaml.Unmarshal([]byte("bufferTime: soon"), &c); err == nil {
		t.Error("Expected an error for an invalid duration")
	}
}
