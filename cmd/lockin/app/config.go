package app

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/lockin/internal/lockin"
	"github.com/roman-kulish/lockin/internal/server"
	"github.com/roman-kulish/lockin/internal/sink"
	"github.com/roman-kulish/lockin/internal/source/capture"
	"github.com/roman-kulish/lockin/internal/source/command"
	"github.com/roman-kulish/lockin/internal/source/wavfile"
)

const (
	SourceCapture SourceType = "capture"
	SourceCommand SourceType = "command"
	SourceWav     SourceType = "wav"

	defaultRefreshInterval = time.Second
)

type SourceType string

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Lockin   LockinConfig  `yaml:"lockin"`
	Source   SourceConfig  `yaml:"source"`
	Sinks    SinksConfig   `yaml:"sinks"`
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel slog.Level `yaml:"logLevel"`
}

// LockinConfig represents the lock-in settings. Omitted durations take the
// lock-in defaults.
type LockinConfig struct {
	OutputPeriod    command.TimeDuration `yaml:"outputPeriod"`
	IntegrationTime command.TimeDuration `yaml:"integrationTime"`
	MonitorTime     command.TimeDuration `yaml:"monitorTime"`
	Phase           float64              `yaml:"phase"` // radians
}

// SourceConfig selects where samples come from
type SourceConfig struct {
	Type    SourceType     `yaml:"type"`
	Capture capture.Config `yaml:"capture"`
	Command command.Config `yaml:"command"`
	Wav     wavfile.Config `yaml:"wav"`
}

// SinksConfig selects where results are written to
type SinksConfig struct {
	CSV       bool               `yaml:"csv"` // stdout
	CSVHeader bool               `yaml:"csvHeader"`
	Serial    *sink.SerialConfig `yaml:"serial"`
}

// ServerConfig represents the live view settings
type ServerConfig struct {
	Enabled         bool                 `yaml:"enabled"`
	Address         string               `yaml:"address"`
	RefreshInterval command.TimeDuration `yaml:"refreshInterval"` // status broadcast interval
}

// StorageConfig represents the session journal settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"` // empty disables the journal
}

// NewConfig returns the configuration with defaults
func NewConfig() *Config {
	defaults := lockin.DefaultConfig()

	return &Config{
		Settings: Settings{LogLevel: slog.LevelInfo},
		Lockin: LockinConfig{
			OutputPeriod:    command.NewTimeDuration(defaults.OutputPeriod),
			IntegrationTime: command.NewTimeDuration(defaults.IntegrationTime),
			MonitorTime:     command.NewTimeDuration(defaults.MonitorTime),
			Phase:           defaults.Phase,
		},
		Source: SourceConfig{Type: SourceCapture},
		Sinks:  SinksConfig{CSV: true},
		Server: ServerConfig{
			Address:         server.DefaultAddress,
			RefreshInterval: command.NewTimeDuration(defaultRefreshInterval),
		},
	}
}

// LoadConfig reads the YAML configuration file at path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := NewConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	var errs []error

	for name, d := range map[string]command.TimeDuration{
		"outputPeriod":    c.Lockin.OutputPeriod,
		"integrationTime": c.Lockin.IntegrationTime,
		"monitorTime":     c.Lockin.MonitorTime,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("lockin.%s must be positive: %s given", name, d))
		}
	}
	if math.IsNaN(c.Lockin.Phase) || math.IsInf(c.Lockin.Phase, 0) {
		errs = append(errs, fmt.Errorf("lockin.phase must be finite"))
	}

	switch c.Source.Type {
	case SourceCapture:
		if err := c.Source.Capture.Validate(); err != nil {
			errs = append(errs, err)
		}
	case SourceCommand:
		if err := c.Source.Command.Validate(); err != nil {
			errs = append(errs, err)
		}
	case SourceWav:
		if c.Source.Wav.Path == "" {
			errs = append(errs, errors.New("source.wav.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source type '%s'", c.Source.Type))
	}

	if c.Sinks.Serial != nil {
		if err := c.Sinks.Serial.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Server.Enabled && c.Server.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("server.refreshInterval must be positive: %s given", c.Server.RefreshInterval))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) lockinConfig() lockin.Config {
	return lockin.Config{
		OutputPeriod:    c.Lockin.OutputPeriod.Duration(),
		IntegrationTime: c.Lockin.IntegrationTime.Duration(),
		MonitorTime:     c.Lockin.MonitorTime.Duration(),
		Phase:           c.Lockin.Phase,
	}
}
