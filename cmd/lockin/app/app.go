package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roman-kulish/lockin/internal/lockin"
	"github.com/roman-kulish/lockin/internal/plot"
	"github.com/roman-kulish/lockin/internal/server"
	"github.com/roman-kulish/lockin/internal/sink"
	"github.com/roman-kulish/lockin/internal/source/capture"
	"github.com/roman-kulish/lockin/internal/source/command"
	"github.com/roman-kulish/lockin/internal/source/wavfile"
	"github.com/roman-kulish/lockin/internal/storage"
)

const journalFile = "lockin_journal.sqlite"

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	source, info, err := createSource(&config.Source, logger)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	info.Config = config

	li := lockin.New(lockin.WithLogger(logger))
	if err = li.SetConfig(config.lockinConfig()); err != nil {
		return fmt.Errorf("failed to configure lock-in: %w", err)
	}

	options := []func(*Orchestrator){WithLogger(logger)}

	out, err := createSinks(&config.Sinks)
	if err != nil {
		return fmt.Errorf("failed to create sinks: %w", err)
	}
	defer func() {
		if cErr := out.Close(); cErr != nil {
			logger.Error(cErr.Error())
		}
	}()
	options = append(options, WithSink(out))

	if config.Storage.DataDirectory != "" {
		store, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()

		options = append(options, WithStore(store, info))
	}

	if config.Server.Enabled {
		srv, err := server.New(config.Server.Address, li,
			server.WithLogger(logger),
			server.WithPlotOptions(plot.Options{Theme: plot.ThermalTheme, Title: info.SourceName}))
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		options = append(options, WithServer(srv, config.Server.RefreshInterval.Duration()))
	}

	return NewOrchestrator(li, source, options...).Run(ctx)
}

func createSource(config *SourceConfig, logger *slog.Logger) (lockin.Source, storage.SessionInfo, error) {
	info := storage.SessionInfo{SourceType: string(config.Type)}

	switch config.Type {
	case SourceCapture:
		src, err := capture.New(config.Capture, capture.WithLogger(logger))
		if err != nil {
			return nil, info, fmt.Errorf("creating capture source: %w", err)
		}
		info.SourceName = config.Capture.Device
		if info.SourceName == "" {
			info.SourceName = "default"
		}
		return src, info, nil

	case SourceCommand:
		src, err := command.New(&config.Command, command.WithLogger(logger))
		if err != nil {
			return nil, info, fmt.Errorf("creating command source: %w", err)
		}
		info.SourceName = config.Command.String()
		return src, info, nil

	case SourceWav:
		src, err := wavfile.New(config.Wav, wavfile.WithLogger(logger))
		if err != nil {
			return nil, info, fmt.Errorf("creating wav source: %w", err)
		}
		info.SourceName = config.Wav.Path
		return src, info, nil

	default:
		return nil, info, fmt.Errorf("unknown source type '%s'", config.Type)
	}
}

func createSinks(config *SinksConfig) (sink.Multi, error) {
	var sinks sink.Multi

	if config.CSV {
		s, err := sink.NewCSV(os.Stdout, config.CSVHeader)
		if err != nil {
			return nil, fmt.Errorf("creating csv sink: %w", err)
		}
		sinks = append(sinks, s)
	}

	if config.Serial != nil {
		s, err := sink.OpenSerial(*config.Serial)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("opening serial sink: %w", err)
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dir := config.DataDirectory
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dir, err)
		}
		return nil, fmt.Errorf("checking storage directory: %w", err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dir)
	}

	return storage.NewSqliteStore(filepath.Join(dir, journalFile)), nil
}
