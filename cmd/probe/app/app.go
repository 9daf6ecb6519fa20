package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/lockin/internal/plot"
	"github.com/roman-kulish/lockin/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if config.DBPath != "" {
		if err := listSessions(ctx, config.DBPath, logger); err != nil {
			return err
		}
	}

	if config.WavPath == "" {
		return nil
	}

	report, err := Probe(config.WavPath, config)
	if err != nil {
		return fmt.Errorf("probing '%s': %w", config.WavPath, err)
	}
	logReport(report, logger)

	if config.OutputFile == "" {
		return nil
	}

	return writeMonitor(report, config, logger)
}

func listSessions(ctx context.Context, dbPath string, logger *slog.Logger) error {
	if _, err := os.Stat(dbPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", dbPath, err)
	}

	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("reading sessions: %w", err)
	}

	logger.Info(fmt.Sprintf("%d sessions in the journal", len(sessions)))

	for _, sess := range sessions {
		attrs := []any{
			slog.Int64("id", sess.ID),
			slog.String("started", sess.StartTime.Local().Format(time.DateTime)),
			slog.String("source", fmt.Sprintf("%s: %s", sess.SourceType, sess.SourceName)),
			slog.Group("stats",
				slog.String("cycles", humanize.Comma(int64(sess.Stats.Cycles))),
				slog.String("results", humanize.Comma(int64(sess.Stats.Results))),
				slog.String("noLock", humanize.Comma(int64(sess.Stats.NoLock))),
				slog.String("samples", humanize.SIWithDigits(float64(sess.Stats.Samples), 2, "")),
			),
		}

		if sess.StopTime != nil {
			attrs = append(attrs, slog.Duration("duration", sess.Duration().Round(time.Second)))
		} else {
			attrs = append(attrs, slog.Bool("open", true))
		}
		if sess.Error != nil {
			attrs = append(attrs, slog.String("error", *sess.Error))
		}

		logger.Info("session", attrs...)
	}

	return nil
}

func logReport(r *Report, logger *slog.Logger) {
	logger.Info("recording",
		slog.String("sampleRate", humanize.SI(float64(r.Info.SampleRate), "Hz")),
		slog.Int("channels", r.Info.Channels),
		slog.Int("bitDepth", r.Info.BitDepth),
		slog.Duration("duration", r.Info.Duration),
		slog.String("pairs", humanize.Comma(int64(r.Pairs))))

	logger.Info("levels",
		slog.Group("measurement",
			slog.Uint64("min", uint64(r.Measurement.Min)),
			slog.Uint64("max", uint64(r.Measurement.Max)),
			slog.Uint64("mean", uint64(r.Measurement.Mean))),
		slog.Group("reference",
			slog.Uint64("min", uint64(r.Reference.Min)),
			slog.Uint64("max", uint64(r.Reference.Max)),
			slog.Uint64("threshold", uint64(r.Reference.Mean))))

	logger.Info("chopper",
		slog.Int("periods", r.Periods),
		slog.String("edges", humanize.SIWithDigits(r.EdgeFrequency, 3, "Hz")),
		slog.String("fft", humanize.SIWithDigits(r.ReferencePeak.Frequency, 3, "Hz")),
		slog.String("binWidth", humanize.SIWithDigits(r.ReferencePeak.BinWidth, 3, "Hz")),
		slog.String("signal", humanize.SIWithDigits(r.SignalPeak.Frequency, 3, "Hz")))

	if !r.Locked {
		logger.Warn("no reference lock, the reference channel has no closed period")
		return
	}

	logger.Info("result",
		slog.Float64("x", r.Result.X),
		slog.Float64("y", r.Result.Y),
		slog.Float64("r", r.Result.R()),
		slog.Float64("theta", r.Result.Theta()),
		slog.String("samples", humanize.Comma(int64(r.Result.Samples))),
		slog.Float64("autoPhase", r.AutoPhase))
}

func writeMonitor(r *Report, config *Config, logger *slog.Logger) (err error) {
	renderer, err := plot.NewRenderer()
	if err != nil {
		return fmt.Errorf("creating monitor renderer: %w", err)
	}

	img, err := renderer.Draw(r.Monitor, plot.Options{
		Theme:              config.Theme,
		Title:              filepath.Base(config.WavPath),
		ReferenceFrequency: r.EdgeFrequency,
	})
	if err != nil {
		return fmt.Errorf("rendering monitor: %w", err)
	}

	logger.Info("rendering monitor",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("points", len(r.Monitor))))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return encodeImage(out, img, config.Format)
}

func encodeImage(out io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImageJPEG:
		return jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	default:
		return png.Encode(out, img)
	}
}
