package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/roman-kulish/lockin/internal/lockin"
)

var (
	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")

	ErrNotStarted = errors.New("recorder is not started")
)

// WithLogger sets the logger for the recorder
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("source", "command"), slog.String("runtime", s.binPath))
	}
}

// Source reads raw PCM from the stdout of an external recorder process
type Source struct {
	binPath string
	args    []string
	format  lockin.Format

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error

	logger *slog.Logger
}

// New locates the recorder binary and builds its arguments
func New(config *Config, options ...func(s *Source)) (*Source, error) {
	binPath, err := exec.LookPath(config.runtime())
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	args, err := config.Args()
	if err != nil {
		return nil, fmt.Errorf("error creating args: %w", err)
	}

	return newSource(binPath, args, config.Format(), options...), nil
}

func newSource(binPath string, args []string, format lockin.Format, options ...func(s *Source)) *Source {
	s := Source{
		binPath: binPath,
		args:    args,
		format:  format,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

func (s *Source) Format() lockin.Format {
	return s.format
}

// Start runs the recorder and copies its stdout to w until the process exits
// or Stop is called.
func (s *Source) Start(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("recorder is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, s.binPath, s.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("error starting command: %w", err)
	}

	s.cancel = cancel
	s.done = make(chan error, 1)

	go s.run(ctx, cmd, stdout, stderr, w, s.done)

	return nil
}

func (s *Source) run(ctx context.Context, cmd *exec.Cmd, stdout, stderr io.Reader, w io.Writer, stopped chan<- error) {
	defer close(stopped)

	s.logger.Info("starting recorder...", slog.String("args", strings.Join(s.args, " ")))

	// both pipes must be drained before Wait
	pipes := make(chan error, 2)
	go s.handleStdout(stdout, w, pipes)
	go s.handleStderr(stderr, pipes)

	var errs []error
	for i := 0; i < cap(pipes); i++ {
		if err := <-pipes; err != nil {
			errs = append(errs, err)
		}
	}

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		errs = append(errs, fmt.Errorf("command exited with error: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error(err.Error())
	}

	s.logger.Info("recorder stopped")

	stopped <- err
}

// handleStdout copies the raw sample stream to w
func (s *Source) handleStdout(stdout io.Reader, w io.Writer, done chan<- error) {
	_, err := io.Copy(w, stdout)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleStderr reads from stderr and logs it
func (s *Source) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.logger.Warn(fmt.Sprintf("%s >> %s", s.binPath, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// Done returns a channel that receives the exit error, if any, and is closed
// when the recorder exits.
func (s *Source) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.done
}

// Stop kills the recorder and waits for it to exit
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return ErrNotStarted
	}

	s.cancel()
	s.cancel = nil

	return <-s.done // nil if Done already consumed the exit error
}
