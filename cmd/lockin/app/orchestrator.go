package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/lockin/internal/lockin"
	"github.com/roman-kulish/lockin/internal/server"
	"github.com/roman-kulish/lockin/internal/sink"
	"github.com/roman-kulish/lockin/internal/storage"
)

// closeTimeout bounds journaling the end of a session after ctx is cancelled
const closeTimeout = 5 * time.Second

// finiteSource is implemented by sources that can end on their own
type finiteSource interface {
	Done() <-chan error
}

// WithLogger sets the logger for the orchestrator
func WithLogger(logger *slog.Logger) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithSink sets where results are written to
func WithSink(s sink.Sink) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.sink = s
	}
}

// WithServer runs the live view for the duration of the session and
// broadcasts the status every refresh interval.
func WithServer(s *server.Server, refresh time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.server = s
		o.refresh = refresh
	}
}

// WithStore journals the session
func WithStore(store storage.Store, info storage.SessionInfo) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
		o.info = info
	}
}

// Orchestrator drives a lock-in session: it starts the source, calls Notify
// every output period, fans the results out and journals the session.
type Orchestrator struct {
	lockin *lockin.Lockin
	source lockin.Source

	sink    sink.Sink
	server  *server.Server
	refresh time.Duration
	store   storage.Store
	info    storage.SessionInfo

	unlocked bool // the previous cycle had no reference lock

	logger *slog.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(li *lockin.Lockin, source lockin.Source, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		lockin: li,
		source: source,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// Run starts the session and blocks until ctx is cancelled, the source ends
// or a sink or the server fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.lockin.Start(o.source); err != nil {
		return fmt.Errorf("starting lock-in: %w", err)
	}

	sessionID := o.createSession(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	if o.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.server.Run(ctx); err != nil {
				serverErr <- err
			}
		}()
	}

	cause := o.loop(ctx, serverErr)

	stopErr := o.lockin.Stop()
	if stopErr != nil {
		o.logger.Error(stopErr.Error())
	}

	cancel()
	wg.Wait()

	o.closeSession(sessionID, errors.Join(cause, stopErr))

	return cause
}

func (o *Orchestrator) loop(ctx context.Context, serverErr <-chan error) error {
	ticker := time.NewTicker(o.lockin.Config().OutputPeriod)
	defer ticker.Stop()

	var done <-chan error
	if src, ok := o.source.(finiteSource); ok {
		done = src.Done()
	}

	var refresh <-chan time.Time
	if o.server != nil && o.refresh > 0 {
		t := time.NewTicker(o.refresh)
		defer t.Stop()
		refresh = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-serverErr:
			return fmt.Errorf("running server: %w", err)

		case err := <-done:
			// whatever the source wrote before it ended
			if nErr := o.notify(); nErr != nil {
				return nErr
			}
			if err != nil {
				return fmt.Errorf("source failed: %w", err)
			}
			o.logger.Info("source ended")
			return nil

		case <-ticker.C:
			if err := o.notify(); err != nil {
				return err
			}

		case <-refresh:
			o.server.BroadcastStatus()
		}
	}
}

// notify runs one lock-in cycle and fans out its result. A cycle without
// reference lock reaches the live view as a no-lock message; sinks only get
// results. Only a failing sink ends the session.
func (o *Orchestrator) notify() error {
	result, err := o.lockin.Notify()
	switch {
	case errors.Is(err, lockin.ErrPriming):
		o.logger.Debug("integration window is priming", slog.Float64("time", result.Time))
		return nil
	case errors.Is(err, lockin.ErrNoData):
		return nil
	case errors.Is(err, lockin.ErrNoLock):
		if !o.unlocked {
			o.logger.Warn("reference lock lost", slog.Float64("time", result.Time))
		}
		o.unlocked = true
		if o.server != nil {
			o.server.BroadcastNoLock(result.Time)
		}
		return nil
	case err != nil:
		return fmt.Errorf("notifying lock-in: %w", err)
	}

	if o.unlocked {
		o.logger.Info("reference lock regained", slog.Float64("time", result.Time))
		o.unlocked = false
	}

	if o.server != nil {
		o.server.Broadcast(result)
	}

	if o.sink != nil {
		if err = o.sink.Write(result); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}

	return nil
}

func (o *Orchestrator) createSession(ctx context.Context) int64 {
	if o.store == nil {
		return 0
	}

	info := o.info
	if format, err := o.lockin.Format(); err == nil {
		info.Format = format
	}
	if info.Config == nil {
		info.Config = o.lockin.Config()
	}

	id, err := o.store.CreateSession(ctx, info)
	if err != nil {
		o.logger.Error(fmt.Sprintf("journaling session: %s", err.Error()))
		return 0
	}

	o.logger.Info("session started", slog.Int64("session", id))
	return id
}

func (o *Orchestrator) closeSession(id int64, cause error) {
	if o.store == nil || id == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := o.store.CloseSession(ctx, id, o.lockin.Stats(), cause); err != nil {
		o.logger.Error(fmt.Sprintf("journaling session end: %s", err.Error()))
	}
}
