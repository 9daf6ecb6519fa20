package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/lockin/internal/lockin"
	"github.com/roman-kulish/lockin/internal/plot"
)

const (
	DefaultAddress = "127.0.0.1:8080"

	MessageResult = "result"
	MessageStatus = "status"
	MessageNoLock = "noLock"

	shutdownTimeout = 5 * time.Second
)

// Controller is the part of the lock-in the live view reads from
type Controller interface {
	Config() lockin.Config
	IsActive() bool
	AutoPhase() (float64, error)
	MonitorData() []lockin.MonitorPoint
	ReferenceFrequency() float64
	Stats() lockin.Stats
}

// Message is sent to websocket clients
type Message struct {
	Type   string         `json:"type"`
	Result *ResultMessage `json:"result,omitempty"`
	Status *Status        `json:"status,omitempty"`
	NoLock *NoLockMessage `json:"noLock,omitempty"`
}

// NoLockMessage reports a cycle whose integration window held no valid sample
type NoLockMessage struct {
	Time float64 `json:"time"`
}

type ResultMessage struct {
	lockin.Result
	R     float64 `json:"r"`
	Theta float64 `json:"theta"`
}

// Status describes the running session
type Status struct {
	Active             bool          `json:"active"`
	Config             lockin.Config `json:"config"`
	Stats              lockin.Stats  `json:"stats"`
	ReferenceFrequency float64       `json:"referenceFrequency"`
	Clients            int           `json:"clients"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("component", "server"))
	}
}

// WithPlotOptions sets the default size and theme of /monitor.png
func WithPlotOptions(opts plot.Options) func(s *Server) {
	return func(s *Server) {
		s.plotOptions = opts
	}
}

// Server is the HTTP and websocket live view of a lock-in
type Server struct {
	address     string
	controller  Controller
	renderer    *plot.Renderer
	plotOptions plot.Options

	upgrader websocket.Upgrader
	hub      *hub

	logger *slog.Logger
}

func New(address string, controller Controller, options ...func(s *Server)) (*Server, error) {
	renderer, err := plot.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("creating monitor renderer: %w", err)
	}

	if address == "" {
		address = DefaultAddress
	}

	s := Server{
		address:    address,
		controller: controller,
		renderer:   renderer,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	s.hub = newHub(s.logger)

	return &s, nil
}

// Handler returns the routes of the live view
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/monitor", s.handleMonitor)
	mux.HandleFunc("GET /api/phase", s.handlePhase)
	mux.HandleFunc("GET /monitor.png", s.handleMonitorPNG)
	return mux
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("live view listening", slog.String("address", "http://"+listener.Addr().String()))
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err = <-serveErr:
		s.hub.close()
		return fmt.Errorf("serving live view: %w", err)

	case <-ctx.Done():
	}

	s.hub.close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down live view: %w", err)
	}
	if err = <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Broadcast sends a result to every websocket client
func (s *Server) Broadcast(r lockin.Result) {
	s.hub.broadcast(Message{
		Type:   MessageResult,
		Result: &ResultMessage{Result: r, R: r.R(), Theta: r.Theta()},
	})
}

// BroadcastNoLock tells every websocket client that the cycle at time t
// produced no result because the reference lock is lost.
func (s *Server) BroadcastNoLock(t float64) {
	s.hub.broadcast(Message{Type: MessageNoLock, NoLock: &NoLockMessage{Time: t}})
}

// BroadcastStatus sends the session status to every websocket client
func (s *Server) BroadcastStatus() {
	status := s.status()
	s.hub.broadcast(Message{Type: MessageStatus, Status: &status})
}

// Clients returns the number of connected websocket clients
func (s *Server) Clients() int {
	return s.hub.len()
}

func (s *Server) status() Status {
	return Status{
		Active:             s.controller.IsActive(),
		Config:             s.controller.Config(),
		Stats:              s.controller.Stats(),
		ReferenceFrequency: s.controller.ReferenceFrequency(),
		Clients:            s.hub.len(),
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("websocket upgrade failed: %s", err.Error()))
		return
	}

	c := s.hub.register(conn)
	go c.writePump()
	go c.readPump(s.hub)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleMonitor(w http.ResponseWriter, _ *http.Request) {
	points := s.controller.MonitorData()
	if points == nil {
		points = []lockin.MonitorPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handlePhase(w http.ResponseWriter, _ *http.Request) {
	phase, err := s.controller.AutoPhase()
	if err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"phase": phase})
}

func (s *Server) handleMonitorPNG(w http.ResponseWriter, r *http.Request) {
	opts := s.plotOptions
	opts.ReferenceFrequency = s.controller.ReferenceFrequency()

	query := r.URL.Query()
	for _, dim := range []struct {
		name  string
		value *int
	}{
		{"width", &opts.Width},
		{"height", &opts.Height},
	} {
		if v := query.Get(dim.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid %s: %s", dim.name, v)})
				return
			}
			*dim.value = n
		}
	}
	if theme := query.Get("theme"); theme != "" {
		opts.Theme = plot.ColorTheme(theme)
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, s.controller.MonitorData(), opts); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, plot.ErrImageTooSmall) || errors.Is(err, plot.ErrImageTooLarge) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
