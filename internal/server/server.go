// Package server exposes an editing session over HTTP: a JSON API, a
// WebSocket action stream and hot reload of the notebook file.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/livetemplate/kayero/internal/config"
	"github.com/livetemplate/kayero/internal/session"
	"github.com/livetemplate/kayero/internal/store"
)

// maxBodyBytes caps request bodies accepted by the API.
const maxBodyBytes = 4 << 20

// Options configures a Server.
type Options struct {
	Config   *config.Config
	Session  *session.Session
	Store    store.Store
	Notebook string // Path of the notebook being edited
	Logger   *zap.Logger
}

// Server is the kayero edit server.
type Server struct {
	config   *config.Config
	session  *session.Session
	store    store.Store
	notebook string
	log      *zap.Logger

	connections map[*websocket.Conn]bool // Connected WebSocket clients
	connMu      sync.RWMutex
	watcher     *Watcher
}

// New creates a server for an editing session.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	st := opts.Store
	if st == nil {
		st = store.NewMemory()
	}
	return &Server{
		config:      cfg,
		session:     opts.Session,
		store:       st,
		notebook:    opts.Notebook,
		log:         log,
		connections: make(map[*websocket.Conn]bool),
	}
}

// Handler returns the HTTP handler. ctx bounds the lifetime of background
// work started for the handler (rate limiter cleanup).
func (s *Server) Handler(ctx context.Context) http.Handler {
	rateLimit, _ := RateLimitMiddleware(ctx,
		s.config.API.GetRateLimitRPS(),
		s.config.API.GetRateLimitBurst(),
		0,
		s.log.Named("ratelimit"))

	api := http.NewServeMux()
	api.HandleFunc("GET /api/document", s.handleGetDocument)
	api.HandleFunc("POST /api/actions", s.handleActions)
	api.HandleFunc("POST /api/save", s.handleSave)
	api.HandleFunc("POST /api/share", s.handleShare)

	mux := http.NewServeMux()
	mux.Handle("/api/", rateLimit(api))
	mux.HandleFunc("GET /shared", s.handleShared)
	mux.HandleFunc("GET /shared/{id}", s.handleShared)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /ws", NewWebSocketHandler(s))

	var h http.Handler = mux
	h = CompressionMiddleware(h)
	h = SecurityHeadersMiddleware()(h)
	h = LoggingMiddleware(s.log.Named("http"))(h)
	return h
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.config.Features.HotReload && s.notebook != "" {
		if err := s.EnableWatch(); err != nil {
			return err
		}
		defer s.StopWatch()
	}

	srv := &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", srv.Addr), zap.String("notebook", s.notebook))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeConnections()
		return srv.Shutdown(shutdownCtx)
	}
}

// RegisterConnection adds a WebSocket connection to the tracked connections.
func (s *Server) RegisterConnection(conn *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.connections[conn] = true
	s.log.Debug("websocket connection registered", zap.Int("active", len(s.connections)))
}

// UnregisterConnection removes a WebSocket connection from tracked connections.
func (s *Server) UnregisterConnection(conn *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.connections, conn)
	s.log.Debug("websocket connection unregistered", zap.Int("active", len(s.connections)))
}

// ConnectionCount returns the number of connected WebSocket clients.
func (s *Server) ConnectionCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.connections)
}

func (s *Server) closeConnections() {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	for conn := range s.connections {
		conn.Close()
	}
}

// EnableWatch reloads the session whenever the notebook changes on disk.
func (s *Server) EnableWatch() error {
	watcher, err := NewWatcher(s.notebook, s.reload, s.log.Named("watch"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	s.watcher = watcher
	s.watcher.Start()

	s.log.Info("file watcher started", zap.String("path", s.notebook))
	return nil
}

// StopWatch stops the file watcher if it's running.
func (s *Server) StopWatch() error {
	if s.watcher != nil {
		return s.watcher.Stop()
	}
	return nil
}

// reload loads external edits of the notebook. Writes made by our own save
// are skipped so the undo history is not disturbed.
func (s *Server) reload(path string, content []byte) error {
	if s.session.IsOwnWrite(content) {
		return nil
	}
	if err := s.session.Load(content, path); err != nil {
		return err
	}
	s.log.Info("notebook reloaded", zap.String("path", path))
	return nil
}
