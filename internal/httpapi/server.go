// Package httpapi exposes the workflow engine, findings and provider
// connections over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/buildinfo"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/finding"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/metrics"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// DefaultEventBuffer is the per-client channel buffer of the event stream.
const DefaultEventBuffer = 64

// Server routes API requests to the engine and the finding store.
type Server struct {
	engine   *workflow.Engine
	findings *finding.Store
	conns    *finding.Connections
	gatherer prometheus.Gatherer
	logger   *log.Logger
	router   *mux.Router

	eventBuffer int
	heartbeat   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics mounts GET /metrics serving g.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHeartbeat sets the interval of keep-alive comments on the event
// stream. Zero disables them.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) { s.heartbeat = d }
}

// New builds a Server and its routes.
func New(engine *workflow.Engine, findings *finding.Store, conns *finding.Connections, opts ...Option) *Server {
	s := &Server{
		engine:      engine,
		findings:    findings,
		conns:       conns,
		eventBuffer: DefaultEventBuffer,
		heartbeat:   15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.serverHeader, s.logRequests)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer)).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/runs", s.handleStartRun).Methods(http.MethodPost)
	v1.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{id}", s.handleClearRun).Methods(http.MethodDelete)
	v1.HandleFunc("/runs/{id}/cancel", s.handleCancelRun).Methods(http.MethodPost)
	v1.HandleFunc("/targets/{target}/runs", s.handleTargetRuns).Methods(http.MethodGet)
	v1.HandleFunc("/workflows", s.handleWorkflows).Methods(http.MethodGet)
	v1.HandleFunc("/findings", s.handleListFindings).Methods(http.MethodGet)
	v1.HandleFunc("/findings/{id}", s.handleGetFinding).Methods(http.MethodGet)
	v1.HandleFunc("/findings/{id}/reopen", s.handleReopenFinding).Methods(http.MethodPost)
	v1.HandleFunc("/connections", s.handleConnections).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	s.router = r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections on ln until ctx is done, then shuts down,
// allowing in-flight requests up to shutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// --- Middleware ---

func (s *Server) serverHeader(next http.Handler) http.Handler {
	agent := buildinfo.GetInfo().UserAgent()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", agent)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush lets the event stream flush through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.logger == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) info(msg string, kvs ...any) {
	if s.logger != nil {
		s.logger.Info(msg, kvs...)
	}
}
