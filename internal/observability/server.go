// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability provides the plugin's HTTP surface: the handshake
// preamble in standalone mode, prometheus metrics and health probes.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// Bind failure codes.
const (
	CodePortInUse      = "PORT_IN_USE"
	CodePrivilegedPort = "PRIVILEGED_PORT"
	CodeBindFailed     = "BIND_FAILED"
)

// ReadinessChecker returns whether the plugin is ready to serve calls.
type ReadinessChecker func() bool

// PreambleSource returns the encoded handshake preamble.
type PreambleSource func() ([]byte, error)

// Metrics contains the plugin-level prometheus metrics.
type Metrics struct {
	PingsTotal            prometheus.Counter
	MissedHealthChecks    prometheus.Counter
	PreambleRequestsTotal prometheus.Counter
}

// NewMetrics creates and registers the plugin-level metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snap_plugin_pings_total",
			Help: "Total number of pings received from the framework",
		}),
		MissedHealthChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snap_plugin_missed_health_checks_total",
			Help: "Total number of missed framework health checks",
		}),
		PreambleRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snap_plugin_preamble_requests_total",
			Help: "Total number of preamble requests served over HTTP",
		}),
	}

	reg.MustRegister(m.PingsTotal)
	reg.MustRegister(m.MissedHealthChecks)
	reg.MustRegister(m.PreambleRequestsTotal)

	return m
}

// NewRegistry returns a registry carrying the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Option configures a Server.
type Option func(*Server)

// WithPreamble serves the preamble at "/".
func WithPreamble(src PreambleSource) Option {
	return func(s *Server) {
		s.preamble = src
	}
}

// WithReadiness sets the readiness probe. Without one the server reports ready.
func WithReadiness(fn ReadinessChecker) Option {
	return func(s *Server) {
		s.isReady = fn
	}
}

// WithMetrics reuses metrics already registered on the server's registry.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server provides the plugin's HTTP endpoints.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *Metrics
	preamble   PreambleSource
	isReady    ReadinessChecker
	logger     *slog.Logger
	running    atomic.Bool
}

// NewServer creates a server listening on addr ("host:port"). A nil registry
// gets a fresh one from NewRegistry; metrics are registered on it.
func NewServer(addr string, registry *prometheus.Registry, opts ...Option) *Server {
	if registry == nil {
		registry = NewRegistry()
	}
	s := &Server{
		addr:     addr,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(registry)
	}
	return s
}

// Metrics returns the plugin-level metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registry returns the prometheus registry served at /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if s.preamble != nil {
		r.Get("/", s.handlePreamble)
	}
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	r.Get("/healthz/liveness", s.handleLiveness)
	r.Get("/healthz/readiness", s.handleReadiness)
	return r
}

// Start begins serving. The returned channel receives a serve error, if any,
// and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, bindError(s.addr, err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("http server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Debug("http server started", "addr", listener.Addr().String())
	return errCh, nil
}

// bindError classifies a listen failure.
func bindError(addr string, err error) error {
	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		return oops.Code(CodePortInUse).With("addr", addr).Wrapf(err, "port already in use")
	case errors.Is(err, syscall.EACCES):
		return oops.Code(CodePrivilegedPort).With("addr", addr).
			Wrapf(err, "port numbers below 1024 require privileges")
	default:
		return oops.Code(CodeBindFailed).With("addr", addr).Wrap(err)
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_http_server").Wrap(err)
		}
	}

	s.logger.Debug("http server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if not started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handlePreamble(w http.ResponseWriter, r *http.Request) {
	body, err := s.preamble()
	if err != nil {
		s.logger.ErrorContext(r.Context(), "encode preamble", "error", err)
		http.Error(w, "preamble unavailable", http.StatusInternalServerError)
		return
	}
	s.metrics.PreambleRequestsTotal.Inc()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write(body)
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
