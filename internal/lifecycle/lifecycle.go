// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package lifecycle runs a plugin process from bootstrap to exit: it picks
// the run mode, brings up the RPC server, announces it, watches framework
// liveness and tears everything down exactly once.
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/holomush/snapplugin/internal/config"
	"github.com/holomush/snapplugin/internal/diagnostic"
	"github.com/holomush/snapplugin/internal/health"
	"github.com/holomush/snapplugin/internal/observability"
	"github.com/holomush/snapplugin/internal/preamble"
	"github.com/holomush/snapplugin/internal/proxy"
	"github.com/holomush/snapplugin/internal/rpc"
	plugintls "github.com/holomush/snapplugin/internal/tls"
	"github.com/holomush/snapplugin/pkg/errutil"
	"github.com/holomush/snapplugin/pkg/plugin"
)

// DefaultStopTimeout bounds the graceful part of Stop.
const DefaultStopTimeout = 5 * time.Second

// State is the lifecycle position of the plugin process.
type State int32

// Lifecycle states. Transitions only move forward.
const (
	StateInitializing State = iota
	StateServed
	StateStandalone
	StateDiagnostic
	StateShuttingDown
	StateStopped
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateServed:
		return "served"
	case StateStandalone:
		return "standalone"
	case StateDiagnostic:
		return "diagnostic"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options carries the process-level dependencies of a Lifecycle.
type Options struct {
	// Stdout receives the preamble, the standalone banner and diagnostics.
	Stdout io.Writer
	Logger *slog.Logger
	// Registry collects runtime metrics. A fresh one is created when nil.
	Registry *prometheus.Registry
	// StopTimeout bounds the graceful RPC shutdown; DefaultStopTimeout when zero.
	StopTimeout time.Duration
	// Monitor options, mainly for tests.
	MonitorOptions []health.Option
	// Proxy options appended after the defaults.
	ProxyOptions []proxy.Option
	// Diagnostic options, mainly for tests.
	DiagnosticOptions []diagnostic.Option
}

// Lifecycle owns one plugin process.
type Lifecycle struct {
	meta plugin.Meta
	impl plugin.Plugin
	cfg  *config.Config
	opts Options

	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	proxyMx  *proxy.Metrics

	state  atomic.Int32
	health *health.State

	mu       sync.Mutex
	server   *grpc.Server
	listener net.Listener
	stream   *proxy.StreamProxy
	http     *observability.Server
	err      error

	stopRequested chan struct{}
	requestOnce   sync.Once
	stopped       chan struct{}
}

// New validates meta and checks that impl provides the capability set of
// meta.Kind.
func New(meta plugin.Meta, impl plugin.Plugin, cfg *config.Config, opts Options) (*Lifecycle, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if err := checkKind(meta.Kind, impl); err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, oops.Code("INVALID_CONFIG").Errorf("config is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = observability.NewRegistry()
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	l := &Lifecycle{
		meta:          meta,
		impl:          impl,
		cfg:           cfg,
		opts:          opts,
		logger:        opts.Logger,
		registry:      opts.Registry,
		metrics:       observability.NewMetrics(opts.Registry),
		proxyMx:       proxy.NewMetrics(opts.Registry),
		health:        health.NewState(),
		stopRequested: make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	l.state.Store(int32(StateInitializing))
	return l, nil
}

func checkKind(kind plugin.Kind, impl plugin.Plugin) error {
	var ok bool
	switch kind {
	case plugin.KindCollector:
		_, ok = impl.(plugin.Collector)
	case plugin.KindProcessor:
		_, ok = impl.(plugin.Processor)
	case plugin.KindPublisher:
		_, ok = impl.(plugin.Publisher)
	case plugin.KindStreamCollector:
		_, ok = impl.(plugin.StreamCollector)
	}
	if !ok {
		return oops.Code("INVALID_PLUGIN").
			With("kind", kind.String()).
			Errorf("plugin does not implement the %s interface", kind)
	}
	return nil
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// advance moves to next if it is later than the current state.
func (l *Lifecycle) advance(next State) bool {
	for {
		cur := l.state.Load()
		if State(cur) >= next {
			return false
		}
		if l.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

// Addr returns the RPC listen address, or "" before the server is up.
func (l *Lifecycle) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return ""
	}
	return l.listener.Addr().String()
}

// Err returns the standalone bind failure, if any.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Done is closed once Stop has completed.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.stopped
}

// Ping records a framework health check.
func (l *Lifecycle) Ping() {
	l.health.Ping()
	l.metrics.PingsTotal.Inc()
}

// Kill requests shutdown and returns immediately.
func (l *Lifecycle) Kill() {
	l.logger.Info("kill requested by the framework")
	l.requestStop()
	go l.Stop()
}

func (l *Lifecycle) requestStop() {
	l.requestOnce.Do(func() { close(l.stopRequested) })
}

// Start runs the plugin in the mode selected by the config and returns once
// the plugin has stopped. Bootstrap failures are returned; a standalone
// port conflict is not (see Err).
func (l *Lifecycle) Start(ctx context.Context) error {
	switch l.cfg.Mode {
	case config.ModeServed:
		return l.serve(ctx)
	case config.ModeStandalone:
		return l.standalone(ctx)
	case config.ModeDiagnostic:
		return l.diagnose(ctx)
	default:
		return oops.Code("INVALID_CONFIG").With("mode", l.cfg.Mode.String()).Errorf("unknown run mode")
	}
}

func (l *Lifecycle) serve(ctx context.Context) error {
	serveErr, err := l.startRPC(ctx)
	if err != nil {
		l.announceFailure(err)
		l.finish()
		return err
	}
	l.advance(StateServed)

	line, err := preamble.New(l.meta, l.Addr()).Encode()
	if err != nil {
		l.Stop()
		return err
	}
	if _, err := l.opts.Stdout.Write(line); err != nil {
		l.Stop()
		return oops.Code("PREAMBLE_WRITE_FAILED").Wrap(err)
	}
	l.logger.InfoContext(ctx, "plugin served", "addr", l.Addr(), "kind", l.meta.Kind.String())

	monitorOpts := append([]health.Option{
		health.WithLogger(l.logger),
		health.WithMissHook(l.metrics.MissedHealthChecks.Inc),
	}, l.opts.MonitorOptions...)
	monitor := health.NewMonitor(l.cfg.PingTimeout, monitorOpts...)

	monitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		monitor.Run(monitorCtx, l.health, l.requestStop)
	}()

	l.wait(ctx, serveErr)
	cancel()
	l.Stop()
	<-l.stopped
	<-monitorDone
	return nil
}

func (l *Lifecycle) standalone(ctx context.Context) error {
	serveErr, err := l.startRPC(ctx)
	if err != nil {
		l.finish()
		return err
	}
	l.advance(StateStandalone)

	pre := preamble.New(l.meta, l.Addr())
	httpServer := observability.NewServer(
		net.JoinHostPort("", strconv.Itoa(l.cfg.StandAlonePort)),
		l.registry,
		observability.WithMetrics(l.metrics),
		observability.WithPreamble(pre.Encode),
		observability.WithReadiness(func() bool { return l.State() == StateStandalone }),
		observability.WithLogger(l.logger),
	)
	httpErr, err := httpServer.Start()
	if err != nil {
		msg := "unable to start standalone server"
		switch oopsCode(err) {
		case observability.CodePortInUse:
			msg = "port already in use"
		case observability.CodePrivilegedPort:
			msg = "port numbers below 1024 require privileges"
		}
		errutil.LogErrorContext(ctx, l.logger, msg, err, "port", l.cfg.StandAlonePort)
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		l.Stop()
		return nil
	}
	l.mu.Lock()
	l.http = httpServer
	l.mu.Unlock()

	fmt.Fprintf(l.opts.Stdout, "Plugin loaded at %s\n", httpServer.Addr())

	select {
	case <-ctx.Done():
	case <-l.stopRequested:
	case err := <-serveErr:
		if err != nil {
			l.logger.ErrorContext(ctx, "rpc server exited", "error", err)
		}
	case err := <-httpErr:
		if err != nil {
			l.logger.ErrorContext(ctx, "standalone server exited", "error", err)
		}
	}
	l.Stop()
	<-l.stopped
	return nil
}

func (l *Lifecycle) diagnose(ctx context.Context) error {
	l.advance(StateDiagnostic)
	defer l.finish()

	c, ok := l.impl.(plugin.Collector)
	if !ok || l.meta.Kind != plugin.KindCollector {
		fmt.Fprintln(l.opts.Stdout, "diagnostic is supported only by collector plugins")
		return nil
	}
	opts := append([]diagnostic.Option{diagnostic.WithLogger(l.logger)}, l.opts.DiagnosticOptions...)
	return diagnostic.New(l.meta, c, l.cfg.ConfigMap(), l.opts.Stdout, opts...).Run(ctx)
}

// wait blocks until the monitor or the framework asks for shutdown, ctx
// ends, or the RPC server exits on its own.
func (l *Lifecycle) wait(ctx context.Context, serveErr <-chan error) {
	select {
	case <-ctx.Done():
		l.logger.InfoContext(ctx, "context cancelled, stopping plugin")
	case <-l.stopRequested:
	case err := <-serveErr:
		if err != nil {
			l.logger.ErrorContext(ctx, "rpc server exited", "error", err)
		}
	}
}

// startRPC bootstraps TLS, binds 127.0.0.1:<port> and serves the service
// matching the plugin kind. The returned channel reports Serve's result.
func (l *Lifecycle) startRPC(ctx context.Context) (<-chan error, error) {
	material, err := plugintls.Bootstrap(ctx, plugintls.Options{
		Enabled:       l.cfg.TLS.Enabled,
		RootCertPaths: l.cfg.TLS.RootCertPaths,
		CertPath:      l.cfg.TLS.CertPath,
		KeyPath:       l.cfg.TLS.KeyPath,
		CipherSuites:  l.meta.CipherSuites,
		Logger:        l.logger,
	})
	if err != nil {
		errutil.LogErrorContext(ctx, l.logger, "TLS bootstrap failed", err)
		return nil, err
	}

	creds := insecure.NewCredentials()
	if material != nil {
		creds = credentials.NewTLS(material.ServerConfig())
		l.meta.TLSEnabled = true
		l.meta.RootCertPaths = material.RootCertFiles
		l.meta.CertPath = l.cfg.TLS.CertPath
		l.meta.KeyPath = l.cfg.TLS.KeyPath
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(l.cfg.Port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.Code("BIND_FAILED").With("addr", addr).Wrapf(err, "listen for rpc")
	}

	server := grpc.NewServer(
		grpc.Creds(creds),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	stream := l.register(server)

	l.mu.Lock()
	l.listener = lis
	l.server = server
	l.stream = stream
	l.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()
	return errCh, nil
}

// register installs the proxy for the plugin kind. Only stream collectors
// return a proxy, since Stop has to end their open calls.
func (l *Lifecycle) register(server *grpc.Server) *proxy.StreamProxy {
	opts := append([]proxy.Option{
		proxy.WithLogger(l.logger),
		proxy.WithMetrics(l.proxyMx),
	}, l.opts.ProxyOptions...)

	switch l.meta.Kind {
	case plugin.KindCollector:
		rpc.RegisterCollectorServer(server, proxy.NewCollector(l.meta, l.impl.(plugin.Collector), l, opts...))
	case plugin.KindProcessor:
		rpc.RegisterProcessorServer(server, proxy.NewProcessor(l.meta, l.impl.(plugin.Processor), l, opts...))
	case plugin.KindPublisher:
		rpc.RegisterPublisherServer(server, proxy.NewPublisher(l.meta, l.impl.(plugin.Publisher), l, opts...))
	case plugin.KindStreamCollector:
		stream := proxy.NewStreamCollector(l.meta, l.impl.(plugin.StreamCollector), l, opts...)
		rpc.RegisterStreamCollectorServer(server, stream)
		return stream
	}
	return nil
}

func (l *Lifecycle) announceFailure(cause error) {
	line, err := preamble.Failure(l.meta, cause).Encode()
	if err != nil {
		return
	}
	_, _ = l.opts.Stdout.Write(line)
}

// Stop shuts the plugin down: open streams are ended, the RPC server drains
// for up to StopTimeout and is then closed hard. Only the first call does
// any work; later calls return immediately.
func (l *Lifecycle) Stop() {
	if !l.health.MarkShuttingDown() {
		return
	}
	l.advance(StateShuttingDown)
	l.requestStop()

	l.mu.Lock()
	server, stream, httpServer := l.server, l.stream, l.http
	l.mu.Unlock()

	if stream != nil {
		stream.Shutdown()
	}
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), l.opts.StopTimeout)
		if err := httpServer.Stop(ctx); err != nil {
			l.logger.Warn("standalone server stop failed", "error", err)
		}
		cancel()
	}
	if server != nil {
		done := make(chan struct{})
		go func() {
			server.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(l.opts.StopTimeout):
			l.logger.Warn("graceful stop timed out, closing connections", "timeout", l.opts.StopTimeout)
			server.Stop()
			<-done
		}
	}
	l.finish()
	l.logger.Info("plugin stopped")
}

// finish marks the lifecycle stopped. Safe to call more than once.
func (l *Lifecycle) finish() {
	if l.advance(StateStopped) {
		close(l.stopped)
	}
}

func oopsCode(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			return code
		}
	}
	return ""
}
