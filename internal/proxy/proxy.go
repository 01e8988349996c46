// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package proxy adapts inbound plugin RPCs to the author's plugin
// implementation. User errors and panics never reach the transport: they are
// returned in the reply's error field as a message plus stack trace.
package proxy

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/holomush/snapplugin/internal/rpc"
	"github.com/holomush/snapplugin/pkg/errutil"
	"github.com/holomush/snapplugin/pkg/plugin"
)

var tracer = otel.Tracer("snapplugin/proxy")

// Controller receives liveness and termination requests from the framework.
type Controller interface {
	// Ping records proof of life.
	Ping()
	// Kill starts shutdown and returns without waiting for it.
	Kill()
}

// Option configures a proxy.
type Option func(*Base)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Base) {
		b.logger = l
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(b *Base) {
		b.metrics = m
	}
}

// WithQueueSize bounds the relay queue of each stream call. The producer
// blocks while the queue is full.
func WithQueueSize(n int) Option {
	return func(b *Base) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithProducerGrace sets how long a finished stream call waits for its
// producer to notice cancellation.
func WithProducerGrace(d time.Duration) Option {
	return func(b *Base) {
		b.grace = d
	}
}

// Base answers the calls shared by every plugin kind.
type Base struct {
	meta    plugin.Meta
	impl    plugin.Plugin
	ctrl    Controller
	logger  *slog.Logger
	metrics *Metrics

	queueSize int
	grace     time.Duration
}

func newBase(meta plugin.Meta, impl plugin.Plugin, ctrl Controller, opts []Option) *Base {
	b := &Base{
		meta:      meta,
		impl:      impl,
		ctrl:      ctrl,
		logger:    slog.Default(),
		queueSize: DefaultQueueSize,
		grace:     DefaultProducerGrace,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Ping implements rpc.BaseServer.
func (b *Base) Ping(ctx context.Context, _ *emptypb.Empty) (*rpc.ErrReply, error) {
	b.logger.DebugContext(ctx, "Ping received")
	b.ctrl.Ping()
	return &rpc.ErrReply{}, nil
}

// Kill implements rpc.BaseServer. The reply is sent before shutdown completes.
func (b *Base) Kill(ctx context.Context, _ *emptypb.Empty) (*rpc.ErrReply, error) {
	b.logger.DebugContext(ctx, "Kill called")
	b.ctrl.Kill()
	return &rpc.ErrReply{}, nil
}

// GetConfigPolicy implements rpc.BaseServer.
func (b *Base) GetConfigPolicy(ctx context.Context, _ *emptypb.Empty) (*rpc.GetConfigPolicyReply, error) {
	var reply *rpc.GetConfigPolicyReply
	msg := b.dispatch(ctx, "GetConfigPolicy", func(ctx context.Context) error {
		policy, err := b.impl.GetConfigPolicy(ctx)
		if err != nil {
			return err
		}
		reply = rpc.ToConfigPolicyReply(policy)
		return nil
	})
	if msg != "" {
		return &rpc.GetConfigPolicyReply{Error: msg}, nil
	}
	return reply, nil
}

// dispatch runs fn at the call boundary and returns the formatted error, or
// "" on success.
func (b *Base) dispatch(ctx context.Context, method string, fn func(context.Context) error) string {
	ctx, span := tracer.Start(ctx, "plugin."+method,
		trace.WithAttributes(
			attribute.String("plugin.name", b.meta.Name),
			attribute.Int("plugin.version", b.meta.Version),
		),
	)
	defer span.End()

	b.logger.DebugContext(ctx, method+" called")
	start := time.Now()
	err := errutil.Capture(method, func() error { return fn(ctx) })
	b.metrics.recordCall(method, err, time.Since(start))
	if err == nil {
		return ""
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	errutil.LogErrorContext(ctx, b.logger, method+" failed", err)
	return errutil.FormatWithTrace(err)
}

func (b *Base) version() int64 {
	return int64(b.meta.Version)
}

// metricTypes serves GetMetricTypes for collectors and stream collectors.
func (b *Base) metricTypes(ctx context.Context, in *rpc.GetMetricTypesArg,
	get func(context.Context, plugin.ConfigMap) ([]plugin.Metric, error),
) *rpc.MetricsReply {
	reply := &rpc.MetricsReply{}
	reply.Error = b.dispatch(ctx, "GetMetricTypes", func(ctx context.Context) error {
		mts, err := get(ctx, rpc.FromConfigMap(in.Config))
		if err != nil {
			return err
		}
		reply.Metrics, err = rpc.ToMetrics(mts, b.version())
		return err
	})
	if reply.Error != "" {
		reply.Metrics = nil
	}
	return reply
}
