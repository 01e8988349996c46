// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package proxy

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/snapplugin/internal/rpc"
	"github.com/holomush/snapplugin/pkg/errutil"
	"github.com/holomush/snapplugin/pkg/plugin"
)

// Stream defaults.
const (
	DefaultQueueSize     = 1024
	DefaultProducerGrace = 100 * time.Millisecond

	// idleBackoff paces a producer whose StreamMetrics returns nothing.
	idleBackoff = 10 * time.Millisecond
)

// StreamProxy serves the StreamCollector service. Each StreamMetrics call
// runs one producer goroutine, which calls the author's StreamMetrics in a
// loop, and a flush loop that batches what it produces.
type StreamProxy struct {
	*Base
	impl plugin.StreamCollector

	stopCtx context.Context
	stop    context.CancelFunc
}

var _ rpc.StreamCollectorServer = (*StreamProxy)(nil)

// NewStreamCollector returns a proxy dispatching to sc.
func NewStreamCollector(meta plugin.Meta, sc plugin.StreamCollector, ctrl Controller, opts ...Option) *StreamProxy {
	stopCtx, stop := context.WithCancel(context.Background())
	return &StreamProxy{
		Base:    newBase(meta, sc, ctrl, opts),
		impl:    sc,
		stopCtx: stopCtx,
		stop:    stop,
	}
}

// GetMetricTypes implements rpc.StreamCollectorServer.
func (p *StreamProxy) GetMetricTypes(ctx context.Context, in *rpc.GetMetricTypesArg) (*rpc.MetricsReply, error) {
	return p.metricTypes(ctx, in, p.impl.GetMetricTypes), nil
}

// Shutdown ends every active stream call and refuses new ones.
func (p *StreamProxy) Shutdown() {
	p.stop()
}

// produced is one relay queue entry: a metric, or the error that ended the
// producer.
type produced struct {
	metric plugin.Metric
	err    error
}

// StreamMetrics implements rpc.StreamCollectorServer. The call lasts until
// the client cancels it, the producer fails, or Shutdown is called.
func (p *StreamProxy) StreamMetrics(in *rpc.StreamMetricsArg, stream rpc.StreamMetricsServer) error {
	id := newStreamID().String()
	policy := ResolveFlushPolicy(in)
	logger := p.logger.With("stream_id", id)

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	unwatch := context.AfterFunc(p.stopCtx, cancel)
	defer unwatch()

	ctx, span := tracer.Start(ctx, "plugin.StreamMetrics",
		trace.WithAttributes(
			attribute.String("stream.id", id),
			attribute.Int("stream.max_buffer", policy.MaxBuffer),
			attribute.String("stream.max_duration", policy.MaxDuration.String()),
		),
	)
	defer span.End()

	logger.DebugContext(ctx, "StreamMetrics called",
		"metrics", len(in.Metrics),
		"max_buffer", policy.MaxBuffer,
		"max_duration", policy.MaxDuration,
		"heartbeat", policy.Heartbeat,
	)
	p.metrics.streamStarted()
	defer p.metrics.streamEnded()

	queue := make(chan produced, p.queueSize)
	done := make(chan struct{})
	go p.produce(ctx, rpc.FromMetrics(in.Metrics), queue, done)

	f := &flusher{
		policy:  policy,
		version: p.version(),
		send:    stream.Send,
		metrics: p.metrics,
		logger:  logger,
	}
	err := f.run(ctx, queue)
	cancel()
	p.awaitProducer(logger, done)
	logger.DebugContext(ctx, "stream call ended", "discarded", len(queue))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return oops.Code("STREAM_SEND_FAILED").With("stream_id", id).Wrap(err)
	}
	return nil
}

func (p *StreamProxy) produce(ctx context.Context, requested []plugin.Metric, queue chan<- produced, done chan<- struct{}) {
	defer close(done)
	idle := time.NewTimer(idleBackoff)
	defer idle.Stop()

	for ctx.Err() == nil {
		var mts []plugin.Metric
		err := errutil.Capture("StreamMetrics", func() error {
			var err error
			mts, err = p.impl.StreamMetrics(ctx, requested)
			return err
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			select {
			case queue <- produced{err: oops.Code("STREAM_PRODUCER_FAILED").Wrap(err)}:
			case <-ctx.Done():
			}
			return
		}
		if len(mts) == 0 {
			idle.Reset(idleBackoff)
			select {
			case <-idle.C:
			case <-ctx.Done():
				return
			}
			continue
		}
		for _, m := range mts {
			select {
			case queue <- produced{metric: m}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// awaitProducer gives the producer a bounded grace to observe cancellation.
// A producer blocked in author code is left to finish on its own.
func (p *StreamProxy) awaitProducer(logger *slog.Logger, done <-chan struct{}) {
	grace := time.NewTimer(p.grace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		logger.Warn("stream producer still running after cancellation", "grace", p.grace)
	}
}

// flusher owns the pending batch of one stream call.
type flusher struct {
	policy  FlushPolicy
	version int64
	send    func(*rpc.MetricsReply) error
	metrics *Metrics
	logger  *slog.Logger
	pending []rpc.Metric
}

// run relays queued metrics as batches until ctx ends or the producer fails.
func (f *flusher) run(ctx context.Context, queue <-chan produced) error {
	deadline := time.NewTimer(f.policy.MaxDuration)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-queue:
			flushed, end, err := f.accept(item)
			if end {
				return f.sendErr(ctx, err)
			}
			if flushed {
				deadline.Reset(f.policy.MaxDuration)
			}
		case <-deadline.C:
			flushed, end, err := f.acceptReady(queue)
			if end {
				return f.sendErr(ctx, err)
			}
			if !flushed {
				if err := f.flushIdle(); err != nil {
					return f.sendErr(ctx, err)
				}
			}
			deadline.Reset(f.policy.MaxDuration)
		}
	}
}

// acceptReady takes metrics already queued when the duration expires, so a
// count threshold reached at the same instant wins the tie.
func (f *flusher) acceptReady(queue <-chan produced) (flushed, end bool, err error) {
	for {
		select {
		case item := <-queue:
			flushed, end, err = f.accept(item)
			if flushed || end {
				return flushed, end, err
			}
		default:
			return false, false, nil
		}
	}
}

// accept adds one entry to the pending batch and flushes on the count trigger.
func (f *flusher) accept(item produced) (flushed, end bool, err error) {
	if item.err != nil {
		return false, true, f.fail(item.err)
	}
	m := item.metric
	if m.Version == 0 {
		m.Version = f.version
	}
	wire, err := rpc.ToMetric(m)
	if err != nil {
		return false, true, f.fail(err)
	}
	f.pending = append(f.pending, wire)
	if f.policy.MaxBuffer == 0 || len(f.pending) >= f.policy.MaxBuffer {
		if err := f.flush(TriggerCount); err != nil {
			return false, true, err
		}
		return true, false, nil
	}
	return false, false, nil
}

func (f *flusher) flushIdle() error {
	switch {
	case len(f.pending) > 0:
		return f.flush(TriggerDuration)
	case f.policy.Heartbeat:
		return f.flush(TriggerHeartbeat)
	default:
		return nil
	}
}

func (f *flusher) flush(trigger string) error {
	batch := f.pending
	f.pending = nil
	if batch == nil {
		batch = []rpc.Metric{}
	}
	if err := f.send(&rpc.MetricsReply{Metrics: batch}); err != nil {
		return err
	}
	f.metrics.recordBatch(trigger, len(batch))
	return nil
}

// fail sends what is pending, then a batch carrying the producer error.
func (f *flusher) fail(cause error) error {
	errutil.LogError(f.logger, "stream producer failed", cause)
	if len(f.pending) > 0 {
		if err := f.flush(TriggerDrain); err != nil {
			return err
		}
	}
	if err := f.send(&rpc.MetricsReply{Error: errutil.FormatWithTrace(cause)}); err != nil {
		return err
	}
	f.metrics.recordBatch(TriggerError, 0)
	return nil
}

// sendErr drops send failures caused by the call ending.
func (f *flusher) sendErr(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil {
		return nil
	}
	return err
}
