// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package proxy

import (
	"context"

	"github.com/holomush/snapplugin/internal/rpc"
	"github.com/holomush/snapplugin/pkg/plugin"
)

// CollectorProxy serves the Collector service.
type CollectorProxy struct {
	*Base
	impl plugin.Collector
}

var _ rpc.CollectorServer = (*CollectorProxy)(nil)

// NewCollector returns a proxy dispatching to c.
func NewCollector(meta plugin.Meta, c plugin.Collector, ctrl Controller, opts ...Option) *CollectorProxy {
	return &CollectorProxy{Base: newBase(meta, c, ctrl, opts), impl: c}
}

// CollectMetrics implements rpc.CollectorServer.
func (p *CollectorProxy) CollectMetrics(ctx context.Context, in *rpc.MetricsArg) (*rpc.MetricsReply, error) {
	reply := &rpc.MetricsReply{}
	reply.Error = p.dispatch(ctx, "CollectMetrics", func(ctx context.Context) error {
		mts, err := p.impl.CollectMetrics(ctx, rpc.FromMetrics(in.Metrics))
		if err != nil {
			return err
		}
		reply.Metrics, err = rpc.ToMetrics(mts, p.version())
		return err
	})
	if reply.Error != "" {
		reply.Metrics = nil
	}
	return reply, nil
}

// GetMetricTypes implements rpc.CollectorServer.
func (p *CollectorProxy) GetMetricTypes(ctx context.Context, in *rpc.GetMetricTypesArg) (*rpc.MetricsReply, error) {
	return p.metricTypes(ctx, in, p.impl.GetMetricTypes), nil
}

// ProcessorProxy serves the Processor service.
type ProcessorProxy struct {
	*Base
	impl plugin.Processor
}

var _ rpc.ProcessorServer = (*ProcessorProxy)(nil)

// NewProcessor returns a proxy dispatching to pr.
func NewProcessor(meta plugin.Meta, pr plugin.Processor, ctrl Controller, opts ...Option) *ProcessorProxy {
	return &ProcessorProxy{Base: newBase(meta, pr, ctrl, opts), impl: pr}
}

// Process implements rpc.ProcessorServer.
func (p *ProcessorProxy) Process(ctx context.Context, in *rpc.PubProcArg) (*rpc.MetricsReply, error) {
	reply := &rpc.MetricsReply{}
	reply.Error = p.dispatch(ctx, "Process", func(ctx context.Context) error {
		mts, err := p.impl.Process(ctx, rpc.FromMetrics(in.Metrics), rpc.FromConfigMap(in.Config))
		if err != nil {
			return err
		}
		reply.Metrics, err = rpc.ToMetrics(mts, p.version())
		return err
	})
	if reply.Error != "" {
		reply.Metrics = nil
	}
	return reply, nil
}

// PublisherProxy serves the Publisher service.
type PublisherProxy struct {
	*Base
	impl plugin.Publisher
}

var _ rpc.PublisherServer = (*PublisherProxy)(nil)

// NewPublisher returns a proxy dispatching to pub.
func NewPublisher(meta plugin.Meta, pub plugin.Publisher, ctrl Controller, opts ...Option) *PublisherProxy {
	return &PublisherProxy{Base: newBase(meta, pub, ctrl, opts), impl: pub}
}

// Publish implements rpc.PublisherServer.
func (p *PublisherProxy) Publish(ctx context.Context, in *rpc.PubProcArg) (*rpc.ErrReply, error) {
	msg := p.dispatch(ctx, "Publish", func(ctx context.Context) error {
		return p.impl.Publish(ctx, rpc.FromMetrics(in.Metrics), rpc.FromConfigMap(in.Config))
	})
	return &rpc.ErrReply{Error: msg}, nil
}
