// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package client is the orchestrator side of the plugin protocol: it reads a
// plugin's handshake preamble, dials the advertised address and issues the
// typed calls for the plugin's kind.
package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/holomush/snapplugin/internal/preamble"
	"github.com/holomush/snapplugin/internal/rpc"
	plugintls "github.com/holomush/snapplugin/internal/tls"
	"github.com/holomush/snapplugin/pkg/errutil"
	"github.com/holomush/snapplugin/pkg/plugin"
)

// Preamble is the handshake document a plugin writes on startup.
type Preamble = preamble.Preamble

// Codec names accepted by DialConfig.Codec.
const (
	CodecJSON = rpc.CodecJSON
	CodecCBOR = rpc.CodecCBOR
)

// Error codes.
const (
	CodePluginFailed = "PLUGIN_FAILED"
	CodeWrongKind    = "WRONG_KIND"
	CodeCallFailed   = "CALL_FAILED"
)

// ReadPreamble reads one line from r and decodes it. A preamble reporting
// failed bootstrap is returned together with a PLUGIN_FAILED error.
func ReadPreamble(r io.Reader) (Preamble, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
		return Preamble{}, oops.Code("INVALID_PREAMBLE").Wrapf(err, "read preamble")
	}
	if err := preamble.Validate(line); err != nil {
		return Preamble{}, err
	}
	pre, err := preamble.Decode(line)
	if err != nil {
		return pre, err
	}
	if pre.State != preamble.StateSuccess {
		msg := "unknown error"
		if pre.ErrorMessage != nil {
			msg = *pre.ErrorMessage
		}
		return pre, oops.Code(CodePluginFailed).With("plugin", pre.Meta.Name).Errorf("plugin failed to start: %s", msg)
	}
	return pre, nil
}

// DialConfig holds the orchestrator-side connection settings.
type DialConfig struct {
	// RootCertPaths verify the plugin's certificate when it advertises TLS.
	RootCertPaths []string
	// CertPath and KeyPath are the client certificate presented to the plugin.
	CertPath string
	KeyPath  string
	// Codec selects the wire encoding; CodecJSON when empty.
	Codec string

	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// Client issues calls to one plugin.
type Client struct {
	conn    *grpc.ClientConn
	kind    plugin.Kind
	version int64

	base      *rpc.BaseClient
	collector *rpc.CollectorClient
	processor *rpc.ProcessorClient
	publisher *rpc.PublisherClient
	streamer  *rpc.StreamCollectorClient
}

// Dial connects to the plugin described by pre.
func Dial(_ context.Context, pre Preamble, cfg DialConfig) (*Client, error) {
	if pre.ListenAddress == "" {
		return nil, oops.Code("INVALID_PREAMBLE").Errorf("preamble has no listen address")
	}
	if cfg.KeepaliveTime == 0 {
		cfg.KeepaliveTime = 10 * time.Second
	}
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = 5 * time.Second
	}
	if cfg.Codec == "" {
		cfg.Codec = CodecJSON
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	}
	if pre.Meta.TLSEnabled {
		roots := cfg.RootCertPaths
		if len(roots) == 0 {
			roots = pre.Meta.RootCertPaths
		}
		tlsCfg, err := plugintls.ClientConfig(roots, cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(pre.ListenAddress, opts...)
	if err != nil {
		return nil, oops.Code("DIAL_FAILED").With("addr", pre.ListenAddress).Wrap(err)
	}

	codec := grpc.CallContentSubtype(cfg.Codec)
	c := &Client{
		conn:    conn,
		kind:    plugin.Kind(pre.Meta.Type),
		version: int64(pre.Meta.Version),
	}
	switch c.kind {
	case plugin.KindCollector:
		c.collector = rpc.NewCollectorClient(conn, codec)
		c.base = &c.collector.BaseClient
	case plugin.KindProcessor:
		c.processor = rpc.NewProcessorClient(conn, codec)
		c.base = &c.processor.BaseClient
	case plugin.KindPublisher:
		c.publisher = rpc.NewPublisherClient(conn, codec)
		c.base = &c.publisher.BaseClient
	case plugin.KindStreamCollector:
		c.streamer = rpc.NewStreamCollectorClient(conn, codec)
		c.base = &c.streamer.BaseClient
	default:
		_ = conn.Close()
		return nil, oops.Code(CodeWrongKind).With("kind", pre.Meta.Type).Errorf("unknown plugin kind %d", pre.Meta.Type)
	}
	return c, nil
}

// Kind returns the plugin kind advertised in the preamble.
func (c *Client) Kind() plugin.Kind {
	return c.kind
}

// Close releases the connection.
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil {
		return oops.Wrap(err)
	}
	return nil
}

// Ping sends a health check.
func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.base.Ping(ctx)
	return replyError("Ping", reply, err)
}

// Kill asks the plugin to shut down.
func (c *Client) Kill(ctx context.Context) error {
	reply, err := c.base.Kill(ctx)
	return replyError("Kill", reply, err)
}

// GetConfigPolicy fetches the plugin's config policy.
func (c *Client) GetConfigPolicy(ctx context.Context) (plugin.ConfigPolicy, error) {
	reply, err := c.base.GetConfigPolicy(ctx)
	if err != nil {
		return plugin.ConfigPolicy{}, callError("GetConfigPolicy", err)
	}
	if reply.Error != "" {
		return plugin.ConfigPolicy{}, pluginError("GetConfigPolicy", reply.Error)
	}
	return rpc.FromConfigPolicyReply(reply), nil
}

// GetMetricTypes fetches the catalog of a collector or stream collector.
func (c *Client) GetMetricTypes(ctx context.Context, cfg plugin.ConfigMap) ([]plugin.Metric, error) {
	arg := &rpc.GetMetricTypesArg{Config: rpc.ToConfigMap(cfg)}
	var (
		reply *rpc.MetricsReply
		err   error
	)
	switch {
	case c.collector != nil:
		reply, err = c.collector.GetMetricTypes(ctx, arg)
	case c.streamer != nil:
		reply, err = c.streamer.GetMetricTypes(ctx, arg)
	default:
		return nil, c.wrongKind("GetMetricTypes")
	}
	return metricsReply("GetMetricTypes", reply, err)
}

// CollectMetrics asks a collector for values.
func (c *Client) CollectMetrics(ctx context.Context, mts []plugin.Metric) ([]plugin.Metric, error) {
	if c.collector == nil {
		return nil, c.wrongKind("CollectMetrics")
	}
	arg, err := rpc.ToMetrics(mts, c.version)
	if err != nil {
		return nil, err
	}
	reply, err := c.collector.CollectMetrics(ctx, &rpc.MetricsArg{Metrics: arg})
	return metricsReply("CollectMetrics", reply, err)
}

// Process sends metrics through a processor.
func (c *Client) Process(ctx context.Context, mts []plugin.Metric, cfg plugin.ConfigMap) ([]plugin.Metric, error) {
	if c.processor == nil {
		return nil, c.wrongKind("Process")
	}
	arg, err := rpc.ToMetrics(mts, c.version)
	if err != nil {
		return nil, err
	}
	reply, err := c.processor.Process(ctx, &rpc.PubProcArg{Metrics: arg, Config: rpc.ToConfigMap(cfg)})
	return metricsReply("Process", reply, err)
}

// Publish hands metrics to a publisher.
func (c *Client) Publish(ctx context.Context, mts []plugin.Metric, cfg plugin.ConfigMap) error {
	if c.publisher == nil {
		return c.wrongKind("Publish")
	}
	arg, err := rpc.ToMetrics(mts, c.version)
	if err != nil {
		return err
	}
	reply, err := c.publisher.Publish(ctx, &rpc.PubProcArg{Metrics: arg, Config: rpc.ToConfigMap(cfg)})
	return replyError("Publish", reply, err)
}

// StreamOptions tune one stream call. Zero values leave the plugin's
// defaults in place.
type StreamOptions struct {
	MaxMetricsBuffer   int64
	MaxCollectDuration time.Duration
	Config             plugin.ConfigMap
}

// Recv returns the next batch of a stream call. It returns io.EOF once the
// plugin ends the call, and a PLUGIN_FAILED error for an error batch.
type Recv func() ([]plugin.Metric, error)

// StreamMetrics opens a stream call on a stream collector. Cancelling ctx
// ends the call.
func (c *Client) StreamMetrics(ctx context.Context, mts []plugin.Metric, opts StreamOptions) (Recv, error) {
	if c.streamer == nil {
		return nil, c.wrongKind("StreamMetrics")
	}
	arg, err := rpc.ToMetrics(mts, c.version)
	if err != nil {
		return nil, err
	}
	stream, err := c.streamer.StreamMetrics(ctx, &rpc.StreamMetricsArg{
		Metrics:            arg,
		Config:             rpc.ToConfigMap(opts.Config),
		MaxMetricsBuffer:   opts.MaxMetricsBuffer,
		MaxCollectDuration: int64(opts.MaxCollectDuration),
	})
	if err != nil {
		return nil, callError("StreamMetrics", err)
	}
	return func() ([]plugin.Metric, error) {
		reply, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return metricsReply("StreamMetrics", reply, err)
	}, nil
}

func (c *Client) wrongKind(method string) error {
	return oops.Code(CodeWrongKind).
		With("method", method).
		With("kind", c.kind.String()).
		Errorf("%s is not served by %s plugins", method, c.kind)
}

func callError(method string, err error) error {
	return oops.Code(CodeCallFailed).With("method", method).Wrapf(err, "%s", method)
}

// pluginError keeps the plugin's own stack trace out of the message and in
// the error context under "plugin_stack".
func pluginError(method, reply string) error {
	b := oops.Code(CodePluginFailed).With("method", method)
	msg, stack, ok := errutil.ParseTrace(reply)
	if ok {
		b = b.With("plugin_stack", stack)
	}
	return b.Errorf("%s", msg)
}

func replyError(method string, reply *rpc.ErrReply, err error) error {
	if err != nil {
		return callError(method, err)
	}
	if reply.Error != "" {
		return pluginError(method, reply.Error)
	}
	return nil
}

func metricsReply(method string, reply *rpc.MetricsReply, err error) ([]plugin.Metric, error) {
	if err != nil {
		return nil, callError(method, err)
	}
	if reply.Error != "" {
		return nil, pluginError(method, reply.Error)
	}
	return rpc.FromMetrics(reply.Metrics), nil
}
