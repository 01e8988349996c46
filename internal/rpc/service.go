// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/holomush/snapplugin/pkg/plugin"
)

// Fully qualified service names.
const (
	CollectorServiceName       = "snap.plugin.rpc.Collector"
	ProcessorServiceName       = "snap.plugin.rpc.Processor"
	PublisherServiceName       = "snap.plugin.rpc.Publisher"
	StreamCollectorServiceName = "snap.plugin.rpc.StreamCollector"
)

// ServiceName returns the service a plugin of the given kind serves.
func ServiceName(k plugin.Kind) string {
	switch k {
	case plugin.KindCollector:
		return CollectorServiceName
	case plugin.KindProcessor:
		return ProcessorServiceName
	case plugin.KindPublisher:
		return PublisherServiceName
	case plugin.KindStreamCollector:
		return StreamCollectorServiceName
	default:
		return ""
	}
}

// BaseServer holds the calls every plugin kind answers.
type BaseServer interface {
	Ping(context.Context, *emptypb.Empty) (*ErrReply, error)
	Kill(context.Context, *emptypb.Empty) (*ErrReply, error)
	GetConfigPolicy(context.Context, *emptypb.Empty) (*GetConfigPolicyReply, error)
}

// CollectorServer is the server API of the Collector service.
type CollectorServer interface {
	BaseServer
	CollectMetrics(context.Context, *MetricsArg) (*MetricsReply, error)
	GetMetricTypes(context.Context, *GetMetricTypesArg) (*MetricsReply, error)
}

// ProcessorServer is the server API of the Processor service.
type ProcessorServer interface {
	BaseServer
	Process(context.Context, *PubProcArg) (*MetricsReply, error)
}

// PublisherServer is the server API of the Publisher service.
type PublisherServer interface {
	BaseServer
	Publish(context.Context, *PubProcArg) (*ErrReply, error)
}

// StreamMetricsServer is the server side of a StreamMetrics call.
type StreamMetricsServer = grpc.ServerStreamingServer[MetricsReply]

// StreamMetricsClient is the client side of a StreamMetrics call.
type StreamMetricsClient = grpc.ServerStreamingClient[MetricsReply]

// StreamCollectorServer is the server API of the StreamCollector service.
type StreamCollectorServer interface {
	BaseServer
	GetMetricTypes(context.Context, *GetMetricTypesArg) (*MetricsReply, error)
	StreamMetrics(*StreamMetricsArg, StreamMetricsServer) error
}

func unary[S, Req, Res any](service, method string, call func(S, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func baseMethods(service string, extra ...grpc.MethodDesc) []grpc.MethodDesc {
	return append([]grpc.MethodDesc{
		unary(service, "Ping", BaseServer.Ping),
		unary(service, "Kill", BaseServer.Kill),
		unary(service, "GetConfigPolicy", BaseServer.GetConfigPolicy),
	}, extra...)
}

func streamMetricsHandler(srv any, stream grpc.ServerStream) error {
	in := new(StreamMetricsArg)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(StreamCollectorServer).StreamMetrics(in, &grpc.GenericServerStream[StreamMetricsArg, MetricsReply]{ServerStream: stream})
}

// CollectorServiceDesc describes the Collector service.
var CollectorServiceDesc = grpc.ServiceDesc{
	ServiceName: CollectorServiceName,
	HandlerType: (*CollectorServer)(nil),
	Methods: baseMethods(CollectorServiceName,
		unary(CollectorServiceName, "CollectMetrics", CollectorServer.CollectMetrics),
		unary(CollectorServiceName, "GetMetricTypes", CollectorServer.GetMetricTypes),
	),
}

// ProcessorServiceDesc describes the Processor service.
var ProcessorServiceDesc = grpc.ServiceDesc{
	ServiceName: ProcessorServiceName,
	HandlerType: (*ProcessorServer)(nil),
	Methods: baseMethods(ProcessorServiceName,
		unary(ProcessorServiceName, "Process", ProcessorServer.Process),
	),
}

// PublisherServiceDesc describes the Publisher service.
var PublisherServiceDesc = grpc.ServiceDesc{
	ServiceName: PublisherServiceName,
	HandlerType: (*PublisherServer)(nil),
	Methods: baseMethods(PublisherServiceName,
		unary(PublisherServiceName, "Publish", PublisherServer.Publish),
	),
}

// StreamCollectorServiceDesc describes the StreamCollector service.
var StreamCollectorServiceDesc = grpc.ServiceDesc{
	ServiceName: StreamCollectorServiceName,
	HandlerType: (*StreamCollectorServer)(nil),
	Methods: baseMethods(StreamCollectorServiceName,
		unary(StreamCollectorServiceName, "GetMetricTypes", StreamCollectorServer.GetMetricTypes),
	),
	Streams: []grpc.StreamDesc{{
		StreamName:    "StreamMetrics",
		Handler:       streamMetricsHandler,
		ServerStreams: true,
	}},
}

// RegisterCollectorServer registers srv with s.
func RegisterCollectorServer(s grpc.ServiceRegistrar, srv CollectorServer) {
	s.RegisterService(&CollectorServiceDesc, srv)
}

// RegisterProcessorServer registers srv with s.
func RegisterProcessorServer(s grpc.ServiceRegistrar, srv ProcessorServer) {
	s.RegisterService(&ProcessorServiceDesc, srv)
}

// RegisterPublisherServer registers srv with s.
func RegisterPublisherServer(s grpc.ServiceRegistrar, srv PublisherServer) {
	s.RegisterService(&PublisherServiceDesc, srv)
}

// RegisterStreamCollectorServer registers srv with s.
func RegisterStreamCollectorServer(s grpc.ServiceRegistrar, srv StreamCollectorServer) {
	s.RegisterService(&StreamCollectorServiceDesc, srv)
}

// BaseClient issues the calls shared by every service. Calls default to the
// json codec; pass grpc.CallContentSubtype(CodecCBOR) to switch.
type BaseClient struct {
	cc      grpc.ClientConnInterface
	service string
	opts    []grpc.CallOption
}

func newBaseClient(cc grpc.ClientConnInterface, service string, opts []grpc.CallOption) BaseClient {
	return BaseClient{
		cc:      cc,
		service: service,
		opts:    append([]grpc.CallOption{grpc.StaticMethod(), grpc.CallContentSubtype(CodecJSON)}, opts...),
	}
}

func (c *BaseClient) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	out := make([]grpc.CallOption, 0, len(c.opts)+len(opts))
	return append(append(out, c.opts...), opts...)
}

func (c *BaseClient) fullMethod(method string) string {
	return "/" + c.service + "/" + method
}

func invoke[Res any](ctx context.Context, c *BaseClient, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	if err := c.cc.Invoke(ctx, c.fullMethod(method), in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping reports liveness to the plugin.
func (c *BaseClient) Ping(ctx context.Context, opts ...grpc.CallOption) (*ErrReply, error) {
	return invoke[ErrReply](ctx, c, "Ping", &emptypb.Empty{}, opts)
}

// Kill asks the plugin to shut down.
func (c *BaseClient) Kill(ctx context.Context, opts ...grpc.CallOption) (*ErrReply, error) {
	return invoke[ErrReply](ctx, c, "Kill", &emptypb.Empty{}, opts)
}

// GetConfigPolicy fetches the plugin's config policy.
func (c *BaseClient) GetConfigPolicy(ctx context.Context, opts ...grpc.CallOption) (*GetConfigPolicyReply, error) {
	return invoke[GetConfigPolicyReply](ctx, c, "GetConfigPolicy", &emptypb.Empty{}, opts)
}

// CollectorClient calls the Collector service.
type CollectorClient struct{ BaseClient }

// NewCollectorClient returns a Collector client on cc.
func NewCollectorClient(cc grpc.ClientConnInterface, opts ...grpc.CallOption) *CollectorClient {
	return &CollectorClient{newBaseClient(cc, CollectorServiceName, opts)}
}

func (c *CollectorClient) CollectMetrics(ctx context.Context, in *MetricsArg, opts ...grpc.CallOption) (*MetricsReply, error) {
	return invoke[MetricsReply](ctx, &c.BaseClient, "CollectMetrics", in, opts)
}

func (c *CollectorClient) GetMetricTypes(ctx context.Context, in *GetMetricTypesArg, opts ...grpc.CallOption) (*MetricsReply, error) {
	return invoke[MetricsReply](ctx, &c.BaseClient, "GetMetricTypes", in, opts)
}

// ProcessorClient calls the Processor service.
type ProcessorClient struct{ BaseClient }

// NewProcessorClient returns a Processor client on cc.
func NewProcessorClient(cc grpc.ClientConnInterface, opts ...grpc.CallOption) *ProcessorClient {
	return &ProcessorClient{newBaseClient(cc, ProcessorServiceName, opts)}
}

func (c *ProcessorClient) Process(ctx context.Context, in *PubProcArg, opts ...grpc.CallOption) (*MetricsReply, error) {
	return invoke[MetricsReply](ctx, &c.BaseClient, "Process", in, opts)
}

// PublisherClient calls the Publisher service.
type PublisherClient struct{ BaseClient }

// NewPublisherClient returns a Publisher client on cc.
func NewPublisherClient(cc grpc.ClientConnInterface, opts ...grpc.CallOption) *PublisherClient {
	return &PublisherClient{newBaseClient(cc, PublisherServiceName, opts)}
}

func (c *PublisherClient) Publish(ctx context.Context, in *PubProcArg, opts ...grpc.CallOption) (*ErrReply, error) {
	return invoke[ErrReply](ctx, &c.BaseClient, "Publish", in, opts)
}

// StreamCollectorClient calls the StreamCollector service.
type StreamCollectorClient struct{ BaseClient }

// NewStreamCollectorClient returns a StreamCollector client on cc.
func NewStreamCollectorClient(cc grpc.ClientConnInterface, opts ...grpc.CallOption) *StreamCollectorClient {
	return &StreamCollectorClient{newBaseClient(cc, StreamCollectorServiceName, opts)}
}

func (c *StreamCollectorClient) GetMetricTypes(ctx context.Context, in *GetMetricTypesArg, opts ...grpc.CallOption) (*MetricsReply, error) {
	return invoke[MetricsReply](ctx, &c.BaseClient, "GetMetricTypes", in, opts)
}

// StreamMetrics opens a stream call. The call ends when ctx is cancelled.
func (c *StreamCollectorClient) StreamMetrics(ctx context.Context, in *StreamMetricsArg, opts ...grpc.CallOption) (StreamMetricsClient, error) {
	stream, err := c.cc.NewStream(ctx, &StreamCollectorServiceDesc.Streams[0], c.fullMethod("StreamMetrics"), c.callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[StreamMetricsArg, MetricsReply]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
