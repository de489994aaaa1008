// Package realtimepb describes the chatrelay.v1.Realtime gRPC service.
// Messages are google.protobuf.Struct envelopes {type, ref, data, timestamp}, so the service
// needs no generated code: the descriptor below plays the role of a *_grpc.pb.go file.
package realtimepb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName                         = "chatrelay.v1.Realtime"
	Realtime_Connect_FullMethodName     = "/" + ServiceName + "/Connect"
	Realtime_GetPresence_FullMethodName = "/" + ServiceName + "/GetPresence"
)

type RealtimeServer interface {
	// Connect is the bidirectional session stream of an authenticated user.
	Connect(grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error
	GetPresence(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type RealtimeClient interface {
	Connect(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error)
	GetPresence(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type realtimeClient struct {
	cc grpc.ClientConnInterface
}

func NewRealtimeClient(cc grpc.ClientConnInterface) RealtimeClient {
	return &realtimeClient{cc: cc}
}

func (c *realtimeClient) Connect(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &Realtime_ServiceDesc.Streams[0], Realtime_Connect_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}, nil
}

func (c *realtimeClient) GetPresence(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Realtime_GetPresence_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterRealtimeServer(s grpc.ServiceRegistrar, srv RealtimeServer) {
	s.RegisterService(&Realtime_ServiceDesc, srv)
}

func _Realtime_Connect_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(RealtimeServer).Connect(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

func _Realtime_GetPresence_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RealtimeServer).GetPresence(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Realtime_GetPresence_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RealtimeServer).GetPresence(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var Realtime_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RealtimeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetPresence",
			Handler:    _Realtime_GetPresence_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       _Realtime_Connect_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "chatrelay/v1/realtime.proto",
}
