package visualiser

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of the TargetStream service.
const (
	ServiceName           = "radarchain.visualiser.v1.TargetStream"
	GetCapabilitiesMethod = "/" + ServiceName + "/GetCapabilities"
	StreamFramesMethod    = "/" + ServiceName + "/StreamFrames"
)

// TargetStreamServer is the server API of the TargetStream service.
// Messages are well-known protobuf types, so no generated code is needed.
type TargetStreamServer interface {
	GetCapabilities(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StreamFrames(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// ServiceDesc describes the TargetStream service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TargetStreamServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetCapabilities",
			Handler:    getCapabilitiesHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFrames",
			Handler:       streamFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "radarchain/visualiser/v1/targets.proto",
}

// RegisterTargetStreamServer registers srv on s.
func RegisterTargetStreamServer(s grpc.ServiceRegistrar, srv TargetStreamServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getCapabilitiesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TargetStreamServer).GetCapabilities(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetCapabilitiesMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TargetStreamServer).GetCapabilities(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func streamFramesHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(TargetStreamServer).StreamFrames(m, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// TargetStreamClient is the client API of the TargetStream service.
type TargetStreamClient struct {
	cc grpc.ClientConnInterface
}

// NewTargetStreamClient wraps a client connection.
func NewTargetStreamClient(cc grpc.ClientConnInterface) *TargetStreamClient {
	return &TargetStreamClient{cc: cc}
}

// GetCapabilities reports the publisher's sensor and client limits.
func (c *TargetStreamClient) GetCapabilities(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetCapabilitiesMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamFrames subscribes to the live frame stream. req may carry
// "include_ghosts": true.
func (c *TargetStreamClient) StreamFrames(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], StreamFramesMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
