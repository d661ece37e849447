package visualiser

import (
	"context"

	"github.com/banshee-data/radarchain/internal/monitoring"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Ensure Server implements the gRPC interface.
var _ TargetStreamServer = (*Server)(nil)

// Server implements the TargetStream service on top of a Publisher.
type Server struct {
	publisher *Publisher
}

// NewServer creates a new gRPC server.
func NewServer(publisher *Publisher) *Server {
	return &Server{publisher: publisher}
}

// GetCapabilities reports the sensor ID and client limits.
func (s *Server) GetCapabilities(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	st := s.publisher.Stats()
	return structpb.NewStruct(map[string]interface{}{
		"sensor_id":   s.publisher.config.SensorID,
		"max_clients": float64(s.publisher.config.MaxClients),
		"clients":     float64(st.ClientCount),
		"frames":      float64(st.FrameCount),
		"ghosts":      true,
	})
}

// StreamFrames streams every published frame until the client leaves or the
// publisher stops.
func (s *Server) StreamFrames(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	includeGhosts := req.GetFields()["include_ghosts"].GetBoolValue()
	client, err := s.publisher.addClient(includeGhosts)
	if err != nil {
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	defer s.publisher.removeClient(client.id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.publisher.stopCh:
			return nil
		case frame := <-client.frameCh:
			msg, err := frameToProto(frame, client.includeGhosts)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(msg); err != nil {
				monitoring.Logf("[gRPC] Send error: %v", err)
				return err
			}
		}
	}
}
