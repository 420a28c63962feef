package location

import "google.golang.org/grpc"

// PositionUpdate is a single driver position report on the stream.
type PositionUpdate struct {
	DriverId string
	Lat      float64
	Lng      float64
	Ts       int64
}

// Ack closes the stream.
type Ack struct {
	Received int64
}

// PositionServer defines the gRPC contract for driver position ingestion.
type PositionServer interface {
	StreamPositions(Position_StreamPositionsServer) error
}

// RegisterPositionServer registers the service implementation.
func RegisterPositionServer(s *grpc.Server, srv PositionServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "dispatch.Position",
		HandlerType: (*PositionServer)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "StreamPositions",
			Handler:       _Position_StreamPositions_Handler,
			ServerStreams: true,
			ClientStreams: true,
		}},
	}, srv)
}

// Position_StreamPositionsServer is the server view of the position stream.
type Position_StreamPositionsServer interface {
	grpc.ServerStream
	SendAndClose(*Ack) error
	Recv() (*PositionUpdate, error)
}

func _Position_StreamPositions_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(PositionServer).StreamPositions(&positionStreamServer{ServerStream: stream})
}

type positionStreamServer struct {
	grpc.ServerStream
}

func (s *positionStreamServer) SendAndClose(ack *Ack) error {
	return s.ServerStream.SendMsg(ack)
}

func (s *positionStreamServer) Recv() (*PositionUpdate, error) {
	msg := new(PositionUpdate)
	if err := s.ServerStream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
