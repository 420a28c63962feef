// Package location ingests streamed driver position updates and feeds them
// into the driver registry.
package location

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/ridedispatch/internal/dispatch/domain"
)

// Sink receives position updates; the driver registry implements it.
type Sink interface {
	UpdateLocation(ctx context.Context, driverID uuid.UUID, location domain.Coordinate) error
}

// Server implements PositionServer on top of a Sink.
type Server struct {
	sink   Sink
	logger *zap.Logger
}

// NewServer constructs a Server.
func NewServer(sink Sink, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{sink: sink, logger: logger}
}

// StreamPositions consumes position updates until the client closes the
// stream. Updates for unknown or unparsable driver ids are dropped; the
// stream stays open.
func (s *Server) StreamPositions(stream Position_StreamPositionsServer) error {
	var received int64
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&Ack{Received: received})
		}
		if err != nil {
			return err
		}
		driverID, err := uuid.Parse(msg.DriverId)
		if err != nil {
			s.logger.Warn("bad driver id on position stream", zap.String("driver_id", msg.DriverId))
			continue
		}
		err = s.sink.UpdateLocation(stream.Context(), driverID, domain.Coordinate{Lat: msg.Lat, Lng: msg.Lng})
		if err != nil && !errors.Is(err, domain.ErrDriverNotFound) {
			return err
		}
		received++
	}
}
