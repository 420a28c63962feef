package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/ridedispatch/internal/dispatch/domain"
)

// Notifier sends passenger-facing messages to a NATS subject keyed by
// passenger id. Delivery failures are logged and swallowed: the dispatch
// core's contract is fire-and-forget.
type Notifier struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNotifier builds a Notifier. A nil connection degrades to log-only.
func NewNotifier(conn *nats.Conn, subject string, logger *zap.Logger) *Notifier {
	if subject == "" {
		subject = "dispatch.notifications"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{conn: conn, subject: subject, logger: logger}
}

type notification struct {
	PassengerID string `json:"passenger_id"`
	RequestID   string `json:"request_id"`
	Message     string `json:"message"`
}

// NotifyAssigned tells the passenger a driver is on the way.
func (n *Notifier) NotifyAssigned(_ context.Context, request *domain.RideRequest, driver domain.Driver, etaMinutes float64) error {
	message := fmt.Sprintf("%s is on the way. Estimated arrival time: %.2f minutes", driver.Name, etaMinutes)
	return n.send(request, message)
}

// NotifyWaiting tells the passenger the request is queued for a later retry.
func (n *Notifier) NotifyWaiting(_ context.Context, request *domain.RideRequest) error {
	return n.send(request, "You are in the waiting queue for a ride. We'll notify you when a driver becomes available.")
}

func (n *Notifier) send(request *domain.RideRequest, message string) error {
	n.logger.Info("notifying passenger",
		zap.String("passenger_id", request.PassengerID.String()),
		zap.String("request_id", request.ID.String()),
		zap.String("message", message))

	if n.conn == nil {
		return nil
	}
	payload, err := json.Marshal(notification{
		PassengerID: request.PassengerID.String(),
		RequestID:   request.ID.String(),
		Message:     message,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", n.subject, request.PassengerID)
	return n.conn.Publish(subject, payload)
}
