package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/ridedispatch/internal/dispatch/domain"
)

const (
	defaultQueueKey  = "dispatch:requests"
	defaultCancelKey = "dispatch:requests:canceled"
)

// Redis is a Queue on a Redis list, so request ingestion can run in a
// different process than dispatch. Cancellations go through a side set that
// is checked when the request is popped.
type Redis struct {
	client    redis.Cmdable
	queueKey  string
	cancelKey string
}

// NewRedis constructs the queue. Empty keys fall back to defaults.
func NewRedis(client redis.Cmdable, queueKey, cancelKey string) *Redis {
	if queueKey == "" {
		queueKey = defaultQueueKey
	}
	if cancelKey == "" {
		cancelKey = defaultCancelKey
	}
	return &Redis{client: client, queueKey: queueKey, cancelKey: cancelKey}
}

type wireRequest struct {
	ID            uuid.UUID         `json:"id"`
	PassengerID   uuid.UUID         `json:"passenger_id"`
	PassengerName string            `json:"passenger_name"`
	Pickup        domain.Coordinate `json:"pickup"`
	Dropoff       domain.Coordinate `json:"dropoff"`
	RequestedAt   time.Time         `json:"requested_at"`
	Canceled      bool              `json:"canceled"`
}

// Enqueue pushes the request onto the list tail.
func (r *Redis) Enqueue(ctx context.Context, request *domain.RideRequest) error {
	payload, err := json.Marshal(wireRequest{
		ID:            request.ID,
		PassengerID:   request.PassengerID,
		PassengerName: request.PassengerName,
		Pickup:        request.Pickup,
		Dropoff:       request.Dropoff,
		RequestedAt:   request.RequestedAt,
		Canceled:      request.IsCanceled(),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := r.client.RPush(ctx, r.queueKey, payload).Err(); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

// Dequeue pops the head request and applies any pending cancellation.
func (r *Redis) Dequeue(ctx context.Context) (*domain.RideRequest, bool, error) {
	payload, err := r.client.LPop(ctx, r.queueKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis lpop: %w", err)
	}

	var wire wireRequest
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, false, fmt.Errorf("unmarshal request: %w", err)
	}

	request := &domain.RideRequest{
		ID:            wire.ID,
		PassengerID:   wire.PassengerID,
		PassengerName: wire.PassengerName,
		Pickup:        wire.Pickup,
		Dropoff:       wire.Dropoff,
		RequestedAt:   wire.RequestedAt,
	}
	if wire.Canceled {
		request.Cancel()
	}

	canceled, err := r.client.SRem(ctx, r.cancelKey, wire.ID.String()).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis srem: %w", err)
	}
	if canceled > 0 {
		request.Cancel()
	}
	return request, true, nil
}

// Cancel records the cancellation for pickup at dequeue time.
func (r *Redis) Cancel(ctx context.Context, requestID uuid.UUID) (bool, error) {
	added, err := r.client.SAdd(ctx, r.cancelKey, requestID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("redis sadd: %w", err)
	}
	return added > 0, nil
}

// Len returns the list length.
func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return int(n), nil
}
