package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultReservationPrefix = "dispatch:reserve:driver:"

// RedisReservationStore implements ReservationStore on Redis SETNX, so the
// commit race stays safe across multiple dispatch processes. Reservations
// carry no TTL: availability only flips back through an explicit status
// update, never by expiry.
type RedisReservationStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisReservationStore constructs the store.
func NewRedisReservationStore(client redis.Cmdable, prefix string) *RedisReservationStore {
	if prefix == "" {
		prefix = defaultReservationPrefix
	}
	return &RedisReservationStore{client: client, keyPrefix: prefix}
}

// TryReserve acquires the reservation key with SET NX.
func (r *RedisReservationStore) TryReserve(ctx context.Context, driverID, requestID uuid.UUID) (bool, error) {
	key := r.keyPrefix + driverID.String()
	ok, err := r.client.SetNX(ctx, key, requestID.String(), 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Release deletes the reservation key.
func (r *RedisReservationStore) Release(ctx context.Context, driverID uuid.UUID) error {
	key := r.keyPrefix + driverID.String()
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
