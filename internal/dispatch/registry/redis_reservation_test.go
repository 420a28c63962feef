package registry_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/example/ridedispatch/internal/dispatch/domain"
	"github.com/example/ridedispatch/internal/dispatch/registry"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client
}

func TestRedisReservationStoreReserveAndRelease(t *testing.T) {
	client := newRedisClient(t)
	store := registry.NewRedisReservationStore(client, "")
	ctx := context.Background()
	driverID := uuid.New()

	reserved, err := store.TryReserve(ctx, driverID, uuid.New())
	require.NoError(t, err)
	require.True(t, reserved)

	reserved, err = store.TryReserve(ctx, driverID, uuid.New())
	require.NoError(t, err)
	require.False(t, reserved)

	require.NoError(t, store.Release(ctx, driverID))

	reserved, err = store.TryReserve(ctx, driverID, uuid.New())
	require.NoError(t, err)
	require.True(t, reserved)
}

func TestRedisReservationStoreIndependentDrivers(t *testing.T) {
	client := newRedisClient(t)
	store := registry.NewRedisReservationStore(client, "test:reserve:")
	ctx := context.Background()

	first, err := store.TryReserve(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	require.True(t, first)

	second, err := store.TryReserve(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	require.True(t, second)
}

func TestRegistryBackedByRedisStore(t *testing.T) {
	client := newRedisClient(t)
	store := registry.NewRedisReservationStore(client, "")
	reg := registry.New(store, registry.Config{}, nil)
	ctx := context.Background()

	driverID := uuid.New()
	reg.Upsert(ctx, domain.Driver{ID: driverID, Name: "Bob"})

	require.NoError(t, reg.Commit(ctx, driverID, sampleRequest(), nil, 0))
	require.ErrorIs(t, reg.Commit(ctx, driverID, sampleRequest(), nil, 0), domain.ErrAlreadyAssigned)

	require.NoError(t, reg.UpdateStatus(ctx, driverID, true))
	require.NoError(t, reg.Commit(ctx, driverID, sampleRequest(), nil, 0))
}
