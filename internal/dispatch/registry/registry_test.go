package registry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/ridedispatch/internal/dispatch/domain"
	"github.com/example/ridedispatch/internal/dispatch/registry"
)

func newRegistry(cfg registry.Config) *registry.Registry {
	return registry.New(registry.NewMemoryReservationStore(), cfg, nil)
}

func sampleRequest() *domain.RideRequest {
	return domain.NewRideRequest(uuid.New(), "John",
		domain.Coordinate{Lat: 48.8566, Lng: 2.3522},
		domain.Coordinate{Lat: 52.5200, Lng: 13.4050},
		time.Unix(0, 0).UTC())
}

func TestAvailableFiltersByStatusAndRadius(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(registry.Config{MaxRadiusKm: 500})

	near := domain.Driver{ID: uuid.New(), Name: "Alice", Location: domain.Coordinate{Lat: 51.5074, Lng: -0.1278}}
	far := domain.Driver{ID: uuid.New(), Name: "Bob", Location: domain.Coordinate{Lat: 40.7128, Lng: -74.0060}}
	reg.Upsert(ctx, near)
	reg.Upsert(ctx, far)

	pickup := domain.Coordinate{Lat: 48.8566, Lng: 2.3522} // Paris; London is ~344km, New York ~5837km
	candidates := reg.Available(ctx, pickup)
	require.Len(t, candidates, 1)
	require.Equal(t, near.ID, candidates[0].ID)

	// Unbounded radius admits everyone who is free.
	unbounded := newRegistry(registry.Config{})
	unbounded.Upsert(ctx, near)
	unbounded.Upsert(ctx, far)
	require.Len(t, unbounded.Available(ctx, pickup), 2)
}

func TestCommitFlipsAvailabilityAndAttachesRequest(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(registry.Config{})
	driver := domain.Driver{ID: uuid.New(), Name: "Bob", Location: domain.Coordinate{Lat: 40.7128, Lng: -74.0060}}
	reg.Upsert(ctx, driver)

	req := sampleRequest()
	route := []domain.NodeID{"B", "A"}
	require.NoError(t, reg.Commit(ctx, driver.ID, req, route, 5837.2))

	stored, err := reg.Get(ctx, driver.ID)
	require.NoError(t, err)
	require.False(t, stored.Available)
	require.NotNil(t, stored.CurrentRequest)
	require.Equal(t, req.ID, *stored.CurrentRequest)
	require.Equal(t, route, stored.CurrentRoute)

	require.Empty(t, reg.Available(ctx, req.Pickup))
}

func TestCommitSecondRequestFails(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(registry.Config{})
	driver := domain.Driver{ID: uuid.New(), Name: "Bob"}
	reg.Upsert(ctx, driver)

	require.NoError(t, reg.Commit(ctx, driver.ID, sampleRequest(), []domain.NodeID{"A"}, 0))
	err := reg.Commit(ctx, driver.ID, sampleRequest(), []domain.NodeID{"A"}, 0)
	require.ErrorIs(t, err, domain.ErrAlreadyAssigned)
}

func TestCommitConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(registry.Config{})
	driver := domain.Driver{ID: uuid.New(), Name: "Bob"}
	reg.Upsert(ctx, driver)

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reg.Commit(ctx, driver.ID, sampleRequest(), []domain.NodeID{"A"}, 0); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	require.Equal(t, 1, count)
}

func TestCommitUnknownDriver(t *testing.T) {
	reg := newRegistry(registry.Config{})
	err := reg.Commit(context.Background(), uuid.New(), sampleRequest(), nil, 0)
	require.ErrorIs(t, err, domain.ErrDriverNotFound)
}

func TestUpdateStatusReleasesAssignment(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(registry.Config{})
	driver := domain.Driver{ID: uuid.New(), Name: "Bob"}
	reg.Upsert(ctx, driver)
	require.NoError(t, reg.Commit(ctx, driver.ID, sampleRequest(), []domain.NodeID{"A", "B"}, 1))

	require.NoError(t, reg.UpdateStatus(ctx, driver.ID, true))

	stored, err := reg.Get(ctx, driver.ID)
	require.NoError(t, err)
	require.True(t, stored.Available)
	require.Nil(t, stored.CurrentRequest)
	require.Nil(t, stored.CurrentRoute)

	// The driver can be committed again after the release.
	require.NoError(t, reg.Commit(ctx, driver.ID, sampleRequest(), []domain.NodeID{"A"}, 0))
}

func TestUpdateStatusOffline(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(registry.Config{})
	driver := domain.Driver{ID: uuid.New(), Name: "Bob"}
	reg.Upsert(ctx, driver)

	require.NoError(t, reg.UpdateStatus(ctx, driver.ID, false))
	require.Empty(t, reg.Available(ctx, domain.Coordinate{}))

	err := reg.Commit(ctx, driver.ID, sampleRequest(), nil, 0)
	require.ErrorIs(t, err, domain.ErrAlreadyAssigned)
}

func TestUpsertPreservesAssignment(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(registry.Config{})
	driver := domain.Driver{ID: uuid.New(), Name: "Bob"}
	reg.Upsert(ctx, driver)
	req := sampleRequest()
	require.NoError(t, reg.Commit(ctx, driver.ID, req, []domain.NodeID{"A"}, 0))

	// Re-registration moves the driver but keeps the active assignment.
	reg.Upsert(ctx, domain.Driver{ID: driver.ID, Name: "Bob", Location: domain.Coordinate{Lat: 1, Lng: 1}})
	stored, err := reg.Get(ctx, driver.ID)
	require.NoError(t, err)
	require.False(t, stored.Available)
	require.Equal(t, req.ID, *stored.CurrentRequest)
	require.Equal(t, domain.Coordinate{Lat: 1, Lng: 1}, stored.Location)
}
