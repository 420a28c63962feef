// Package registry owns driver records and their availability. It is the
// only component that mutates driver state during dispatch.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/ridedispatch/internal/dispatch/domain"
	"github.com/example/ridedispatch/internal/geo"
)

// Config tunes candidate selection.
type Config struct {
	// MaxRadiusKm filters Available results by pickup distance.
	// Zero means unbounded: every free driver is a candidate.
	MaxRadiusKm float64
}

// Registry holds driver records behind a lock and coordinates availability
// flips through a ReservationStore so concurrent commits cannot double-book
// a driver.
type Registry struct {
	mu           sync.RWMutex
	drivers      map[uuid.UUID]*domain.Driver
	reservations ReservationStore
	cfg          Config
	logger       *zap.Logger
}

// New constructs a Registry.
func New(reservations ReservationStore, cfg Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		drivers:      make(map[uuid.UUID]*domain.Driver),
		reservations: reservations,
		cfg:          cfg,
		logger:       logger,
	}
}

// Upsert registers a driver or refreshes an existing record's name and
// location. Assignment state of an existing record is preserved.
func (r *Registry) Upsert(_ context.Context, driver domain.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.drivers[driver.ID]; ok {
		existing.Name = driver.Name
		existing.Location = driver.Location
		return
	}
	record := driver
	record.Available = true
	record.CurrentRequest = nil
	record.CurrentRoute = nil
	r.drivers[driver.ID] = &record
	r.logger.Info("driver registered",
		zap.String("driver_id", driver.ID.String()),
		zap.Float64("lat", driver.Location.Lat),
		zap.Float64("lng", driver.Location.Lng))
}

// UpdateLocation moves a driver without touching availability.
func (r *Registry) UpdateLocation(_ context.Context, driverID uuid.UUID, location domain.Coordinate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	driver, ok := r.drivers[driverID]
	if !ok {
		return domain.ErrDriverNotFound
	}
	driver.Location = location
	return nil
}

// Get returns a copy of a driver record.
func (r *Registry) Get(_ context.Context, driverID uuid.UUID) (domain.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	driver, ok := r.drivers[driverID]
	if !ok {
		return domain.Driver{}, domain.ErrDriverNotFound
	}
	return *driver, nil
}

// Available returns copies of every free driver within the configured pickup
// radius of the given coordinate.
func (r *Registry) Available(_ context.Context, pickup domain.Coordinate) []domain.Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var candidates []domain.Driver
	for _, driver := range r.drivers {
		if !driver.Available {
			continue
		}
		if r.cfg.MaxRadiusKm > 0 && geo.DistanceKm(driver.Location, pickup) > r.cfg.MaxRadiusKm {
			continue
		}
		candidates = append(candidates, *driver)
	}
	return candidates
}

// Commit assigns a request and route to a driver, flipping availability to
// false. The reservation store makes the flip atomic: if another worker got
// there first the commit fails with ErrAlreadyAssigned and the caller
// requeues the request instead of failing the cycle.
func (r *Registry) Commit(ctx context.Context, driverID uuid.UUID, request *domain.RideRequest, route []domain.NodeID, pickupDistanceKm float64) error {
	reserved, err := r.reservations.TryReserve(ctx, driverID, request.ID)
	if err != nil {
		return fmt.Errorf("reserve driver: %w", err)
	}
	if !reserved {
		return domain.ErrAlreadyAssigned
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	driver, ok := r.drivers[driverID]
	if !ok {
		_ = r.reservations.Release(ctx, driverID)
		return domain.ErrDriverNotFound
	}
	if !driver.Available {
		// The record disagrees with the reservation store; keep the record
		// authoritative and give the reservation back.
		_ = r.reservations.Release(ctx, driverID)
		return domain.ErrAlreadyAssigned
	}

	requestID := request.ID
	driver.Available = false
	driver.CurrentRequest = &requestID
	driver.CurrentRoute = append([]domain.NodeID(nil), route...)

	r.logger.Info("driver committed",
		zap.String("driver_id", driverID.String()),
		zap.String("request_id", requestID.String()),
		zap.Float64("pickup_distance_km", pickupDistanceKm))
	return nil
}

// UpdateStatus is the external availability reset. Flipping a driver back to
// available clears the assignment and releases the reservation; flipping to
// unavailable takes the reservation so dispatch cannot select the driver.
func (r *Registry) UpdateStatus(ctx context.Context, driverID uuid.UUID, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	driver, ok := r.drivers[driverID]
	if !ok {
		return domain.ErrDriverNotFound
	}
	if driver.Available == available {
		return nil
	}

	if available {
		driver.Available = true
		driver.CurrentRequest = nil
		driver.CurrentRoute = nil
		if err := r.reservations.Release(ctx, driverID); err != nil {
			return fmt.Errorf("release reservation: %w", err)
		}
	} else {
		reserved, err := r.reservations.TryReserve(ctx, driverID, uuid.Nil)
		if err != nil {
			return fmt.Errorf("reserve driver: %w", err)
		}
		if !reserved {
			return domain.ErrAlreadyAssigned
		}
		driver.Available = false
	}

	r.logger.Info("driver status updated",
		zap.String("driver_id", driverID.String()),
		zap.Bool("available", available))
	return nil
}

// All returns copies of every driver record.
func (r *Registry) All(_ context.Context) []domain.Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	drivers := make([]domain.Driver, 0, len(r.drivers))
	for _, driver := range r.drivers {
		drivers = append(drivers, *driver)
	}
	return drivers
}
