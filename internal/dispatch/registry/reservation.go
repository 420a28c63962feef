package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ReservationStore makes the availability flip of a commit a single atomic
// step. TryReserve must succeed for exactly one caller per driver until the
// reservation is released, even when dispatch workers run concurrently.
type ReservationStore interface {
	TryReserve(ctx context.Context, driverID, requestID uuid.UUID) (bool, error)
	Release(ctx context.Context, driverID uuid.UUID) error
}

// MemoryReservationStore is the in-process ReservationStore.
type MemoryReservationStore struct {
	mu       sync.Mutex
	reserved map[uuid.UUID]uuid.UUID
}

// NewMemoryReservationStore constructs an empty store.
func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{reserved: make(map[uuid.UUID]uuid.UUID)}
}

// TryReserve reserves the driver for the request unless already held.
func (m *MemoryReservationStore) TryReserve(_ context.Context, driverID, requestID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.reserved[driverID]; held {
		return false, nil
	}
	m.reserved[driverID] = requestID
	return true, nil
}

// Release frees the driver's reservation.
func (m *MemoryReservationStore) Release(_ context.Context, driverID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, driverID)
	return nil
}
