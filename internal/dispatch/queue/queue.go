// Package queue provides the pending ride request queue the dispatch engine
// drains. Requeued requests re-enter at the tail.
package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/example/ridedispatch/internal/dispatch/domain"
)

// Queue is a concurrent-safe FIFO of pending ride requests. Cancel flips the
// request's canceled flag in place; the engine discards canceled requests at
// the next dequeue.
type Queue interface {
	Enqueue(ctx context.Context, request *domain.RideRequest) error
	Dequeue(ctx context.Context) (*domain.RideRequest, bool, error)
	Cancel(ctx context.Context, requestID uuid.UUID) (bool, error)
	Len(ctx context.Context) (int, error)
}

// Memory is the in-process Queue.
type Memory struct {
	mu       sync.Mutex
	requests []*domain.RideRequest
}

// NewMemory constructs an empty queue.
func NewMemory() *Memory {
	return &Memory{}
}

// Enqueue appends the request at the tail.
func (m *Memory) Enqueue(_ context.Context, request *domain.RideRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, request)
	return nil
}

// Dequeue pops the head request; ok is false when the queue is empty.
func (m *Memory) Dequeue(_ context.Context) (*domain.RideRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil, false, nil
	}
	head := m.requests[0]
	m.requests = m.requests[1:]
	return head, true, nil
}

// Cancel marks a queued request canceled. It reports whether the request was
// found in the queue.
func (m *Memory) Cancel(_ context.Context, requestID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, request := range m.requests {
		if request.ID == requestID {
			request.Cancel()
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of pending requests.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests), nil
}
