package domain

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Coordinate is a latitude/longitude pair in degrees. It is a value type:
// two coordinates are equal when both components are equal.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NodeID identifies a location in the routing graph.
type NodeID string

// RequestState tracks a ride request through a dispatch cycle.
type RequestState string

const (
	StatePending    RequestState = "PENDING"
	StateEvaluating RequestState = "EVALUATING"
	StateAssigned   RequestState = "ASSIGNED"
	StateRequeued   RequestState = "REQUEUED"
	StateDropped    RequestState = "DROPPED"
)

var allowedTransitions = map[RequestState][]RequestState{
	StatePending:    {StateEvaluating},
	StateEvaluating: {StateAssigned, StateRequeued, StateDropped},
	StateRequeued:   {StateEvaluating},
}

// CanTransitionTo reports whether moving from s to next is a legal step.
// StateAssigned and StateDropped are terminal.
func (s RequestState) CanTransitionTo(next RequestState) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

var (
	ErrLocationNotFound  = errors.New("coordinate has no graph node")
	ErrNoRoute           = errors.New("no route between nodes")
	ErrNoAvailableDriver = errors.New("no driver available")
	ErrAlreadyAssigned   = errors.New("driver already assigned")
	ErrDriverNotFound    = errors.New("driver not found")
)

// Driver is a registered driver record. Available=false implies
// CurrentRequest and CurrentRoute are set; Available=true implies both are
// empty. The registry owns that invariant.
type Driver struct {
	ID             uuid.UUID
	Name           string
	Location       Coordinate
	Available      bool
	CurrentRequest *uuid.UUID
	CurrentRoute   []NodeID
}

// RideRequest is a pending pickup request. Cancellation is cooperative: the
// flag is flipped by an external caller and checked when the request is next
// dequeued, so an already-assigned request cannot be canceled here.
type RideRequest struct {
	ID            uuid.UUID
	PassengerID   uuid.UUID
	PassengerName string
	Pickup        Coordinate
	Dropoff       Coordinate
	RequestedAt   time.Time

	canceled atomic.Bool
}

// NewRideRequest builds a request with a fresh identifier.
func NewRideRequest(passengerID uuid.UUID, passengerName string, pickup, dropoff Coordinate, now time.Time) *RideRequest {
	return &RideRequest{
		ID:            uuid.New(),
		PassengerID:   passengerID,
		PassengerName: passengerName,
		Pickup:        pickup,
		Dropoff:       dropoff,
		RequestedAt:   now,
	}
}

// Cancel marks the request canceled. Safe for concurrent use.
func (r *RideRequest) Cancel() { r.canceled.Store(true) }

// IsCanceled reports whether the request was canceled.
func (r *RideRequest) IsCanceled() bool { return r.canceled.Load() }

// Assignment is the outcome of a successful dispatch cycle. It is ephemeral:
// the engine returns it and publishes it, nothing persists it.
type Assignment struct {
	Driver           Driver
	Request          *RideRequest
	Route            []NodeID
	PickupDistanceKm float64
	ETAMinutes       float64
}

type EventType string

const (
	EventRequestReceived  EventType = "RequestReceived"
	EventRequestCanceled  EventType = "RequestCanceled"
	EventRequestRequeued  EventType = "RequestRequeued"
	EventDriverMatched    EventType = "DriverMatched"
	EventRouteComputed    EventType = "RouteComputed"
	EventNoDriverFound    EventType = "NoDriverFound"
	EventDriverRegistered EventType = "DriverRegistered"
	EventStatusUpdated    EventType = "StatusUpdated"
)

// DispatchEvent is the structured record emitted to the observability sink.
type DispatchEvent struct {
	RequestID uuid.UUID      `json:"request_id,omitempty"`
	Type      EventType      `json:"type"`
	State     RequestState   `json:"state,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	At        time.Time      `json:"at"`
}

// EventPublisher delivers dispatch events to an external sink. Publish
// failures are the sink's concern, not the engine's.
type EventPublisher interface {
	Publish(ctx context.Context, event DispatchEvent) error
}

// Notifier tells a passenger about dispatch outcomes.
type Notifier interface {
	NotifyAssigned(ctx context.Context, request *RideRequest, driver Driver, etaMinutes float64) error
	NotifyWaiting(ctx context.Context, request *RideRequest) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
