// Package engine runs the dispatch cycle: dequeue a pending request, score
// available drivers by estimated arrival time, and commit the best one.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/ridedispatch/internal/dispatch/domain"
	"github.com/example/ridedispatch/internal/dispatch/queue"
	"github.com/example/ridedispatch/internal/geo"
	"github.com/example/ridedispatch/internal/routing"
)

// DriverRegistry is the slice of the registry the engine needs.
type DriverRegistry interface {
	Available(ctx context.Context, pickup domain.Coordinate) []domain.Driver
	Commit(ctx context.Context, driverID uuid.UUID, request *domain.RideRequest, route []domain.NodeID, pickupDistanceKm float64) error
}

// Config tunes scoring.
type Config struct {
	// AverageSpeedKmh converts pickup distance into an arrival estimate.
	AverageSpeedKmh float64
}

// Engine coordinates one dispatch cycle at a time. It never blocks
// unboundedly and never treats a per-request failure as fatal: a request is
// assigned, requeued, or dropped, and the next cycle proceeds.
type Engine struct {
	queue    queue.Queue
	registry DriverRegistry
	graph    *routing.Graph
	locator  *routing.Locator
	events   domain.EventPublisher
	notifier domain.Notifier
	clock    domain.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
	cfg      Config
}

// New constructs an Engine. Events and notifier may be nil; clock defaults to
// the system clock and average speed to 30 km/h.
func New(q queue.Queue, reg DriverRegistry, graph *routing.Graph, locator *routing.Locator, events domain.EventPublisher, notifier domain.Notifier, clock domain.Clock, logger *zap.Logger, cfg Config) *Engine {
	if cfg.AverageSpeedKmh <= 0 {
		cfg.AverageSpeedKmh = 30.0
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		queue:    q,
		registry: reg,
		graph:    graph,
		locator:  locator,
		events:   events,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		tracer:   otel.Tracer("dispatch.engine"),
		cfg:      cfg,
	}
}

type candidate struct {
	driver     domain.Driver
	route      []domain.NodeID
	distanceKm float64
	etaMinutes float64
}

// ProcessOne evaluates the head request. The returned state is the terminal
// state of this cycle: StateAssigned with a non-nil Assignment, StateRequeued,
// StateDropped for a canceled request, or the empty string when the queue had
// nothing to dequeue.
func (e *Engine) ProcessOne(ctx context.Context) (*domain.Assignment, domain.RequestState, error) {
	request, ok, err := e.queue.Dequeue(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("dequeue: %w", err)
	}
	if !ok {
		return nil, "", nil
	}

	ctx, span := e.tracer.Start(ctx, "dispatch.cycle")
	defer span.End()
	started := time.Now()

	assignment, state, err := e.evaluate(ctx, request)
	dispatchDuration.WithLabelValues(string(state)).Observe(time.Since(started).Seconds())
	dispatchOutcomes.WithLabelValues(string(state)).Inc()
	return assignment, state, err
}

func (e *Engine) evaluate(ctx context.Context, request *domain.RideRequest) (*domain.Assignment, domain.RequestState, error) {
	log := e.logger.With(zap.String("request_id", request.ID.String()))

	if request.IsCanceled() {
		log.Info("request canceled, dropping")
		e.publish(ctx, domain.DispatchEvent{
			RequestID: request.ID,
			Type:      domain.EventRequestCanceled,
			State:     domain.StateDropped,
			At:        e.clock.Now(),
		})
		return nil, domain.StateDropped, nil
	}

	log.Info("evaluating request",
		zap.Float64("pickup_lat", request.Pickup.Lat),
		zap.Float64("pickup_lng", request.Pickup.Lng))

	pickupNode, ok := e.locator.Resolve(request.Pickup)
	if !ok {
		log.Warn("pickup coordinate unmapped, requeueing",
			zap.Error(domain.ErrLocationNotFound))
		return nil, domain.StateRequeued, e.requeue(ctx, request)
	}

	best := e.selectCandidate(ctx, log, request, pickupNode)
	if best == nil {
		log.Info("no available driver")
		e.publish(ctx, domain.DispatchEvent{
			RequestID: request.ID,
			Type:      domain.EventNoDriverFound,
			State:     domain.StateRequeued,
			At:        e.clock.Now(),
		})
		return nil, domain.StateRequeued, e.requeue(ctx, request)
	}

	if err := e.registry.Commit(ctx, best.driver.ID, request, best.route, best.distanceKm); err != nil {
		if errors.Is(err, domain.ErrAlreadyAssigned) {
			// Lost the commit race to a concurrent worker; retry later.
			log.Info("driver taken concurrently, requeueing",
				zap.String("driver_id", best.driver.ID.String()))
			return nil, domain.StateRequeued, e.requeue(ctx, request)
		}
		requeueErr := e.requeue(ctx, request)
		if requeueErr != nil {
			return nil, domain.StateRequeued, errors.Join(err, requeueErr)
		}
		return nil, domain.StateRequeued, fmt.Errorf("commit driver: %w", err)
	}

	assignment := &domain.Assignment{
		Driver:           best.driver,
		Request:          request,
		Route:            best.route,
		PickupDistanceKm: best.distanceKm,
		ETAMinutes:       best.etaMinutes,
	}

	log.Info("driver assigned",
		zap.String("driver_id", best.driver.ID.String()),
		zap.Float64("pickup_distance_km", best.distanceKm),
		zap.Float64("eta_minutes", best.etaMinutes))

	e.publish(ctx, domain.DispatchEvent{
		RequestID: request.ID,
		Type:      domain.EventDriverMatched,
		State:     domain.StateAssigned,
		Payload: map[string]any{
			"driver_id":          best.driver.ID.String(),
			"pickup_distance_km": best.distanceKm,
			"eta_minutes":        best.etaMinutes,
		},
		At: e.clock.Now(),
	})
	e.publish(ctx, domain.DispatchEvent{
		RequestID: request.ID,
		Type:      domain.EventRouteComputed,
		State:     domain.StateAssigned,
		Payload:   map[string]any{"route": nodeStrings(best.route)},
		At:        e.clock.Now(),
	})

	if e.notifier != nil {
		if err := e.notifier.NotifyAssigned(ctx, request, best.driver, best.etaMinutes); err != nil {
			// Notification delivery is not the engine's concern.
			log.Warn("passenger notification failed", zap.Error(err))
		}
	}

	return assignment, domain.StateAssigned, nil
}

// selectCandidate scores every available driver and returns the one with the
// lowest estimated arrival time, ties broken by pickup distance. Drivers with
// an unmapped coordinate or no route to the pickup are skipped; they do not
// sink the whole request.
func (e *Engine) selectCandidate(ctx context.Context, log *zap.Logger, request *domain.RideRequest, pickupNode domain.NodeID) *candidate {
	var best *candidate
	for _, driver := range e.registry.Available(ctx, request.Pickup) {
		driverNode, ok := e.locator.Resolve(driver.Location)
		if !ok {
			candidatesSkipped.WithLabelValues("location_not_found").Inc()
			log.Debug("driver coordinate unmapped, skipping",
				zap.String("driver_id", driver.ID.String()))
			continue
		}

		route := e.graph.ShortestPath(driverNode, pickupNode)
		if route == nil {
			candidatesSkipped.WithLabelValues("no_route").Inc()
			log.Debug("no route to pickup, skipping",
				zap.String("driver_id", driver.ID.String()),
				zap.String("driver_node", string(driverNode)),
				zap.String("pickup_node", string(pickupNode)))
			continue
		}

		distanceKm := geo.DistanceKm(driver.Location, request.Pickup)
		etaMinutes := (distanceKm / e.cfg.AverageSpeedKmh) * 60

		if best == nil ||
			etaMinutes < best.etaMinutes ||
			(etaMinutes == best.etaMinutes && distanceKm < best.distanceKm) {
			best = &candidate{
				driver:     driver,
				route:      route,
				distanceKm: distanceKm,
				etaMinutes: etaMinutes,
			}
		}
	}
	return best
}

// ProcessAll drains the queue in passes. Each pass dequeues at most the
// number of requests pending when the pass started, so a requeued request is
// retried no more than once per pass; a pass without a single assignment or
// drop stops the drain instead of spinning. Returns the number of
// assignments made.
func (e *Engine) ProcessAll(ctx context.Context) (int, error) {
	assigned := 0
	for {
		pending, err := e.queue.Len(ctx)
		if err != nil {
			return assigned, fmt.Errorf("queue len: %w", err)
		}
		queueDepth.Set(float64(pending))
		if pending == 0 {
			return assigned, nil
		}

		progress := false
		for i := 0; i < pending; i++ {
			if err := ctx.Err(); err != nil {
				return assigned, err
			}
			_, state, err := e.ProcessOne(ctx)
			if err != nil {
				return assigned, err
			}
			switch state {
			case domain.StateAssigned:
				assigned++
				progress = true
			case domain.StateDropped:
				progress = true
			case "":
				// Queue drained by a concurrent consumer.
				return assigned, nil
			}
		}
		if !progress {
			return assigned, nil
		}
	}
}

func (e *Engine) requeue(ctx context.Context, request *domain.RideRequest) error {
	if err := e.queue.Enqueue(ctx, request); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	e.publish(ctx, domain.DispatchEvent{
		RequestID: request.ID,
		Type:      domain.EventRequestRequeued,
		State:     domain.StateRequeued,
		At:        e.clock.Now(),
	})
	if e.notifier != nil {
		if err := e.notifier.NotifyWaiting(ctx, request); err != nil {
			e.logger.Warn("waiting notification failed", zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, event domain.DispatchEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func nodeStrings(route []domain.NodeID) []string {
	out := make([]string, len(route))
	for i, node := range route {
		out[i] = string(node)
	}
	return out
}
