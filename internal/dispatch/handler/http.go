// Package handler exposes the collaborator surfaces around the dispatch
// core: driver registration, request ingestion, and dispatch triggering.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/example/ridedispatch/internal/auth"
	"github.com/example/ridedispatch/internal/dispatch/domain"
	"github.com/example/ridedispatch/internal/dispatch/engine"
	"github.com/example/ridedispatch/internal/dispatch/queue"
	"github.com/example/ridedispatch/internal/dispatch/registry"
)

// HTTP wires the dispatch collaborators into a chi router.
type HTTP struct {
	registry *registry.Registry
	queue    queue.Queue
	engine   *engine.Engine
	events   domain.EventPublisher
	clock    domain.Clock
	secret   string
}

// NewHTTP constructs the handler. An empty secret disables authentication,
// which is only meant for local runs and tests.
func NewHTTP(reg *registry.Registry, q queue.Queue, eng *engine.Engine, events domain.EventPublisher, clock domain.Clock, secret string) *HTTP {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &HTTP{registry: reg, queue: q, engine: eng, events: events, clock: clock, secret: secret}
}

// Router builds the route table.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Group(func(r chi.Router) {
		if h.secret != "" {
			r.Use(auth.RequireRole(h.secret, auth.RoleDriver, auth.RoleOperator))
		}
		r.Post("/v1/drivers", h.registerDriver)
		r.Post("/v1/drivers/{id}/status", h.updateStatus)
	})

	r.Group(func(r chi.Router) {
		if h.secret != "" {
			r.Use(auth.RequireRole(h.secret, auth.RolePassenger, auth.RoleOperator))
		}
		r.Post("/v1/requests", h.createRequest)
		r.Post("/v1/requests/{id}/cancel", h.cancelRequest)
	})

	r.Group(func(r chi.Router) {
		if h.secret != "" {
			r.Use(auth.RequireRole(h.secret, auth.RoleOperator))
		}
		r.Get("/v1/drivers", h.listDrivers)
		r.Get("/v1/queue", h.queueDepth)
		r.Post("/v1/dispatch", h.dispatch)
	})

	return r
}

type registerDriverRequest struct {
	Name     string            `json:"name"`
	Location domain.Coordinate `json:"location"`
}

type driverResponse struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Location  domain.Coordinate `json:"location"`
	Available bool              `json:"available"`
}

func (h *HTTP) registerDriver(w http.ResponseWriter, r *http.Request) {
	var payload registerDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	driver := domain.Driver{ID: uuid.New(), Name: payload.Name, Location: payload.Location}
	h.registry.Upsert(r.Context(), driver)
	h.publish(r, domain.DispatchEvent{
		Type:    domain.EventDriverRegistered,
		Payload: map[string]any{"driver_id": driver.ID.String()},
		At:      h.clock.Now(),
	})
	writeJSON(w, http.StatusCreated, driverResponse{ID: driver.ID, Name: driver.Name, Location: driver.Location, Available: true})
}

func (h *HTTP) updateStatus(w http.ResponseWriter, r *http.Request) {
	driverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var payload struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.registry.UpdateStatus(r.Context(), driverID, payload.Available); err != nil {
		status := http.StatusConflict
		if err == domain.ErrDriverNotFound {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	h.publish(r, domain.DispatchEvent{
		Type:    domain.EventStatusUpdated,
		Payload: map[string]any{"driver_id": driverID.String(), "available": payload.Available},
		At:      h.clock.Now(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) listDrivers(w http.ResponseWriter, r *http.Request) {
	drivers := h.registry.All(r.Context())
	out := make([]driverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, driverResponse{ID: d.ID, Name: d.Name, Location: d.Location, Available: d.Available})
	}
	writeJSON(w, http.StatusOK, out)
}

type createRequestPayload struct {
	PassengerID   string            `json:"passenger_id"`
	PassengerName string            `json:"passenger_name"`
	Pickup        domain.Coordinate `json:"pickup"`
	Dropoff       domain.Coordinate `json:"dropoff"`
}

func (h *HTTP) createRequest(w http.ResponseWriter, r *http.Request) {
	var payload createRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	passengerID, err := uuid.Parse(payload.PassengerID)
	if err != nil {
		http.Error(w, "invalid passenger_id", http.StatusBadRequest)
		return
	}

	request := domain.NewRideRequest(passengerID, payload.PassengerName, payload.Pickup, payload.Dropoff, h.clock.Now())
	if err := h.queue.Enqueue(r.Context(), request); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.publish(r, domain.DispatchEvent{
		RequestID: request.ID,
		Type:      domain.EventRequestReceived,
		State:     domain.StatePending,
		Payload:   map[string]any{"passenger_id": passengerID.String()},
		At:        h.clock.Now(),
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"request_id": request.ID})
}

func (h *HTTP) cancelRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	found, err := h.queue.Cancel(r.Context(), requestID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "request not pending", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) queueDepth(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.Len(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": n})
}

func (h *HTTP) dispatch(w http.ResponseWriter, r *http.Request) {
	assigned, err := h.engine.ProcessAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"assigned": assigned})
}

func (h *HTTP) publish(r *http.Request, event domain.DispatchEvent) {
	if h.events == nil {
		return
	}
	_ = h.events.Publish(r.Context(), event)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
