package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/AdamBeresnev/heat-scheduler/internal/httputil"
	"github.com/AdamBeresnev/heat-scheduler/internal/schedule"
	"github.com/AdamBeresnev/heat-scheduler/internal/service"
	"github.com/AdamBeresnev/heat-scheduler/views"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type server struct {
	regeneration *service.RegenerationService
	registration *service.RegistrationService
	cascades     *service.CascadeService
	lanes        *service.LaneService
	schedules    *service.ScheduleService
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/competitions/{competitionID}", func(r chi.Router) {
		r.Get("/schedule", s.viewSchedule)
		r.Get("/heats", s.getHeats)
		r.Post("/heats/regenerate", s.regenerate)
		r.Post("/breaks", s.insertBreak)
	})

	r.Post("/entries/{entryID}/register", s.register)
	r.Delete("/entries/{entryID}/lanes", s.unregister)

	r.Post("/workouts/{workoutID}/cascade", s.cascadeWorkout)

	r.Post("/heats/{heatID}/lanes/order", s.reorderLanes)
	r.Post("/heats/{heatID}/lane-space", s.adjustLaneSpace)

	r.Post("/lanes/{laneID}/move", s.moveLane)

	return r
}

func (s *server) viewSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "competitionID")
	if !ok {
		return
	}
	sched, err := s.schedules.GetSchedule(r.Context(), id)
	if err != nil {
		serviceError(w, "Failed to get schedule", err)
		return
	}
	if err := views.Render(w, r, views.SchedulePage(sched)); err != nil {
		httputil.InternalServerError(w, "Failed to render schedule", err)
	}
}

func (s *server) getHeats(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "competitionID")
	if !ok {
		return
	}
	sched, err := s.schedules.GetSchedule(r.Context(), id)
	if err != nil {
		serviceError(w, "Failed to get schedule", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sched)
}

func (s *server) regenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "competitionID")
	if !ok {
		return
	}
	var update heat.SettingsUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		httputil.BadRequest(w, "Invalid settings", err)
		return
	}

	heats, err := s.regeneration.Regenerate(r.Context(), id, update)
	if err != nil {
		serviceError(w, "Failed to regenerate heats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, heats)
}

type breakRequest struct {
	Start   time.Time `json:"start"`
	Minutes int       `json:"minutes"`
}

func (s *server) insertBreak(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "competitionID")
	if !ok {
		return
	}
	var req breakRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "Invalid break", err)
		return
	}
	moved, err := s.cascades.InsertBreak(r.Context(), id, req.Start, req.Minutes)
	if err != nil {
		serviceError(w, "Failed to insert break", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, moved)
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "entryID")
	if !ok {
		return
	}
	var in service.RegisterInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.BadRequest(w, "Invalid registration", err)
		return
	}
	in.EntryID = id

	placement, err := s.registration.Register(r.Context(), in)
	if err != nil {
		serviceError(w, "Failed to place entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, placement)
}

func (s *server) unregister(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "entryID")
	if !ok {
		return
	}
	removed, err := s.lanes.UnregisterEntry(r.Context(), id)
	if err != nil {
		serviceError(w, "Failed to unregister entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *server) cascadeWorkout(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "workoutID")
	if !ok {
		return
	}
	heats, err := s.cascades.CascadeWorkout(r.Context(), id)
	if err != nil {
		serviceError(w, "Failed to cascade workout", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, heats)
}

type laneOrderRequest struct {
	LaneIDs []uuid.UUID `json:"laneIds"`
}

func (s *server) reorderLanes(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "heatID")
	if !ok {
		return
	}
	var req laneOrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "Invalid lane order", err)
		return
	}
	lanes, err := s.lanes.ReorderLanes(r.Context(), id, req.LaneIDs)
	if err != nil {
		serviceError(w, "Failed to reorder lanes", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lanes)
}

type laneSpaceRequest struct {
	Delta int `json:"delta"`
}

func (s *server) adjustLaneSpace(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "heatID")
	if !ok {
		return
	}
	var req laneSpaceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "Invalid lane space change", err)
		return
	}
	h, err := s.lanes.AdjustLaneSpace(r.Context(), id, req.Delta)
	if err != nil {
		serviceError(w, "Failed to change lane space", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h)
}

type moveLaneRequest struct {
	// HeatID nil unassigns the lane.
	HeatID *uuid.UUID `json:"heatId"`
}

func (s *server) moveLane(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "laneID")
	if !ok {
		return
	}
	var req moveLaneRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "Invalid lane move", err)
		return
	}
	lane, err := s.lanes.MoveLane(r.Context(), id, req.HeatID)
	if err != nil {
		serviceError(w, "Failed to move lane", err)
		return
	}
	if lane == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lane)
}

func urlID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+param, err)
		return uuid.Nil, false
	}
	return id, true
}

// serviceError maps service failures onto status codes. Anything that is not a
// validation or lookup failure is a 500.
func serviceError(w http.ResponseWriter, msg string, err error) {
	var perr *service.PlacementError
	switch {
	case errors.As(err, &perr):
		httputil.Conflict(w, perr.Error(), err)
	case errors.Is(err, service.ErrHeatFull),
		errors.Is(err, service.ErrEntryAlreadyPlaced),
		errors.Is(err, service.ErrLanesInUse),
		errors.Is(err, schedule.ErrEntryTooLarge):
		httputil.Conflict(w, capitalize(err.Error()), err)
	case service.IsValidation(err):
		httputil.BadRequest(w, capitalize(err.Error()), err)
	case service.IsNotFound(err):
		httputil.NotFound(w, capitalize(err.Error()), err)
	default:
		httputil.InternalServerError(w, msg, err)
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
