// Package api exposes HTTP handlers for the workout log.
package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/mapty/internal/auth"
	"example.com/mapty/internal/domain"
)

const maxBodyBytes = 1 << 20

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/workouts", h.workouts)
	mux.HandleFunc("/v1/workouts/", h.workoutByID)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) workouts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createWorkout(w, r)
	case http.MethodGet:
		h.listWorkouts(w, r)
	case http.MethodDelete:
		h.deleteAllWorkouts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) workoutByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/workouts/"), "/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing workout id")
		return
	}

	if rest == "order" {
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.reorderWorkouts(w, r)
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	switch {
	case sub == "visits" && r.Method == http.MethodPost:
		h.visitWorkout(w, r, id)
	case sub != "":
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	case r.Method == http.MethodGet:
		h.getWorkout(w, r, id)
	case r.Method == http.MethodPut:
		h.editWorkout(w, r, id)
	case r.Method == http.MethodDelete:
		h.deleteWorkout(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createWorkout(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, true) {
		return
	}

	var req CreateWorkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Coordinates == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "coordinates: is required")
		return
	}

	workout, err := h.service.Create(r.Context(), domain.CreateInput{
		Kind:           domain.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Coords:         *req.Coordinates,
		DistanceKm:     req.DistanceKm,
		DurationMin:    req.DurationMin,
		CadenceSpm:     req.CadenceSpm,
		ElevationGainM: req.ElevationGainM,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkoutView(workout))
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, false) {
		return
	}

	params := r.URL.Query()
	var q domain.Query
	if raw := params.Get("kind"); raw != "" {
		kind, ok := domain.ParseKind(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "validation_failed", "kind must be running or cycling")
			return
		}
		q.Kind = kind
	}
	sortBy, ok := domain.ParseSortField(params.Get("sort"))
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_failed", "sort must be one of created, distance, duration, metric")
		return
	}
	q.SortBy = sortBy
	switch strings.ToLower(params.Get("order")) {
	case "", "asc":
	case "desc":
		q.Descending = true
	default:
		writeError(w, http.StatusBadRequest, "validation_failed", "order must be asc or desc")
		return
	}

	workouts := h.service.List(q)
	resp := ListWorkoutsResponse{Items: make([]WorkoutView, 0, len(workouts))}
	for _, workout := range workouts {
		resp.Items = append(resp.Items, toWorkoutView(workout))
	}
	resp.Count = len(resp.Items)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteAllWorkouts(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, true) {
		return
	}

	n, err := h.service.DeleteAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteAllResponse{Deleted: n})
}

func (h *Handler) getWorkout(w http.ResponseWriter, r *http.Request, id string) {
	if !authorize(w, r, false) {
		return
	}

	workout, err := h.service.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(workout))
}

func (h *Handler) editWorkout(w http.ResponseWriter, r *http.Request, id string) {
	if !authorize(w, r, true) {
		return
	}

	var req EditWorkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	workout, err := h.service.Edit(r.Context(), id, domain.EditInput{
		Kind:           domain.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		DistanceKm:     req.DistanceKm,
		DurationMin:    req.DurationMin,
		CadenceSpm:     req.CadenceSpm,
		ElevationGainM: req.ElevationGainM,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(workout))
}

func (h *Handler) deleteWorkout(w http.ResponseWriter, r *http.Request, id string) {
	if !authorize(w, r, true) {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) visitWorkout(w http.ResponseWriter, r *http.Request, id string) {
	if !authorize(w, r, true) {
		return
	}

	workout, err := h.service.Visit(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(workout))
}

func (h *Handler) reorderWorkouts(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, true) {
		return
	}

	var req ReorderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.service.Reorder(r.Context(), req.IDs); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func authorize(w http.ResponseWriter, r *http.Request, write bool) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if write && !claims.HasScope(auth.ScopeWorkoutsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope workouts:write required")
		return false
	}
	if !write && !claims.CanRead() {
		writeError(w, http.StatusForbidden, "forbidden", "scope workouts:read required")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrWorkoutNotFound):
		writeError(w, http.StatusNotFound, "not_found", "workout not found")
	case errors.Is(err, domain.ErrDivisionDegenerate):
		writeError(w, http.StatusUnprocessableEntity, "division_degenerate", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// CreateWorkoutRequest is the payload for POST /v1/workouts.
type CreateWorkoutRequest struct {
	Kind           string              `json:"kind"`
	Coordinates    *domain.Coordinates `json:"coordinates"`
	DistanceKm     float64             `json:"distance_km"`
	DurationMin    float64             `json:"duration_min"`
	CadenceSpm     *int                `json:"cadence_spm,omitempty"`
	ElevationGainM *float64            `json:"elevation_gain_m,omitempty"`
}

// EditWorkoutRequest is the payload for PUT /v1/workouts/{id}. Coordinates
// cannot be changed.
type EditWorkoutRequest struct {
	Kind           string   `json:"kind"`
	DistanceKm     float64  `json:"distance_km"`
	DurationMin    float64  `json:"duration_min"`
	CadenceSpm     *int     `json:"cadence_spm,omitempty"`
	ElevationGainM *float64 `json:"elevation_gain_m,omitempty"`
}

// ReorderRequest is the payload for PUT /v1/workouts/order.
type ReorderRequest struct {
	IDs []string `json:"ids"`
}

// DeleteAllResponse reports how many workouts were removed.
type DeleteAllResponse struct {
	Deleted int `json:"deleted"`
}

// WorkoutView exposes full details about a workout. MetricDisplay carries
// the pace or speed rounded to one decimal.
type WorkoutView struct {
	ID             string             `json:"id"`
	Kind           string             `json:"kind"`
	CreatedAt      time.Time          `json:"created_at"`
	Coordinates    domain.Coordinates `json:"coordinates"`
	DistanceKm     float64            `json:"distance_km"`
	DurationMin    float64            `json:"duration_min"`
	Description    string             `json:"description"`
	Interactions   int                `json:"interactions"`
	CadenceSpm     *int               `json:"cadence_spm,omitempty"`
	PaceMinPerKm   *float64           `json:"pace_min_per_km,omitempty"`
	ElevationGainM *float64           `json:"elevation_gain_m,omitempty"`
	SpeedKmPerH    *float64           `json:"speed_km_per_h,omitempty"`
	MetricDisplay  string             `json:"metric_display"`
	MetricUnit     string             `json:"metric_unit"`
}

// ListWorkoutsResponse packages list results.
type ListWorkoutsResponse struct {
	Items []WorkoutView `json:"items"`
	Count int           `json:"count"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toWorkoutView(workout domain.Workout) WorkoutView {
	b := workout.Core()
	view := WorkoutView{
		ID:           b.ID,
		Kind:         string(workout.Kind()),
		CreatedAt:    b.CreatedAt,
		Coordinates:  b.Coords,
		DistanceKm:   b.DistanceKm,
		DurationMin:  b.DurationMin,
		Description:  b.Description,
		Interactions: b.Interactions,
	}
	switch v := workout.(type) {
	case *domain.Run:
		cadence, pace := v.CadenceSpm, v.PaceMinPerKm
		view.CadenceSpm = &cadence
		view.PaceMinPerKm = &pace
		view.MetricDisplay = oneDecimal(pace)
		view.MetricUnit = "min/km"
	case *domain.Ride:
		elevation, speed := v.ElevationGainM, v.SpeedKmPerH
		view.ElevationGainM = &elevation
		view.SpeedKmPerH = &speed
		view.MetricDisplay = oneDecimal(speed)
		view.MetricUnit = "km/h"
	}
	return view
}

// oneDecimal formats v like JavaScript's toFixed(1): the exact binary value is
// rounded, and exact ties go away from zero.
func oneDecimal(v float64) string {
	// a binary float sits exactly halfway between two tenths only when 4v is odd
	if q := v * 4; !math.IsInf(q, 0) && q == math.Trunc(q) && math.Mod(q, 2) != 0 {
		n := math.Floor(math.Abs(v)*10 + 0.5)
		return strconv.FormatFloat(math.Copysign(n/10, v), 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
