/*
handlers.go - HTTP API handlers for daily reflections

PURPOSE:
  Exposes the reflection service via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to the reflection service.

ENDPOINTS:
  Reflections:
    GET    /api/reflections            List the caller's reflections, newest first
    POST   /api/reflections            Create-or-get for a day (201 created, 200 existing)
    POST   /api/reflections/new        Same as above
    GET    /api/reflections/today      Day lookup for today
    GET    /api/reflections/{id}       By id, or a day lookup when {id} is a date
    PUT    /api/reflections/{id}       Update supplied fields
    POST   /api/reflections/{id}       Same as PUT
    DELETE /api/reflections/{id}       Hard delete

  Stats:
    GET    /api/stats                  Counts, monthly chart, completion rates

ARCHITECTURE:
  Handler holds the service, a logger and metrics. The caller's user ID
  is put on the context by RequireAuth and read with UserIDFrom. Handlers
  never look anywhere else for identity.

REQUEST FLOW:
  1. Read user ID from context
  2. Decode body (64 KiB max)
  3. Call the reflection service
  4. Serialize response
  5. Map errors (errors.go)

ERROR HANDLING:
  - 400: Invalid JSON, invalid date, field too long, date change on update
  - 401: Missing or invalid bearer token
  - 403: Update/delete of a reflection the caller does not own
  - 404: No reflection for the day, or id not found
  - 500: Storage failures. Detail is logged, never returned.

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/daily-reflections/reflection"
	"go.uber.org/zap"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 64 << 10

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *reflection.Service
	Logger  *zap.Logger
	Metrics *Metrics
}

// NewHandler creates a new handler. logger and metrics may be nil.
func NewHandler(svc *reflection.Service, logger *zap.Logger, metrics *Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: svc,
		Logger:  logger,
		Metrics: metrics,
	}
}

// =============================================================================
// REFLECTION HANDLERS
// =============================================================================

// ListReflections returns all of the caller's reflections.
func (h *Handler) ListReflections(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	list, err := h.Service.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err, readAccess)
		return
	}
	writeJSON(w, http.StatusOK, toReflectionDTOs(list))
}

// CreateReflection ensures a reflection exists for the requested day.
// The first write for a day wins; later calls get the stored record back.
func (h *Handler) CreateReflection(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	var req CreateReflectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	date := req.Date
	if date == "" {
		date = h.Service.Today().Key()
	}

	rec, created, err := h.Service.CreateOrGetForDay(r.Context(), userID, date, req.fields())
	if err != nil {
		h.Metrics.observeCreate(outcomeError)
		h.writeServiceError(w, r, err, writeAccess)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.Metrics.observeCreate(outcomeCreated)
	} else {
		h.Metrics.observeCreate(outcomeExisting)
	}
	writeJSON(w, status, toReflectionDTO(rec))
}

// GetToday reports whether the caller has written today's reflection.
func (h *Handler) GetToday(w http.ResponseWriter, r *http.Request) {
	h.lookupDay(w, r, h.Service.Today().Key())
}

// GetReflection serves both day lookups and id lookups on one path.
// Ids are UUIDs and never parse as dates.
func (h *Handler) GetReflection(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")
	if _, err := h.Service.ResolveDayBucket(key); err == nil {
		h.lookupDay(w, r, key)
		return
	}

	userID, _ := UserIDFrom(r.Context())
	rec, err := h.Service.GetByID(r.Context(), userID, key)
	if err != nil {
		h.writeServiceError(w, r, err, readAccess)
		return
	}
	writeJSON(w, http.StatusOK, toReflectionDTO(rec))
}

// UpdateReflection overwrites the supplied fields of one of the caller's reflections.
func (h *Handler) UpdateReflection(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	id := chi.URLParam(r, "id")

	var req UpdateReflectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Service.UpdateByIDOnDay(r.Context(), userID, id, req.Date, req.fields())
	if err != nil {
		h.writeServiceError(w, r, err, writeAccess)
		return
	}
	writeJSON(w, http.StatusOK, toReflectionDTO(rec))
}

// DeleteReflection hard-deletes one of the caller's reflections.
func (h *Handler) DeleteReflection(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.Service.DeleteByID(r.Context(), userID, id); err != nil {
		h.writeServiceError(w, r, err, writeAccess)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// =============================================================================
// STATS HANDLERS
// =============================================================================

// GetStats returns the caller's statistics.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	stats, err := h.Service.ComputeStats(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err, readAccess)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) lookupDay(w http.ResponseWriter, r *http.Request, rawDate string) {
	userID, _ := UserIDFrom(r.Context())

	rec, err := h.Service.GetForDay(r.Context(), userID, rawDate)
	if errors.Is(err, reflection.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, DayLookupResponse{
			Exists:  false,
			Message: "no reflection for this day yet",
		})
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err, readAccess)
		return
	}

	dto := toReflectionDTO(rec)
	writeJSON(w, http.StatusOK, DayLookupResponse{Exists: true, Data: &dto})
}

// decode reads a JSON body into dst. An empty body leaves dst zero-valued.
// On failure it writes a 400 and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusBadRequest, "request body too large", nil)
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid request body", nil)
	return false
}
