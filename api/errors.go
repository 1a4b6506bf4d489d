package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/daily-reflections/reflection"
	"go.uber.org/zap"
)

// =============================================================================
// ERROR MAPPING
// =============================================================================

const (
	msgUnauthorized = "unauthorized"
	msgInternal     = "internal server error"
)

// ownershipStatus picks how ErrNotFoundOrForbidden is reported. Reads hide
// the record (404); writes report the refusal (403).
type ownershipStatus int

const (
	readAccess  ownershipStatus = http.StatusNotFound
	writeAccess ownershipStatus = http.StatusForbidden
)

// writeServiceError maps a reflection service error to an HTTP response.
// Anything not recognized is a 500 whose detail goes to the log only.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, access ownershipStatus) {
	var (
		dateErr  *reflection.InvalidDateError
		fieldErr *reflection.ValidationError
	)

	switch {
	case errors.Is(err, reflection.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, msgUnauthorized, nil)
	case errors.As(err, &fieldErr):
		writeError(w, http.StatusBadRequest, "invalid input", fieldErr.Fields)
	case errors.As(err, &dateErr):
		writeError(w, http.StatusBadRequest, "invalid date", map[string]string{
			"date": "expected YYYY-MM-DD or an ISO-8601 timestamp",
		})
	case errors.Is(err, reflection.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid input", nil)
	case errors.Is(err, reflection.ErrNotFoundOrForbidden):
		if access == writeAccess {
			writeError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
		writeError(w, http.StatusNotFound, "reflection not found", nil)
	case errors.Is(err, reflection.ErrNotFound):
		writeError(w, http.StatusNotFound, "reflection not found", nil)
	default:
		h.Logger.Error("reflection service error",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Bool("retryable", reflection.IsRetryable(err)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgInternal, nil)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]string) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}
