/*
errors.go - Error taxonomy for the daily reflection service

PURPOSE:
  Every error leaving the service is tagged with one of the sentinels below.
  Stores translate driver errors into these; the api package maps each one
  to an HTTP status. Raw driver errors never cross the service boundary.

ERROR CATEGORIES:
  1. Client errors   - ErrValidation, ErrUnauthenticated
  2. Lookup errors   - ErrNotFound, ErrNotFoundOrForbidden
  3. Storage errors  - ErrUniqueCollision (internal only), ErrStorageTimeout,
                       ErrStorageUnavailable

USAGE:
    r, err := svc.GetByID(ctx, userID, id)
    if errors.Is(err, reflection.ErrNotFoundOrForbidden) {
        // 404
    }

SEE ALSO:
  - service.go: Produces these errors
  - api/errors.go: Maps them to HTTP responses
*/
package reflection

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input. Always fixable by the client.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated is returned when no caller identity is available.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound is returned when no reflection exists for a day.
	ErrNotFound = errors.New("reflection not found")

	// ErrNotFoundOrForbidden is returned when the target reflection does not
	// exist or belongs to another user. The two cases are not distinguished.
	ErrNotFoundOrForbidden = errors.New("reflection not found or not owned by caller")

	// ErrUniqueCollision is returned by a Store when an insert loses a race on
	// the (user, day) constraint. The service recovers from it; callers never see it.
	ErrUniqueCollision = errors.New("reflection already exists for this day")

	// ErrStorageTimeout is returned when a storage call exceeds its deadline.
	ErrStorageTimeout = errors.New("storage timeout")

	// ErrStorageUnavailable is returned for any other storage failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidDateError reports a date that could not be resolved to a day bucket.
type InvalidDateError struct {
	Input string
}

func (e *InvalidDateError) Error() string {
	if e.Input == "" {
		return "invalid date: empty"
	}
	return fmt.Sprintf("invalid date: %q", e.Input)
}

func (e *InvalidDateError) Unwrap() error {
	return ErrValidation
}

// ValidationError carries field-level problems, keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrUnauthenticated)
}

// IsRetryable returns true if the same request might succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageTimeout) || errors.Is(err, ErrStorageUnavailable)
}

// IsNotFound returns true if the error indicates a missing (or hidden) reflection.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotFoundOrForbidden)
}
