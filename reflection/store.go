/*
store.go - Persistence interface for reflections

PURPOSE:
  Defines the contract between the service and the database. Every method
  is a single atomic statement (or a single database transaction), so an
  abandoned request can never leave a half-written record.

UNIQUENESS CONTRACT:
  Implementations MUST enforce UNIQUE(user_id, day) in storage. The service
  relies on it for race safety; there is no check-then-insert anywhere.

OWNERSHIP CONTRACT:
  Every read, update and delete by ID is scoped by user ID in the same
  query. A row owned by someone else is indistinguishable from a missing
  row: both yield ErrNotFoundOrForbidden.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:     Default (mattn/go-sqlite3)
  - store/postgres/postgres.go: PostgreSQL (pgx)
  - reflection/store/memory.go: In-memory for tests and dev runs
*/
package reflection

import (
	"context"
	"time"
)

// Store persists reflections.
type Store interface {
	// InsertIfAbsent inserts r unless (r.UserID, r.Day) is already taken.
	// Returns inserted=false when another record holds the day. A backend
	// that cannot absorb the conflict returns ErrUniqueCollision instead.
	InsertIfAbsent(ctx context.Context, r Reflection) (inserted bool, err error)

	// GetByDay returns the user's reflection for a day key. ErrNotFound if none.
	GetByDay(ctx context.Context, userID, day string) (*Reflection, error)

	// GetByID returns a reflection owned by userID. ErrNotFoundOrForbidden otherwise.
	GetByID(ctx context.Context, userID, id string) (*Reflection, error)

	// Update overwrites the non-nil fields of a reflection owned by userID
	// and sets UpdatedAt. Ownership check and write are one statement.
	Update(ctx context.Context, userID, id string, fields Fields, at time.Time) (*Reflection, error)

	// Delete hard-deletes a reflection owned by userID.
	Delete(ctx context.Context, userID, id string) error

	// ListByUser returns all of the user's reflections, newest day first.
	ListByUser(ctx context.Context, userID string) ([]Reflection, error)
}
