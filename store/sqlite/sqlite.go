/*
Package sqlite provides a SQLite-backed implementation of reflection.Store.

PURPOSE:
  Default persistence for the reflection service. The same statements run
  on PostgreSQL with placeholder changes only (see store/postgres).

KEY TABLES:
  reflections: One row per (user_id, day). Hard deletes only.

INDEXES:
  - idx_reflections_user_day (UNIQUE): The one-per-day invariant. Enforced
    here, not in application code, so concurrent inserts cannot both win.
  - idx_reflections_user_date: Listing a user's history newest first.

UPSERT STRATEGY:
  InsertIfAbsent is a single
    INSERT ... ON CONFLICT(user_id, day) DO NOTHING
  RowsAffected tells the caller whether it won. There is no read between
  "check" and "insert" for a racing writer to slip through.

OWNERSHIP:
  Update and Delete carry "WHERE id = ? AND user_id = ?". The ownership
  check and the write are the same statement.

CONCURRENCY:
  WAL mode with a busy timeout lets concurrent writers queue on the SQLite
  write lock instead of failing. ":memory:" databases are pinned to a
  single connection because each connection would otherwise get its own
  empty database.

USAGE:
  store, err := sqlite.New("./data/reflections.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := reflection.NewService(store)

SEE ALSO:
  - reflection/store.go: Interface definition
  - reflection/reflectiontest: Conformance suite run against this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/daily-reflections/reflection"
)

const timeLayout = time.RFC3339Nano

// Store implements reflection.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reflections (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		day TEXT NOT NULL,
		date TEXT NOT NULL,
		knowledge_learned TEXT,
		interesting_action TEXT,
		people_solved TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One reflection per user per calendar day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_reflections_user_day
		ON reflections(user_id, day);

	-- History listing, newest first
	CREATE INDEX IF NOT EXISTS idx_reflections_user_date
		ON reflections(user_id, day DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WRITES
// =============================================================================

// InsertIfAbsent inserts r unless the user's day is already taken.
func (s *Store) InsertIfAbsent(ctx context.Context, r reflection.Reflection) (bool, error) {
	query := `
		INSERT INTO reflections
		(id, user_id, day, date, knowledge_learned, interesting_action, people_solved,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.UserID,
		r.Day,
		r.Date.Format(timeLayout),
		nullable(r.KnowledgeLearned),
		nullable(r.InterestingAction),
		nullable(r.PeopleSolved),
		r.CreatedAt.UTC().Format(timeLayout),
		r.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, reflection.ErrUniqueCollision
		}
		return false, fmt.Errorf("failed to insert reflection: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n == 1, nil
}

// Update overwrites the non-nil fields of a reflection owned by userID.
// COALESCE keeps the stored value for fields passed as NULL.
func (s *Store) Update(ctx context.Context, userID, id string, fields reflection.Fields, at time.Time) (*reflection.Reflection, error) {
	query := `
		UPDATE reflections SET
			knowledge_learned = COALESCE(?, knowledge_learned),
			interesting_action = COALESCE(?, interesting_action),
			people_solved = COALESCE(?, people_solved),
			updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING ` + columns

	row := s.db.QueryRowContext(ctx, query,
		nullable(fields.KnowledgeLearned),
		nullable(fields.InterestingAction),
		nullable(fields.PeopleSolved),
		at.UTC().Format(timeLayout),
		id,
		userID,
	)

	r, err := scanReflection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reflection.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update reflection: %w", err)
	}
	return r, nil
}

// Delete hard-deletes a reflection owned by userID.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM reflections WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete reflection: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		return reflection.ErrNotFoundOrForbidden
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

const columns = `id, user_id, day, date, knowledge_learned, interesting_action, people_solved,
		created_at, updated_at`

// GetByDay returns the user's reflection for a day key.
func (s *Store) GetByDay(ctx context.Context, userID, day string) (*reflection.Reflection, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM reflections WHERE user_id = ? AND day = ?", userID, day)

	r, err := scanReflection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reflection.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reflection by day: %w", err)
	}
	return r, nil
}

// GetByID returns a reflection owned by userID.
func (s *Store) GetByID(ctx context.Context, userID, id string) (*reflection.Reflection, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM reflections WHERE id = ? AND user_id = ?", id, userID)

	r, err := scanReflection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reflection.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reflection: %w", err)
	}
	return r, nil
}

// ListByUser returns all of the user's reflections, newest day first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]reflection.Reflection, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM reflections WHERE user_id = ? ORDER BY day DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reflections: %w", err)
	}
	defer rows.Close()

	result := []reflection.Reflection{}
	for rows.Next() {
		r, err := scanReflection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reflection: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// Count returns the number of stored reflections for a user.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reflections WHERE user_id = ?", userID).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReflection(sc scanner) (*reflection.Reflection, error) {
	var (
		r                               reflection.Reflection
		date, createdAt, updatedAt      string
		knowledge, action, peopleSolved sql.NullString
	)
	if err := sc.Scan(
		&r.ID, &r.UserID, &r.Day, &date,
		&knowledge, &action, &peopleSolved,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if r.Date, err = time.Parse(timeLayout, date); err != nil {
		return nil, fmt.Errorf("bad date %q: %w", date, err)
	}
	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	r.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	r.KnowledgeLearned = fromNull(knowledge)
	r.InterestingAction = fromNull(action)
	r.PeopleSolved = fromNull(peopleSolved)
	return &r, nil
}

// Helper functions

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
