/*
Package postgres provides a PostgreSQL-backed implementation of reflection.Store.

PURPOSE:
  Multi-instance deployments. Mirrors store/sqlite statement for statement;
  the differences are placeholders ($n) and native TIMESTAMPTZ columns.

UNIQUENESS:
  uq_reflections_user_day enforces one row per (user_id, day). Inserts use
  ON CONFLICT DO NOTHING; a primary key clash surfaces as SQLSTATE 23505
  and maps to reflection.ErrUniqueCollision.

SEE ALSO:
  - store/sqlite/sqlite.go: Same schema on SQLite
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/daily-reflections/reflection"
)

const uniqueViolation = "23505"

// Store implements reflection.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, verifies the connection and creates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reflections (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		day TEXT NOT NULL,
		date TIMESTAMPTZ NOT NULL,
		knowledge_learned TEXT,
		interesting_action TEXT,
		people_solved TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS uq_reflections_user_day
		ON reflections(user_id, day);

	CREATE INDEX IF NOT EXISTS idx_reflections_user_date
		ON reflections(user_id, day DESC);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// WRITES
// =============================================================================

// InsertIfAbsent inserts r unless the user's day is already taken.
func (s *Store) InsertIfAbsent(ctx context.Context, r reflection.Reflection) (bool, error) {
	query := `
		INSERT INTO reflections (
			id, user_id, day, date, knowledge_learned, interesting_action, people_solved,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (user_id, day) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		r.ID,
		r.UserID,
		r.Day,
		r.Date,
		r.KnowledgeLearned,
		r.InterestingAction,
		r.PeopleSolved,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, reflection.ErrUniqueCollision
		}
		return false, fmt.Errorf("failed to insert reflection: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Update overwrites the non-nil fields of a reflection owned by userID.
func (s *Store) Update(ctx context.Context, userID, id string, fields reflection.Fields, at time.Time) (*reflection.Reflection, error) {
	query := `
		UPDATE reflections SET
			knowledge_learned = COALESCE($1, knowledge_learned),
			interesting_action = COALESCE($2, interesting_action),
			people_solved = COALESCE($3, people_solved),
			updated_at = $4
		WHERE id = $5 AND user_id = $6
		RETURNING ` + columns

	row := s.pool.QueryRow(ctx, query,
		fields.KnowledgeLearned,
		fields.InterestingAction,
		fields.PeopleSolved,
		at,
		id,
		userID,
	)

	r, err := scanReflection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, reflection.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update reflection: %w", err)
	}
	return r, nil
}

// Delete hard-deletes a reflection owned by userID.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM reflections WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete reflection: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
	row := s.pool.QueryRow(ctx,
		"SELECT "+columns+" FROM reflections WHERE user_id = $1 AND day = $2", userID, day)

	r, err := scanReflection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, reflection.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reflection by day: %w", err)
	}
	return r, nil
}

// GetByID returns a reflection owned by userID.
func (s *Store) GetByID(ctx context.Context, userID, id string) (*reflection.Reflection, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+columns+" FROM reflections WHERE id = $1 AND user_id = $2", id, userID)

	r, err := scanReflection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, reflection.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reflection: %w", err)
	}
	return r, nil
}

// ListByUser returns all of the user's reflections, newest day first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]reflection.Reflection, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+columns+" FROM reflections WHERE user_id = $1 ORDER BY day DESC", userID)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reflections: %w", err)
	}
	return result, nil
}

func scanReflection(row pgx.Row) (*reflection.Reflection, error) {
	var r reflection.Reflection
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Day,
		&r.Date,
		&r.KnowledgeLearned,
		&r.InterestingAction,
		&r.PeopleSolved,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
