/*
service.go - Daily reflection operations

PURPOSE:
  The single place where the one-reflection-per-user-per-day rule lives.
  HTTP handlers call these methods with the caller's user ID, resolved once
  at the boundary from the identity provider.

OPERATIONS:
  GetForDay          Read the reflection for a day bucket
  GetByID            Read one reflection, ownership-scoped
  CreateOrGetForDay  Idempotent "ensure a reflection exists for this day"
  UpdateByID         Overwrite supplied fields, ownership-scoped
  UpdateByIDOnDay    UpdateByID that also checks a resent date
  DeleteByID         Hard delete, ownership-scoped
  ListForUser        All reflections, newest day first
  ComputeStats       Aggregate counts (see stats.go)

RACE HANDLING:
  CreateOrGetForDay is one conditional insert keyed on UNIQUE(user_id, day)
  followed by a read. Concurrent callers for the same day converge on the
  single stored row. If a backend reports ErrUniqueCollision the row is
  re-fetched and returned as created=false.

TIMEOUTS:
  Each storage call runs under the caller's context plus the configured
  storage timeout. context.DeadlineExceeded becomes ErrStorageTimeout;
  unknown storage failures become ErrStorageUnavailable.
*/
package reflection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single storage call.
const DefaultTimeout = 5 * time.Second

// Service enforces the daily reflection invariants on top of a Store.
type Service struct {
	store   Store
	loc     *time.Location
	now     func() time.Time
	timeout time.Duration
	logger  *zap.Logger
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the timezone used to resolve day buckets.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTimeout sets the per-call storage timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a service over store. Defaults: server local time,
// DefaultTimeout, no-op logger.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		loc:     time.Local,
		now:     time.Now,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the timezone used for day buckets.
func (s *Service) Location() *time.Location { return s.loc }

// ResolveDayBucket resolves raw in the service location.
func (s *Service) ResolveDayBucket(raw string) (DayBucket, error) {
	return ResolveDayBucket(raw, s.loc)
}

// Today returns the current day bucket.
func (s *Service) Today() DayBucket {
	return BucketFor(s.now(), s.loc)
}

// =============================================================================
// READS
// =============================================================================

// GetForDay returns the user's reflection for the day containing rawDate.
func (s *Service) GetForDay(ctx context.Context, userID, rawDate string) (*Reflection, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	bucket, err := s.ResolveDayBucket(rawDate)
	if err != nil {
		return nil, err
	}
	return s.getByDay(ctx, userID, bucket)
}

// GetByID returns a reflection owned by userID.
func (s *Service) GetByID(ctx context.Context, userID, id string) (*Reflection, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFoundOrForbidden
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, s.classify(err)
	}
	return s.localize(r), nil
}

// ListForUser returns all of the user's reflections, newest day first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Reflection, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.classify(err)
	}
	if list == nil {
		list = []Reflection{}
	}
	for i := range list {
		list[i] = *s.localize(&list[i])
	}
	return list, nil
}

// =============================================================================
// WRITES
// =============================================================================

// CreateOrGetForDay ensures a reflection exists for the day containing rawDate.
// If one exists it is returned unchanged and fields are discarded.
func (s *Service) CreateOrGetForDay(ctx context.Context, userID, rawDate string, fields Fields) (*Reflection, bool, error) {
	if err := requireUser(userID); err != nil {
		return nil, false, err
	}
	bucket, err := s.ResolveDayBucket(rawDate)
	if err != nil {
		return nil, false, err
	}
	if err := fields.Validate(); err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	candidate := Reflection{
		ID:                s.newID(),
		UserID:            userID,
		Date:              bucket.Start,
		Day:               bucket.Key(),
		KnowledgeLearned:  fields.KnowledgeLearned,
		InterestingAction: fields.InterestingAction,
		PeopleSolved:      fields.PeopleSolved,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	insertCtx, cancel := s.withTimeout(ctx)
	inserted, err := s.store.InsertIfAbsent(insertCtx, candidate)
	cancel()

	switch {
	case err == nil && inserted:
		s.logger.Debug("reflection created",
			zap.String("user_id", userID), zap.String("day", candidate.Day), zap.String("id", candidate.ID))
		return s.localize(&candidate), true, nil
	case err == nil:
		// Day already taken.
	case errors.Is(err, ErrUniqueCollision):
		s.logger.Info("reflection insert lost race, returning winner",
			zap.String("user_id", userID), zap.String("day", candidate.Day))
	default:
		return nil, false, s.classify(err)
	}

	existing, err := s.getByDay(ctx, userID, bucket)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The winner was deleted between our insert and read.
			return nil, false, fmt.Errorf("%w: reflection for %s vanished during create", ErrStorageUnavailable, bucket.Key())
		}
		return nil, false, err
	}
	return existing, false, nil
}

// UpdateByID overwrites the supplied fields of a reflection owned by userID.
// With no fields supplied it behaves like GetByID.
func (s *Service) UpdateByID(ctx context.Context, userID, id string, fields Fields) (*Reflection, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFoundOrForbidden
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	if fields.IsEmpty() {
		// Nothing to write; UpdatedAt is left alone.
		return s.GetByID(ctx, userID, id)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.store.Update(ctx, userID, id, fields, s.now().UTC())
	if err != nil {
		return nil, s.classify(err)
	}
	return s.localize(r), nil
}

// UpdateByIDOnDay is UpdateByID for clients that resend the reflection's date.
// The date is immutable: a date on the stored day is accepted and ignored,
// any other day is a validation error.
func (s *Service) UpdateByIDOnDay(ctx context.Context, userID, id, rawDate string, fields Fields) (*Reflection, error) {
	if strings.TrimSpace(rawDate) == "" {
		return s.UpdateByID(ctx, userID, id, fields)
	}
	bucket, err := s.ResolveDayBucket(rawDate)
	if err != nil {
		return nil, err
	}
	current, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if current.Day != bucket.Key() {
		return nil, &ValidationError{Fields: map[string]string{
			"date": "date cannot be changed after creation",
		}}
	}
	return s.UpdateByID(ctx, userID, id, fields)
}

// DeleteByID hard-deletes a reflection owned by userID.
func (s *Service) DeleteByID(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrNotFoundOrForbidden
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.Delete(ctx, userID, id); err != nil {
		return s.classify(err)
	}
	s.logger.Debug("reflection deleted", zap.String("user_id", userID), zap.String("id", id))
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) getByDay(ctx context.Context, userID string, bucket DayBucket) (*Reflection, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.store.GetByDay(ctx, userID, bucket.Key())
	if err != nil {
		return nil, s.classify(err)
	}
	return s.localize(r), nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// classify tags storage errors. Domain sentinels pass through untouched.
func (s *Service) classify(err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNotFoundOrForbidden),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrStorageTimeout),
		errors.Is(err, ErrStorageUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrStorageTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}

// localize presents the stored bucket start in the service location.
func (s *Service) localize(r *Reflection) *Reflection {
	if r == nil {
		return nil
	}
	out := *r
	out.Date = r.Date.In(s.loc)
	return &out
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}
	return nil
}
