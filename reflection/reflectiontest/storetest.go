// Package reflectiontest holds the conformance suite every reflection.Store must pass.
package reflectiontest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/daily-reflections/reflection"
)

// Factory returns an empty store. Cleanup is the factory's job (t.Cleanup).
type Factory func(t *testing.T) reflection.Store

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// NewReflection builds a row for day (YYYY-MM-DD, UTC midnight) with a fresh id.
func NewReflection(userID, day string) reflection.Reflection {
	start, err := time.ParseInLocation(reflection.DayKeyLayout, day, time.UTC)
	if err != nil {
		panic(err)
	}
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	return reflection.Reflection{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      start,
		Day:       day,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RunStoreTests runs the Store contract against stores produced by newStore.
func RunStoreTests(t *testing.T, newStore Factory) {
	t.Run("InsertThenGetByDay", func(t *testing.T) { testInsertThenGetByDay(t, newStore(t)) })
	t.Run("SecondInsertSameDayIgnored", func(t *testing.T) { testSecondInsertSameDayIgnored(t, newStore(t)) })
	t.Run("SameDayDifferentUsers", func(t *testing.T) { testSameDayDifferentUsers(t, newStore(t)) })
	t.Run("ConcurrentInsertsOneWinner", func(t *testing.T) { testConcurrentInserts(t, newStore(t)) })
	t.Run("GetByIDOwnership", func(t *testing.T) { testGetByIDOwnership(t, newStore(t)) })
	t.Run("UpdatePartial", func(t *testing.T) { testUpdatePartial(t, newStore(t)) })
	t.Run("UpdateOtherUserForbidden", func(t *testing.T) { testUpdateOtherUser(t, newStore(t)) })
	t.Run("DeleteThenReinsert", func(t *testing.T) { testDeleteThenReinsert(t, newStore(t)) })
	t.Run("DeleteOtherUserForbidden", func(t *testing.T) { testDeleteOtherUser(t, newStore(t)) })
	t.Run("ListNewestFirst", func(t *testing.T) { testListNewestFirst(t, newStore(t)) })
}

func testInsertThenGetByDay(t *testing.T, s reflection.Store) {
	ctx := context.Background()
	r := NewReflection("user-a", "2024-04-20")
	r.KnowledgeLearned = Str("channels")
	r.PeopleSolved = Str("")

	inserted, err := s.InsertIfAbsent(ctx, r)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := s.GetByDay(ctx, "user-a", "2024-04-20")
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "2024-04-20", got.Day)
	assert.True(t, r.Date.Equal(got.Date))
	require.NotNil(t, got.KnowledgeLearned)
	assert.Equal(t, "channels", *got.KnowledgeLearned)
	assert.Nil(t, got.InterestingAction, "absent field stays absent")
	require.NotNil(t, got.PeopleSolved, "blank answer is distinct from absent")
	assert.Equal(t, "", *got.PeopleSolved)

	_, err = s.GetByDay(ctx, "user-a", "2024-04-21")
	assert.ErrorIs(t, err, reflection.ErrNotFound)
}

func testSecondInsertSameDayIgnored(t *testing.T, s reflection.Store) {
	ctx := context.Background()
	first := NewReflection("user-a", "2024-04-20")
	first.KnowledgeLearned = Str("first")
	second := NewReflection("user-a", "2024-04-20")
	second.KnowledgeLearned = Str("second")

	inserted, err := s.InsertIfAbsent(ctx, first)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.InsertIfAbsent(ctx, second)
	if err != nil {
		assert.ErrorIs(t, err, reflection.ErrUniqueCollision)
	}
	assert.False(t, inserted)

	got, err := s.GetByDay(ctx, "user-a", "2024-04-20")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "first", *got.KnowledgeLearned)

	list, err := s.ListByUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testSameDayDifferentUsers(t *testing.T, s reflection.Store) {
	ctx := context.Background()
	for _, u := range []string{"user-a", "user-b"} {
		inserted, err := s.InsertIfAbsent(ctx, NewReflection(u, "2024-04-20"))
		require.NoError(t, err)
		assert.True(t, inserted, "user %s", u)
	}
}

func testConcurrentInserts(t *testing.T, s reflection.Store) {
	ctx := context.Background()
	const n = 16

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		failures []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := NewReflection("user-a", "2024-04-20")
			r.KnowledgeLearned = Str(fmt.Sprintf("writer-%d", i))
			inserted, err := s.InsertIfAbsent(ctx, r)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, reflection.ErrUniqueCollision) {
					failures = append(failures, err)
				}
				return
			}
			if inserted {
				winners++
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, failures)
	assert.Equal(t, 1, winners)

	list, err := s.ListByUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testGetByIDOwnership(t *testing.T, s reflection.Store) {
	ctx := context.Background()
	r := NewReflection("user-a", "2024-04-20")
	_, err := s.InsertIfAbsent(ctx, r)
	require.NoError(t, err)

	got, err := s.GetByID(ctx, "user-a", r.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-a", got.UserID)

	_, err = s.GetByID(ctx, "user-b", r.ID)
	assert.ErrorIs(t, err, reflection.ErrNotFoundOrForbidden)

	_, err = s.GetByID(ctx, "user-a", uuid.NewString())
	assert.ErrorIs(t, err, reflection.ErrNotFoundOrForbidden)
}

func testUpdatePartial(t *testing.T, s reflection.Store) {
	ctx := context.Background()
	r := NewReflection("user-a", "2024-04-20")
	r.KnowledgeLearned = Str("old knowledge")
	r.InterestingAction = Str("old action")
	_, err := s.InsertIfAbsent(ctx, r)
	require.NoError(t, err)

	at := r.UpdatedAt.Add(time.Hour)
	got, err := s.Update(ctx, "user-a", r.ID, reflection.Fields{
		InterestingAction: Str("new action"),
		PeopleSolved:      Str("a neighbour"),
	}, at)
	require.NoError(t, err)

	assert.Equal(t, "old knowledge", *got.KnowledgeLearned, "unspecified field keeps value")
	assert.Equal(t, "new action", *got.InterestingAction)
	assert.Equal(t, "a neighbour", *got.PeopleSolved)
	assert.Equal(t, "2024-04-20", got.Day, "day is immutable")
	assert.True(t, at.Equal(got.UpdatedAt))
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt))

	reread, err := s.GetByID(ctx, "user-a", r.ID)
	require.NoError(t, err)
	assert.Equal(t, "new action", *reread.InterestingAction)
}

func testUpdateOtherUser(t *testing.T, s reflection.Store) {
	ctx := context.Background()
	r := NewReflection("user-a", "2024-04-20")
	r.KnowledgeLearned = Str("mine")
	_, err := s.InsertIfAbsent(ctx, r)
	require.NoError(t, err)

	_, err = s.Update(ctx, "user-b", r.ID, reflection.Fields{KnowledgeLearned: Str("stolen")}, time.Now())
	assert.ErrorIs(t, err, reflection.ErrNotFoundOrForbidden)

	got, err := s.GetByID(ctx, "user-a", r.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", *got.KnowledgeLearned)
}

func testDeleteThenReinsert(t *testing.T, s reflection.Store) {
	ctx := context.Background()
	r := NewReflection("user-a", "2024-04-20")
	_, err := s.InsertIfAbsent(ctx, r)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "user-a", r.ID))

	_, err = s.GetByID(ctx, "user-a", r.ID)
	assert.ErrorIs(t, err, reflection.ErrNotFoundOrForbidden)
	_, err = s.GetByDay(ctx, "user-a", "2024-04-20")
	assert.ErrorIs(t, err, reflection.ErrNotFound)

	fresh := NewReflection("user-a", "2024-04-20")
	inserted, err := s.InsertIfAbsent(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := s.GetByDay(ctx, "user-a", "2024-04-20")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
	assert.NotEqual(t, r.ID, got.ID)

	err = s.Delete(ctx, "user-a", r.ID)
	assert.ErrorIs(t, err, reflection.ErrNotFoundOrForbidden, "second delete of old id")
}

func testDeleteOtherUser(t *testing.T, s reflection.Store) {
	ctx := context.Background()
	r := NewReflection("user-a", "2024-04-20")
	_, err := s.InsertIfAbsent(ctx, r)
	require.NoError(t, err)

	err = s.Delete(ctx, "user-b", r.ID)
	assert.ErrorIs(t, err, reflection.ErrNotFoundOrForbidden)

	_, err = s.GetByID(ctx, "user-a", r.ID)
	assert.NoError(t, err)
}

func testListNewestFirst(t *testing.T, s reflection.Store) {
	ctx := context.Background()
	for _, day := range []string{"2024-01-15", "2024-02-01", "2023-12-31", "2024-01-20"} {
		_, err := s.InsertIfAbsent(ctx, NewReflection("user-a", day))
		require.NoError(t, err)
	}
	_, err := s.InsertIfAbsent(ctx, NewReflection("user-b", "2024-03-01"))
	require.NoError(t, err)

	list, err := s.ListByUser(ctx, "user-a")
	require.NoError(t, err)

	days := make([]string, len(list))
	for i, r := range list {
		days[i] = r.Day
	}
	assert.Equal(t, []string{"2024-02-01", "2024-01-20", "2024-01-15", "2023-12-31"}, days)

	empty, err := s.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
