// Package store provides an in-memory reflection.Store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/daily-reflections/reflection"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps reflections in maps guarded by one mutex. The byDay index is
// the in-memory equivalent of UNIQUE(user_id, day).
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]reflection.Reflection
	byDay map[dayKey]string
}

type dayKey struct {
	UserID string
	Day    string
}

func NewMemory() *Memory {
	return &Memory{
		byID:  make(map[string]reflection.Reflection),
		byDay: make(map[dayKey]string),
	}
}

// InsertIfAbsent stores r unless the user's day is already taken.
func (m *Memory) InsertIfAbsent(ctx context.Context, r reflection.Reflection) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := dayKey{UserID: r.UserID, Day: r.Day}
	if _, taken := m.byDay[k]; taken {
		return false, nil
	}
	if _, dup := m.byID[r.ID]; dup {
		return false, reflection.ErrUniqueCollision
	}
	m.byID[r.ID] = r
	m.byDay[k] = r.ID
	return true, nil
}

func (m *Memory) GetByDay(ctx context.Context, userID, day string) (*reflection.Reflection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byDay[dayKey{UserID: userID, Day: day}]
	if !ok {
		return nil, reflection.ErrNotFound
	}
	r := m.byID[id]
	return &r, nil
}

func (m *Memory) GetByID(ctx context.Context, userID, id string) (*reflection.Reflection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.byID[id]
	if !ok || r.UserID != userID {
		return nil, reflection.ErrNotFoundOrForbidden
	}
	return &r, nil
}

func (m *Memory) Update(ctx context.Context, userID, id string, fields reflection.Fields, at time.Time) (*reflection.Reflection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.byID[id]
	if !ok || r.UserID != userID {
		return nil, reflection.ErrNotFoundOrForbidden
	}
	if fields.KnowledgeLearned != nil {
		r.KnowledgeLearned = fields.KnowledgeLearned
	}
	if fields.InterestingAction != nil {
		r.InterestingAction = fields.InterestingAction
	}
	if fields.PeopleSolved != nil {
		r.PeopleSolved = fields.PeopleSolved
	}
	r.UpdatedAt = at
	m.byID[id] = r
	return &r, nil
}

func (m *Memory) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.byID[id]
	if !ok || r.UserID != userID {
		return reflection.ErrNotFoundOrForbidden
	}
	delete(m.byID, id)
	delete(m.byDay, dayKey{UserID: r.UserID, Day: r.Day})
	return nil
}

func (m *Memory) ListByUser(ctx context.Context, userID string) ([]reflection.Reflection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []reflection.Reflection{}
	for _, r := range m.byID {
		if r.UserID == userID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day > result[j].Day })
	return result, nil
}

// Len returns the total number of stored reflections.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
