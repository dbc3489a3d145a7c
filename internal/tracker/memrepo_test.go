package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo mirrors the owner scoping and ordering of PostgresRepository.
// created_at comes from now so tests can place entries on given days.
type memRepo struct {
	mu       sync.Mutex
	now      func() time.Time
	meals    []MealEntry
	entries  []WorkoutEntry
	workouts []Workout
}

func newMemRepo(now func() time.Time) *memRepo {
	return &memRepo{now: now}
}

func (m *memRepo) CreateMeal(_ context.Context, e *MealEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID, e.CreatedAt = uuid.New(), m.now()
	m.meals = append(m.meals, *e)
	return nil
}

func (m *memRepo) ListMeals(_ context.Context, userID uuid.UUID, from, to time.Time) ([]MealEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MealEntry
	for _, e := range m.meals {
		if e.UserID == userID && !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) DeleteMeal(_ context.Context, userID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.meals {
		if e.ID == id && e.UserID == userID {
			m.meals = append(m.meals[:i], m.meals[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) CreateWorkoutEntry(_ context.Context, e *WorkoutEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID, e.CreatedAt = uuid.New(), m.now()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRepo) ListWorkoutEntries(_ context.Context, userID uuid.UUID, from, to time.Time) ([]WorkoutEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []WorkoutEntry
	for _, e := range m.entries {
		if e.UserID == userID && !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) DeleteWorkoutEntry(_ context.Context, userID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id && e.UserID == userID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) CreateWorkout(_ context.Context, w *Workout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID, w.CreatedAt = uuid.New(), m.now()
	m.workouts = append(m.workouts, *w)
	return nil
}

func (m *memRepo) ListWorkouts(_ context.Context, userID uuid.UUID, filter WorkoutFilter, page, pageSize int) ([]Workout, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Workout
	for _, w := range m.workouts {
		if w.UserID != userID {
			continue
		}
		if (filter == FilterCompleted && !w.Completed) || (filter == FilterPending && w.Completed) {
			continue
		}
		matched = append(matched, w)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	start := min((page-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (m *memRepo) SetCompleted(_ context.Context, userID, id uuid.UUID, completed bool) (*Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.workouts {
		w := &m.workouts[i]
		if w.ID != id || w.UserID != userID {
			continue
		}
		w.Completed = completed
		switch {
		case !completed:
			w.CompletedAt = nil
		case w.CompletedAt == nil:
			at := m.now()
			w.CompletedAt = &at
		}
		out := *w
		return &out, nil
	}
	return nil, nil
}

func (m *memRepo) DeleteWorkout(_ context.Context, userID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.workouts {
		if w.ID == id && w.UserID == userID {
			m.workouts = append(m.workouts[:i], m.workouts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
