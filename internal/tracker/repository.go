package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines tracker persistence. Every query is scoped to the
// owning user; a row of another user behaves as missing.
type Repository interface {
	CreateMeal(ctx context.Context, m *MealEntry) error
	ListMeals(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]MealEntry, error)
	DeleteMeal(ctx context.Context, userID, id uuid.UUID) (bool, error)

	CreateWorkoutEntry(ctx context.Context, e *WorkoutEntry) error
	ListWorkoutEntries(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]WorkoutEntry, error)
	DeleteWorkoutEntry(ctx context.Context, userID, id uuid.UUID) (bool, error)

	CreateWorkout(ctx context.Context, w *Workout) error
	ListWorkouts(ctx context.Context, userID uuid.UUID, filter WorkoutFilter, page, pageSize int) ([]Workout, int64, error)
	SetCompleted(ctx context.Context, userID, id uuid.UUID, completed bool) (*Workout, error)
	DeleteWorkout(ctx context.Context, userID, id uuid.UUID) (bool, error)
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateMeal(ctx context.Context, m *MealEntry) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO meal_entries (user_id, meal_name, calories, protein, carbs, fat, meal_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		m.UserID, m.MealName, m.Calories, m.Protein, m.Carbs, m.Fat, m.MealType,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting meal entry: %w", err)
	}
	return nil
}

// ListMeals returns the entries created in [from, to), newest first.
func (r *PostgresRepository) ListMeals(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]MealEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, meal_name, calories, protein, carbs, fat, meal_type, created_at
		 FROM meal_entries
		 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at DESC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("listing meal entries: %w", err)
	}
	meals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MealEntry, error) {
		var m MealEntry
		err := row.Scan(&m.ID, &m.UserID, &m.MealName, &m.Calories, &m.Protein, &m.Carbs, &m.Fat, &m.MealType, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning meal entries: %w", err)
	}
	return meals, nil
}

func (r *PostgresRepository) DeleteMeal(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	return r.deleteOwned(ctx, "meal_entries", userID, id)
}

func (r *PostgresRepository) CreateWorkoutEntry(ctx context.Context, e *WorkoutEntry) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO workout_entries (user_id, workout_name, duration_minutes, calories_burned, workout_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.UserID, e.WorkoutName, e.DurationMinutes, e.CaloriesBurned, e.WorkoutType,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting workout entry: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListWorkoutEntries(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]WorkoutEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, workout_name, duration_minutes, calories_burned, workout_type, created_at
		 FROM workout_entries
		 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at DESC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("listing workout entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (WorkoutEntry, error) {
		var e WorkoutEntry
		err := row.Scan(&e.ID, &e.UserID, &e.WorkoutName, &e.DurationMinutes, &e.CaloriesBurned, &e.WorkoutType, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning workout entries: %w", err)
	}
	return entries, nil
}

func (r *PostgresRepository) DeleteWorkoutEntry(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	return r.deleteOwned(ctx, "workout_entries", userID, id)
}

const workoutColumns = `id, user_id, title, description, duration_minutes, difficulty, exercises, completed, completed_at, created_at`

func scanWorkout(row pgx.Row, extra ...any) (Workout, error) {
	var (
		w   Workout
		raw []byte
	)
	dest := append([]any{&w.ID, &w.UserID, &w.Title, &w.Description, &w.DurationMinutes,
		&w.Difficulty, &raw, &w.Completed, &w.CompletedAt, &w.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return w, err
	}
	if err := json.Unmarshal(raw, &w.Exercises); err != nil {
		return w, fmt.Errorf("decoding exercises: %w", err)
	}
	return w, nil
}

func (r *PostgresRepository) CreateWorkout(ctx context.Context, w *Workout) error {
	raw, err := json.Marshal(w.Exercises)
	if err != nil {
		return fmt.Errorf("encoding exercises: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO workouts (user_id, title, description, duration_minutes, difficulty, exercises)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		w.UserID, w.Title, w.Description, w.DurationMinutes, w.Difficulty, raw,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting workout: %w", err)
	}
	return nil
}

// ListWorkouts returns one page, newest first, with the filtered total.
func (r *PostgresRepository) ListWorkouts(ctx context.Context, userID uuid.UUID, filter WorkoutFilter, page, pageSize int) ([]Workout, int64, error) {
	where := "user_id = $1"
	switch filter {
	case FilterCompleted:
		where += " AND completed"
	case FilterPending:
		where += " AND NOT completed"
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+workoutColumns+`, COUNT(*) OVER () AS total
		 FROM workouts
		 WHERE `+where+`
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		userID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing workouts: %w", err)
	}

	var total int64
	workouts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Workout, error) {
		return scanWorkout(row, &total)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scanning workouts: %w", err)
	}

	// A page past the end has no rows to carry the window count.
	if len(workouts) == 0 && page > 1 {
		if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM workouts WHERE "+where, userID).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("counting workouts: %w", err)
		}
	}
	return workouts, total, nil
}

// SetCompleted keeps the first completion time when a workout is marked
// completed twice. It returns nil when the workout does not exist.
func (r *PostgresRepository) SetCompleted(ctx context.Context, userID, id uuid.UUID, completed bool) (*Workout, error) {
	w, err := scanWorkout(r.pool.QueryRow(ctx,
		`UPDATE workouts
		 SET completed = $3,
		     completed_at = CASE WHEN $3 THEN COALESCE(completed_at, NOW()) ELSE NULL END
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+workoutColumns,
		id, userID, completed,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("updating workout completion: %w", err)
	}
	return &w, nil
}

func (r *PostgresRepository) DeleteWorkout(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	return r.deleteOwned(ctx, "workouts", userID, id)
}

// deleteOwned removes a row of table. table is always a constant.
func (r *PostgresRepository) deleteOwned(ctx context.Context, table string, userID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting from %s: %w", table, err)
	}
	return tag.RowsAffected() > 0, nil
}
