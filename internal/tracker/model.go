// Package tracker keeps the manual nutrition and training logs: meals and
// workout sessions entered by the user, the daily calorie balance derived
// from them, and the planned workouts with their completion state.
package tracker

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("tracker entry not found")

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

type MealEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	MealName  string    `json:"meal_name"`
	Calories  int       `json:"calories"`
	Protein   int       `json:"protein"`
	Carbs     int       `json:"carbs"`
	Fat       int       `json:"fat"`
	MealType  MealType  `json:"meal_type"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkoutEntry is a training session logged after the fact.
type WorkoutEntry struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	WorkoutName     string    `json:"workout_name"`
	DurationMinutes int       `json:"duration_minutes"`
	CaloriesBurned  int       `json:"calories_burned"`
	WorkoutType     string    `json:"workout_type"`
	CreatedAt       time.Time `json:"created_at"`
}

// DailySummary is the calorie balance of one calendar day.
type DailySummary struct {
	Date           string         `json:"date"`
	TotalCalories  int            `json:"total_calories"`
	TotalProtein   int            `json:"total_protein"`
	TotalCarbs     int            `json:"total_carbs"`
	TotalFat       int            `json:"total_fat"`
	CaloriesBurned int            `json:"calories_burned"`
	NetCalories    int            `json:"net_calories"`
	Meals          []MealEntry    `json:"meals"`
	Workouts       []WorkoutEntry `json:"workouts"`
}

type Exercise struct {
	Name string `json:"name" validate:"required,max=100"`
	Sets int    `json:"sets" validate:"gt=0,lte=50"`
	Reps int    `json:"reps" validate:"gt=0,lte=500"`
}

// Workout is a planned session the user ticks off once done. CompletedAt is
// set exactly when Completed is true.
type Workout struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	Difficulty      string     `json:"difficulty"`
	Exercises       []Exercise `json:"exercises"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// WorkoutFilter selects workouts by completion state.
type WorkoutFilter string

const (
	FilterAll       WorkoutFilter = "all"
	FilterCompleted WorkoutFilter = "completed"
	FilterPending   WorkoutFilter = "pending"
)

// ParseWorkoutFilter maps an empty value to FilterAll.
func ParseWorkoutFilter(s string) (WorkoutFilter, bool) {
	switch f := WorkoutFilter(s); f {
	case "":
		return FilterAll, true
	case FilterAll, FilterCompleted, FilterPending:
		return f, true
	}
	return "", false
}

type CreateMealRequest struct {
	MealName string   `json:"meal_name" validate:"required,max=200"`
	Calories int      `json:"calories" validate:"gt=0,lte=20000"`
	Protein  int      `json:"protein" validate:"gte=0,lte=2000"`
	Carbs    int      `json:"carbs" validate:"gte=0,lte=2000"`
	Fat      int      `json:"fat" validate:"gte=0,lte=2000"`
	MealType MealType `json:"meal_type" validate:"omitempty,oneof=breakfast lunch dinner snack"`
}

type CreateWorkoutEntryRequest struct {
	WorkoutName     string `json:"workout_name" validate:"required,max=200"`
	DurationMinutes int    `json:"duration_minutes" validate:"gt=0,lte=1440"`
	CaloriesBurned  int    `json:"calories_burned" validate:"gte=0,lte=20000"`
	WorkoutType     string `json:"workout_type" validate:"max=100"`
}

type CreateWorkoutRequest struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Description     string     `json:"description" validate:"max=2000"`
	DurationMinutes int        `json:"duration_minutes" validate:"gt=0,lte=1440"`
	Difficulty      string     `json:"difficulty" validate:"omitempty,oneof=facil medio dificil"`
	Exercises       []Exercise `json:"exercises" validate:"max=50,dive"`
}

type SetCompletedRequest struct {
	Completed bool `json:"completed"`
}
