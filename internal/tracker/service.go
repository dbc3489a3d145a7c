package tracker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/treinoia/treinoia/internal/quota"
)

const dateLayout = "2006-01-02"

// Service manages the logs of one user. Days follow the quota calendar so a
// summary covers the same day the daily counters do.
type Service struct {
	repo Repository
	cal  quota.Calendar
	pick func(n int) int
}

func NewService(repo Repository, loc *time.Location) *Service {
	return &Service{repo: repo, cal: quota.NewCalendar(loc), pick: rand.IntN}
}

func (s *Service) AddMeal(ctx context.Context, userID uuid.UUID, req *CreateMealRequest) (*MealEntry, error) {
	m := &MealEntry{
		UserID:   userID,
		MealName: req.MealName,
		Calories: req.Calories,
		Protein:  req.Protein,
		Carbs:    req.Carbs,
		Fat:      req.Fat,
		MealType: req.MealType,
	}
	if m.MealType == "" {
		m.MealType = MealLunch
	}
	if err := s.repo.CreateMeal(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) DeleteMeal(ctx context.Context, userID, id uuid.UUID) error {
	return found(s.repo.DeleteMeal(ctx, userID, id))
}

func (s *Service) AddWorkoutEntry(ctx context.Context, userID uuid.UUID, req *CreateWorkoutEntryRequest) (*WorkoutEntry, error) {
	e := &WorkoutEntry{
		UserID:          userID,
		WorkoutName:     req.WorkoutName,
		DurationMinutes: req.DurationMinutes,
		CaloriesBurned:  req.CaloriesBurned,
		WorkoutType:     req.WorkoutType,
	}
	if err := s.repo.CreateWorkoutEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) DeleteWorkoutEntry(ctx context.Context, userID, id uuid.UUID) error {
	return found(s.repo.DeleteWorkoutEntry(ctx, userID, id))
}

// ParseDay reads a YYYY-MM-DD date in the calendar's location. An empty
// string means today.
func (s *Service) ParseDay(date string) (time.Time, error) {
	if date == "" {
		return s.cal.Now(), nil
	}
	return time.ParseInLocation(dateLayout, date, s.cal.Location)
}

// Day returns the entries and totals of the calendar day containing day.
func (s *Service) Day(ctx context.Context, userID uuid.UUID, day time.Time) (*DailySummary, error) {
	from, to := s.cal.DayBounds(day)

	meals, err := s.repo.ListMeals(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListWorkoutEntries(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	sum := Summarize(meals, entries)
	sum.Date = from.Format(dateLayout)
	return &sum, nil
}

// Summarize totals the macros eaten and the calories burned. NetCalories
// is eaten minus burned and may be negative.
func Summarize(meals []MealEntry, entries []WorkoutEntry) DailySummary {
	sum := DailySummary{Meals: meals, Workouts: entries}
	if sum.Meals == nil {
		sum.Meals = []MealEntry{}
	}
	if sum.Workouts == nil {
		sum.Workouts = []WorkoutEntry{}
	}
	for _, m := range meals {
		sum.TotalCalories += m.Calories
		sum.TotalProtein += m.Protein
		sum.TotalCarbs += m.Carbs
		sum.TotalFat += m.Fat
	}
	for _, e := range entries {
		sum.CaloriesBurned += e.CaloriesBurned
	}
	sum.NetCalories = sum.TotalCalories - sum.CaloriesBurned
	return sum
}

func (s *Service) CreateWorkout(ctx context.Context, userID uuid.UUID, req *CreateWorkoutRequest) (*Workout, error) {
	w := &Workout{
		UserID:          userID,
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Difficulty:      req.Difficulty,
		Exercises:       req.Exercises,
	}
	if err := s.createWorkout(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// SampleWorkout adds one of the built-in templates at random.
func (s *Service) SampleWorkout(ctx context.Context, userID uuid.UUID) (*Workout, error) {
	tpl := sampleWorkouts[s.pick(len(sampleWorkouts))]
	w := &Workout{
		UserID:          userID,
		Title:           tpl.Title,
		Description:     tpl.Description,
		DurationMinutes: tpl.DurationMinutes,
		Difficulty:      tpl.Difficulty,
		Exercises:       append([]Exercise(nil), tpl.Exercises...),
	}
	if err := s.createWorkout(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) createWorkout(ctx context.Context, w *Workout) error {
	if w.Difficulty == "" {
		w.Difficulty = "medio"
	}
	if w.Exercises == nil {
		w.Exercises = []Exercise{}
	}
	return s.repo.CreateWorkout(ctx, w)
}

func (s *Service) Workouts(ctx context.Context, userID uuid.UUID, filter WorkoutFilter, page, pageSize int) ([]Workout, int64, error) {
	items, total, err := s.repo.ListWorkouts(ctx, userID, filter, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []Workout{}
	}
	return items, total, nil
}

// SetCompleted marks a workout done or pending again.
func (s *Service) SetCompleted(ctx context.Context, userID, id uuid.UUID, completed bool) (*Workout, error) {
	w, err := s.repo.SetCompleted(ctx, userID, id, completed)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNotFound
	}
	return w, nil
}

func (s *Service) DeleteWorkout(ctx context.Context, userID, id uuid.UUID) error {
	return found(s.repo.DeleteWorkout(ctx, userID, id))
}

func found(ok bool, err error) error {
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

var sampleWorkouts = []Workout{
	{
		Title:           "Treino de Força - Parte Superior",
		Description:     "Treino focado em peito, ombros e tríceps para ganho de massa muscular",
		DurationMinutes: 45,
		Difficulty:      "medio",
		Exercises: []Exercise{
			{Name: "Supino Reto", Sets: 4, Reps: 10},
			{Name: "Desenvolvimento com Halteres", Sets: 3, Reps: 12},
			{Name: "Tríceps na Polia", Sets: 3, Reps: 15},
		},
	},
	{
		Title:           "Cardio HIIT",
		Description:     "Treino intervalado de alta intensidade para queima de gordura",
		DurationMinutes: 30,
		Difficulty:      "dificil",
		Exercises: []Exercise{
			{Name: "Burpees", Sets: 5, Reps: 15},
			{Name: "Mountain Climbers", Sets: 5, Reps: 20},
			{Name: "Jump Squats", Sets: 5, Reps: 15},
		},
	},
	{
		Title:           "Treino de Pernas",
		Description:     "Treino completo para quadríceps, posteriores e glúteos",
		DurationMinutes: 50,
		Difficulty:      "medio",
		Exercises: []Exercise{
			{Name: "Agachamento", Sets: 4, Reps: 12},
			{Name: "Leg Press", Sets: 4, Reps: 15},
			{Name: "Stiff", Sets: 3, Reps: 12},
		},
	},
}
