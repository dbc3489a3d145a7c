package tracker

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/treinoia/treinoia/internal/api"
	"github.com/treinoia/treinoia/internal/auth"
)

const maxTrackerBody = 64 << 10

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, v any, invalid string) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTrackerBody)).Decode(v); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		api.HandleError(w, api.NewValidationError(invalid))
		return false
	}
	return true
}

// ownedTarget resolves the caller and the {id} path parameter.
func ownedTarget(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("Identificador inválido"))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

func mutationError(w http.ResponseWriter, err error, op string, notFound string) {
	if errors.Is(err, ErrNotFound) {
		api.HandleError(w, api.NewNotFoundError(notFound))
		return
	}
	slog.Error(op, "error", err)
	api.HandleError(w, api.ErrInternalServer)
}

// Day returns the meals, logged sessions and calorie balance of ?date=,
// today by default.
func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	day, err := h.svc.ParseDay(r.URL.Query().Get("date"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("Data inválida, usa o formato AAAA-MM-DD"))
		return
	}

	sum, err := h.svc.Day(r.Context(), userID, day)
	if err != nil {
		slog.Error("loading daily summary", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, sum)
}

func (h *Handler) AddMeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateMealRequest
	if !h.decodeValid(w, r, &req, "Preenche o nome da refeição e as calorias") {
		return
	}

	m, err := h.svc.AddMeal(r.Context(), userID, &req)
	if err != nil {
		slog.Error("adding meal entry", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusCreated, m)
}

func (h *Handler) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := ownedTarget(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteMeal(r.Context(), userID, id); err != nil {
		mutationError(w, err, "deleting meal entry", "Refeição não encontrada")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddWorkoutEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateWorkoutEntryRequest
	if !h.decodeValid(w, r, &req, "Preenche o nome do treino e a duração") {
		return
	}

	e, err := h.svc.AddWorkoutEntry(r.Context(), userID, &req)
	if err != nil {
		slog.Error("adding workout entry", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusCreated, e)
}

func (h *Handler) DeleteWorkoutEntry(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := ownedTarget(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteWorkoutEntry(r.Context(), userID, id); err != nil {
		mutationError(w, err, "deleting workout entry", "Treino não encontrado")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListWorkouts accepts ?status=all|completed|pending plus pagination.
func (h *Handler) ListWorkouts(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	filter, ok := ParseWorkoutFilter(r.URL.Query().Get("status"))
	if !ok {
		api.HandleError(w, api.NewBadRequestError("Estado inválido, usa all, completed ou pending"))
		return
	}

	page, pageSize := api.Pagination(r)
	items, total, err := h.svc.Workouts(r.Context(), userID, filter, page, pageSize)
	if err != nil {
		slog.Error("listing workouts", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSONPaginated(w, http.StatusOK, items, total, page, pageSize)
}

func (h *Handler) CreateWorkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateWorkoutRequest
	if !h.decodeValid(w, r, &req, "Dados de treino inválidos") {
		return
	}

	wo, err := h.svc.CreateWorkout(r.Context(), userID, &req)
	if err != nil {
		slog.Error("creating workout", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusCreated, wo)
}

func (h *Handler) SampleWorkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	wo, err := h.svc.SampleWorkout(r.Context(), userID)
	if err != nil {
		slog.Error("creating sample workout", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusCreated, wo)
}

// SetCompleted takes {"completed": bool}.
func (h *Handler) SetCompleted(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := ownedTarget(w, r)
	if !ok {
		return
	}

	var req SetCompletedRequest
	if !h.decodeValid(w, r, &req, "Pedido inválido") {
		return
	}

	wo, err := h.svc.SetCompleted(r.Context(), userID, id, req.Completed)
	if err != nil {
		mutationError(w, err, "updating workout completion", "Treino não encontrado")
		return
	}
	api.JSON(w, http.StatusOK, wo)
}

func (h *Handler) DeleteWorkout(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := ownedTarget(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteWorkout(r.Context(), userID, id); err != nil {
		mutationError(w, err, "deleting workout", "Treino não encontrado")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
