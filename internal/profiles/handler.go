package profiles

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/treinoia/treinoia/internal/api"
	"github.com/treinoia/treinoia/internal/auth"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// caller returns the authenticated user id and email.
func caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, "", false
	}
	return userID, auth.GetUserClaims(r.Context()).Email, true
}

// decodeValid reads the body into v and runs struct validation. Unknown
// fields such as tier or credits are ignored, never applied.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, v any, invalid string) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		api.HandleError(w, api.NewValidationError(invalid))
		return false
	}
	return true
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := caller(w, r)
	if !ok {
		return
	}

	p, err := h.svc.Get(r.Context(), userID, email)
	if err != nil {
		slog.Error("getting profile", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, p)
}

// Update changes the self-service fields of the caller's profile.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := caller(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !h.decodeValid(w, r, &req, "Dados de perfil inválidos") {
		return
	}

	p, err := h.svc.Update(r.Context(), userID, email, &req)
	if err != nil {
		slog.Error("updating profile", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, p)
}

// SetEntitlement is mounted behind RequireAdmin.
func (h *Handler) SetEntitlement(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("Identificador de utilizador inválido"))
		return
	}

	var req EntitlementRequest
	if !h.decodeValid(w, r, &req, "Plano, papel ou créditos inválidos") {
		return
	}

	p, err := h.svc.SetEntitlement(r.Context(), actorID, userID, &req)
	if err != nil {
		slog.Error("setting entitlement", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if p == nil {
		api.HandleError(w, api.NewNotFoundError("Perfil não encontrado"))
		return
	}

	slog.Info("entitlement changed", "user_id", userID, "tier", p.Tier, "actor", actorID)
	api.JSON(w, http.StatusOK, p)
}
