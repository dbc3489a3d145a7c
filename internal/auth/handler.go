package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/treinoia/treinoia/internal/api"
	"github.com/treinoia/treinoia/internal/users"
)

// ProfileProvisioner creates the plan and fitness profile of a new account.
type ProfileProvisioner interface {
	CreateDefault(ctx context.Context, userID uuid.UUID, email, fullName string) error
}

type Handler struct {
	authSvc  *Service
	userSvc  *users.Service
	profiles ProfileProvisioner
	validate *validator.Validate
}

func NewHandler(authSvc *Service, userSvc *users.Service, profiles ProfileProvisioner) *Handler {
	return &Handler{
		authSvc:  authSvc,
		userSvc:  userSvc,
		profiles: profiles,
		validate: validator.New(),
	}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"omitempty,max=120"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

const maxAuthBody = 16 << 10

// decode reads a small JSON body into v. Auth payloads are a few fields, so
// anything larger is refused outright.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBody)).Decode(v); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return false
	}
	return true
}

// issue answers with a fresh token pair for the account.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request, status int, user *users.User) {
	tokens, err := h.authSvc.GenerateTokens(r.Context(), user.ID.String(), user.Email)
	if err != nil {
		slog.Error("issuing tokens", "user_id", user.ID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, status, tokens)
}

// NormalizeEmail is applied before every lookup so "Ana@Mail.pt " and
// "ana@mail.pt" are the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	req.Email = NormalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError("Email ou nome inválido"))
		return
	}
	if err := CheckPasswordPolicy(req.Password); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		slog.Error("hashing password", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	user, err := h.userSvc.Create(r.Context(), req.Email, hash)
	if err != nil {
		if users.IsDuplicateEmail(err) {
			api.HandleError(w, api.ErrEmailAlreadyExists)
			return
		}
		slog.Error("creating user", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	// A missing profile is recreated on first read, so this is not fatal.
	if err := h.profiles.CreateDefault(r.Context(), user.ID, user.Email, req.FullName); err != nil {
		slog.Warn("creating default profile", "user_id", user.ID, "error", err)
	}

	slog.Info("user registered", "user_id", user.ID)
	h.issue(w, r, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	req.Email = NormalizeEmail(req.Email)

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrInvalidCredentials)
		return
	}

	user, err := h.userSvc.GetByEmail(r.Context(), req.Email)
	switch {
	case err != nil:
		slog.Error("looking up account", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	case user == nil:
		// Unknown accounts pay the same bcrypt cost as a wrong password.
		BurnPasswordCheck(req.Password)
		api.HandleError(w, api.ErrInvalidCredentials)
		return
	}

	if err := ComparePassword(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			slog.Error("comparing password hash", "user_id", user.ID, "error", err)
		}
		api.HandleError(w, api.ErrInvalidCredentials)
		return
	}

	h.issue(w, r, http.StatusOK, user)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	tokens, err := h.authSvc.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		slog.Info("refresh rejected", "error", err)
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	api.JSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	if err := h.authSvc.Logout(r.Context(), claims.UserID); err != nil {
		slog.Error("logging out", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "Sessão terminada")
}
