package history

import (
	"log/slog"
	"net/http"

	"github.com/treinoia/treinoia/internal/api"
	"github.com/treinoia/treinoia/internal/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetChat returns the caller's conversation.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	msgs, err := h.svc.Chat(r.Context(), userID)
	if err != nil {
		slog.Error("loading chat history", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, msgs)
}

// ResetChat starts a new conversation.
func (h *Handler) ResetChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	msgs, err := h.svc.ResetChat(r.Context(), userID)
	if err != nil {
		slog.Error("resetting chat history", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, msgs)
}

// ListAnalyses returns paginated meal analyses.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	page, pageSize := api.Pagination(r)
	items, total, err := h.svc.Analyses(r.Context(), userID, page, pageSize)
	if err != nil {
		slog.Error("listing food analyses", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSONPaginated(w, http.StatusOK, items, total, page, pageSize)
}
