package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/treinoia/treinoia/internal/api"
	"github.com/treinoia/treinoia/internal/auth"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List returns paginated audit logs for the authenticated user.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	params := ParseListParams(r)

	logs, total, err := h.repo.ListByOwner(r.Context(), userID, params)
	if err != nil {
		slog.Error("listing audit logs", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, logs, total, params.Page, params.PageSize)
}

// ParseListParams reads filters and pagination from the query string.
// Unparseable values are ignored.
func ParseListParams(r *http.Request) ListParams {
	params := DefaultListParams()
	params.Page, params.PageSize = api.Pagination(r)

	q := r.URL.Query()
	params.EventType = q.Get("event_type")
	params.Severity = q.Get("severity")
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			params.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			params.To = &t
		}
	}
	return params
}
