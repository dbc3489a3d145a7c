package profiles

import (
	"log/slog"
	"net/http"

	"github.com/treinoia/treinoia/internal/api"
	"github.com/treinoia/treinoia/internal/auth"
)

// RequireAdmin rejects callers whose profile role is not admin.
// Must be mounted after auth.Middleware.
func RequireAdmin(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserID(r.Context())
			if !ok {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			p, err := svc.repo.GetByUserID(r.Context(), userID)
			if err != nil {
				slog.Error("admin check: loading profile", "error", err)
				api.HandleError(w, api.ErrInternalServer)
				return
			}
			if p == nil || p.Role != RoleAdmin {
				api.HandleError(w, api.ErrAdminRequired)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
