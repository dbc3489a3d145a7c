package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/treinoia/treinoia/internal/api"
)

type claimsKey struct{}

// Middleware admits requests carrying a valid access token and stores its
// claims in the request context. Tokens whose subject is not a user id are
// refused here so downstream handlers can rely on UserID.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="treinoia"`)
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims, err := svc.ValidateAccessToken(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="treinoia", error="invalid_token"`)
				api.HandleError(w, api.ErrInvalidToken)
				return
			}
			if _, err := uuid.Parse(claims.UserID); err != nil {
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithClaims stores the authenticated caller in ctx.
func WithClaims(ctx context.Context, claims *AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func GetUserClaims(ctx context.Context) *AccessClaims {
	claims, _ := ctx.Value(claimsKey{}).(*AccessClaims)
	return claims
}

// UserID returns the authenticated caller, or false when the request carries
// no valid identity.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	claims := GetUserClaims(ctx)
	if claims == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
