package middleware

import (
	"slices"

	"github.com/go-chi/cors"
)

// CORS returns the options for the web and mobile clients. Without
// configured origins only the local dev server is allowed. A "*" origin
// disables credentials, since browsers reject that combination.
func CORS(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: !slices.Contains(allowedOrigins, "*"),
		MaxAge:           600,
	}
}
