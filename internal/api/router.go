package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/treinoia/treinoia/internal/database"
	mw "github.com/treinoia/treinoia/internal/middleware"
	inats "github.com/treinoia/treinoia/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Profile handlers
	GetProfile     http.HandlerFunc
	UpdateProfile  http.HandlerFunc
	SetEntitlement http.HandlerFunc

	// Quota and AI
	GetQuota   http.HandlerFunc
	CompleteAI http.HandlerFunc

	// History handlers
	GetChatHistory   http.HandlerFunc
	ResetChatHistory http.HandlerFunc
	ListAnalyses     http.HandlerFunc

	// Tracker handlers
	GetDay             http.HandlerFunc
	AddMeal            http.HandlerFunc
	DeleteMeal         http.HandlerFunc
	AddWorkoutEntry    http.HandlerFunc
	DeleteWorkoutEntry http.HandlerFunc
	ListWorkouts       http.HandlerFunc
	CreateWorkout      http.HandlerFunc
	SampleWorkout      http.HandlerFunc
	SetWorkoutDone     http.HandlerFunc
	DeleteWorkout      http.HandlerFunc

	ListAuditLogs http.HandlerFunc

	AuthMiddleware  func(http.Handler) http.Handler
	AdminMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

// Dependencies are the backing services probed by the readiness endpoint.
// A nil field is reported as "not configured".
type Dependencies struct {
	DB    *pgxpool.Pool
	Redis goredis.Cmdable
	NATS  *inats.Client
}

func NewRouter(deps Dependencies, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	r.Get("/health/ready", readinessHandler(deps))
	r.Get("/health", readinessHandler(deps))

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public), optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)

			r.Get("/quota", h.GetQuota)
			r.Post("/ai", h.CompleteAI)

			r.Route("/chat/history", func(r chi.Router) {
				r.Get("/", h.GetChatHistory)
				r.Delete("/", h.ResetChatHistory)
			})
			r.Get("/analyses", h.ListAnalyses)

			r.Route("/tracker", func(r chi.Router) {
				r.Get("/day", h.GetDay)
				r.Post("/meals", h.AddMeal)
				r.Delete("/meals/{id}", h.DeleteMeal)
				r.Post("/workout-entries", h.AddWorkoutEntry)
				r.Delete("/workout-entries/{id}", h.DeleteWorkoutEntry)
			})
			r.Route("/workouts", func(r chi.Router) {
				r.Get("/", h.ListWorkouts)
				r.Post("/", h.CreateWorkout)
				r.Post("/sample", h.SampleWorkout)
				r.Put("/{id}/completed", h.SetWorkoutDone)
				r.Delete("/{id}", h.DeleteWorkout)
			})

			r.Get("/audit", h.ListAuditLogs)

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.AdminMiddleware)
				r.Put("/users/{userID}/entitlement", h.SetEntitlement)
			})
		})
	})

	return r
}

func readinessHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
		}
		status := http.StatusOK

		degrade := func(component string) {
			health[component] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if deps.DB == nil {
			health["database"] = "not configured"
		} else if err := database.HealthCheck(r.Context(), deps.DB); err != nil {
			degrade("database")
		}

		if deps.Redis == nil {
			health["redis"] = "not configured"
		} else if err := pingRedis(r.Context(), deps.Redis); err != nil {
			degrade("redis")
		}

		// NATS is optional: a missing client is not a failure.
		if deps.NATS == nil {
			health["nats"] = "not configured"
		} else if !deps.NATS.Healthy() {
			degrade("nats")
		}

		JSON(w, status, health)
	}
}

func pingRedis(ctx context.Context, rdb goredis.Cmdable) error {
	return rdb.Ping(ctx).Err()
}
