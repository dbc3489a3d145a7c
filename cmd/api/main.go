package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/treinoia/treinoia/internal/api"
	"github.com/treinoia/treinoia/internal/audit"
	"github.com/treinoia/treinoia/internal/auth"
	"github.com/treinoia/treinoia/internal/config"
	"github.com/treinoia/treinoia/internal/database"
	"github.com/treinoia/treinoia/internal/gateway"
	"github.com/treinoia/treinoia/internal/history"
	"github.com/treinoia/treinoia/internal/middleware"
	inats "github.com/treinoia/treinoia/internal/nats"
	"github.com/treinoia/treinoia/internal/openai"
	"github.com/treinoia/treinoia/internal/profiles"
	"github.com/treinoia/treinoia/internal/quota"
	iredis "github.com/treinoia/treinoia/internal/redis"
	"github.com/treinoia/treinoia/internal/server"
	"github.com/treinoia/treinoia/internal/tracker"
	"github.com/treinoia/treinoia/internal/users"
	"github.com/treinoia/treinoia/internal/vertex"
)

const chatCacheTTL = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DB.AutoMigrate {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional)
	var natsClient *inats.Client
	var events inats.EventPublisher = inats.NopPublisher{}
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		events = inats.NewPublisher(natsClient.JetStream())
	} else {
		slog.Info("NATS_URL not set, events disabled")
	}

	auditRepo := audit.NewRepository(pool)
	if natsClient != nil {
		consumer := audit.NewConsumer(auditRepo, inats.NewConsumerManager(natsClient.JetStream()))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Auth and profiles
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userSvc := users.NewService(users.NewRepository(pool))
	profileSvc := profiles.NewService(profiles.NewRepository(pool), events, cfg.Quota.DefaultCredits)
	authHandler := auth.NewHandler(authSvc, userSvc, profileSvc)
	profileHandler := profiles.NewHandler(profileSvc)

	encryptor, err := auth.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		slog.Error("creating encryptor", "error", err)
		os.Exit(1)
	}

	// Quota engine
	quotaSvc := quota.NewService(
		quota.NewRepository(pool),
		profileSvc,
		quota.NewRateLimiter(redisClient),
		events,
		cfg.Quota,
	)
	quotaHandler := quota.NewHandler(quotaSvc)

	// History
	historySvc := history.NewService(
		history.NewPostgresRepository(pool),
		history.NewCache(redisClient, chatCacheTTL),
		encryptor,
		cfg.History.MaxMessages,
	)
	historyHandler := history.NewHandler(historySvc)

	trackerHandler := tracker.NewHandler(tracker.NewService(tracker.NewPostgresRepository(pool), cfg.Quota.Location()))

	// AI gateway
	completer, closeCompleter := newCompleter(ctx, cfg.AI)
	defer closeCompleter()
	gw := gateway.New(completer, gateway.OptionsFromConfig(cfg.AI))
	aiHandler := gateway.NewHandler(gw, gateway.QuotaReserver(quotaSvc), historySvc, events)

	authLimiter := middleware.NewRateLimiter(redisClient, "auth", cfg.AuthRateLimit.MaxRequests, cfg.AuthRateLimit.WindowSec)

	router := api.NewRouter(
		api.Dependencies{DB: pool, Redis: redisClient, NATS: natsClient},
		api.RouterConfig{
			CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
			AuthRateLimiter:    authLimiter.Middleware,
		},
		api.HandlerSet{
			Register: authHandler.Register,
			Login:    authHandler.Login,
			Refresh:  authHandler.Refresh,
			Logout:   authHandler.Logout,

			GetProfile:     profileHandler.Get,
			UpdateProfile:  profileHandler.Update,
			SetEntitlement: profileHandler.SetEntitlement,

			GetQuota:   quotaHandler.Get,
			CompleteAI: aiHandler.Complete,

			GetChatHistory:   historyHandler.GetChat,
			ResetChatHistory: historyHandler.ResetChat,
			ListAnalyses:     historyHandler.ListAnalyses,

			GetDay:             trackerHandler.Day,
			AddMeal:            trackerHandler.AddMeal,
			DeleteMeal:         trackerHandler.DeleteMeal,
			AddWorkoutEntry:    trackerHandler.AddWorkoutEntry,
			DeleteWorkoutEntry: trackerHandler.DeleteWorkoutEntry,
			ListWorkouts:       trackerHandler.ListWorkouts,
			CreateWorkout:      trackerHandler.CreateWorkout,
			SampleWorkout:      trackerHandler.SampleWorkout,
			SetWorkoutDone:     trackerHandler.SetCompleted,
			DeleteWorkout:      trackerHandler.DeleteWorkout,

			ListAuditLogs: audit.NewHandler(auditRepo).List,

			AuthMiddleware:  auth.Middleware(authSvc),
			AdminMiddleware: profiles.RequireAdmin(profileSvc),
		},
	)

	// Start server
	srv := server.New(cfg.Server, router)
	srv.OnShutdown(cancel)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newCompleter picks the remote completion provider. A provider that fails to
// initialise is logged and left unconfigured; the gateway then answers every
// call with a configuration error instead of refusing to boot.
func newCompleter(ctx context.Context, cfg config.AIConfig) (gateway.Completer, func()) {
	switch cfg.Provider {
	case "vertex":
		client, err := vertex.NewClient(ctx, cfg)
		if err != nil {
			slog.Error("creating vertex client", "error", err)
			return nil, func() {}
		}
		slog.Info("ai provider ready", "provider", client.Name(), "model", cfg.VertexModel)
		return client, func() {
			if err := client.Close(); err != nil {
				slog.Warn("closing vertex client", "error", err)
			}
		}
	default:
		client := openai.NewClient(cfg.OpenAIAPIKey, cfg.Model, cfg.OpenAIBaseURL)
		if !client.Configured() {
			slog.Warn("OPENAI_API_KEY not set, AI requests will fail until it is configured")
		}
		return client, func() {}
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
