package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server        ServerConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Encryption    EncryptionConfig
	NATS          NATSConfig
	CORS          CORSConfig
	AuthRateLimit AuthRateLimitConfig
	AI            AIConfig
	Quota         QuotaConfig
	History       HistoryConfig
	Log           LogConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	WriteTimeout time.Duration
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
	AutoMigrate    bool
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type EncryptionConfig struct {
	Key string
}

// NATSConfig is optional; an empty URL disables event publishing.
type NATSConfig struct {
	URL string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type AuthRateLimitConfig struct {
	MaxRequests int
	WindowSec   int
}

// AIConfig configures the remote completion provider used by the gateway.
type AIConfig struct {
	Provider string // "openai" or "vertex"

	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string

	VertexProject         string
	VertexLocation        string
	VertexCredentialsFile string
	VertexModel           string

	Timeout        time.Duration
	RatePerSecond  float64
	RateBurst      int
	ChatMaxTokens  int
	ChatTemp       float64
	PhotoMaxTokens int
	PhotoTemp      float64
}

type QuotaConfig struct {
	Timezone       string
	PhotoPolicy    string // "daily" or "credits"
	MaxPerMinute   int
	DefaultCredits int
	FreeChatDaily  int
	FreePhotoDaily int
}

type HistoryConfig struct {
	MaxMessages int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
			AutoMigrate:    k.Bool("db.auto.migrate"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		Encryption: EncryptionConfig{
			Key: k.String("encryption.key"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(k.String("cors.allowed.origins")),
		},
		AuthRateLimit: AuthRateLimitConfig{
			MaxRequests: k.Int("auth.rate.limit.max"),
			WindowSec:   k.Int("auth.rate.limit.window"),
		},
		AI: AIConfig{
			Provider:              k.String("ai.provider"),
			OpenAIAPIKey:          k.String("openai.api.key"),
			OpenAIBaseURL:         k.String("openai.base.url"),
			Model:                 k.String("openai.model"),
			VertexProject:         k.String("vertex.project"),
			VertexLocation:        k.String("vertex.location"),
			VertexCredentialsFile: k.String("vertex.credentials.file"),
			VertexModel:           k.String("vertex.model"),
			RatePerSecond:         k.Float64("ai.rate.per.second"),
			RateBurst:             k.Int("ai.rate.burst"),
			ChatMaxTokens:         k.Int("ai.chat.max.tokens"),
			ChatTemp:              k.Float64("ai.chat.temperature"),
			PhotoMaxTokens:        k.Int("ai.photo.max.tokens"),
			PhotoTemp:             k.Float64("ai.photo.temperature"),
		},
		Quota: QuotaConfig{
			Timezone:       k.String("quota.timezone"),
			PhotoPolicy:    k.String("quota.photo.policy"),
			MaxPerMinute:   k.Int("quota.max.per.minute"),
			DefaultCredits: intOr(k, "quota.default.credits", 10),
			FreeChatDaily:  intOr(k, "quota.free.chat.daily", 10),
			FreePhotoDaily: intOr(k, "quota.free.photo.daily", 1),
		},
		History: HistoryConfig{
			MaxMessages: k.Int("history.max.messages"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	applyDefaults(cfg)

	// Parse durations
	accessExpStr := k.String("jwt.access.expiry")
	if accessExpStr == "" {
		accessExpStr = "15m"
	}
	cfg.JWT.AccessExpiry, err = time.ParseDuration(accessExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt access expiry: %w", err)
	}

	refreshExpStr := k.String("jwt.refresh.expiry")
	if refreshExpStr == "" {
		refreshExpStr = "168h"
	}
	cfg.JWT.RefreshExpiry, err = time.ParseDuration(refreshExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt refresh expiry: %w", err)
	}

	aiTimeoutStr := k.String("ai.timeout")
	if aiTimeoutStr == "" {
		aiTimeoutStr = "60s"
	}
	cfg.AI.Timeout, err = time.ParseDuration(aiTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing ai timeout: %w", err)
	}

	// The server must outlive a full remote round trip.
	cfg.Server.WriteTimeout = cfg.AI.Timeout + 15*time.Second

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "treinoia"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "treinoia"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.AuthRateLimit.MaxRequests == 0 {
		cfg.AuthRateLimit.MaxRequests = 10
	}
	if cfg.AuthRateLimit.WindowSec == 0 {
		cfg.AuthRateLimit.WindowSec = 60
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o"
	}
	if cfg.AI.VertexModel == "" {
		cfg.AI.VertexModel = "gemini-1.5-pro"
	}
	if cfg.AI.VertexLocation == "" {
		cfg.AI.VertexLocation = "europe-west1"
	}
	if cfg.AI.RatePerSecond == 0 {
		cfg.AI.RatePerSecond = 5
	}
	if cfg.AI.RateBurst == 0 {
		cfg.AI.RateBurst = 10
	}
	if cfg.AI.ChatMaxTokens == 0 {
		cfg.AI.ChatMaxTokens = 1500
	}
	if cfg.AI.ChatTemp == 0 {
		cfg.AI.ChatTemp = 0.8
	}
	if cfg.AI.PhotoMaxTokens == 0 {
		cfg.AI.PhotoMaxTokens = 1200
	}
	if cfg.AI.PhotoTemp == 0 {
		cfg.AI.PhotoTemp = 0.7
	}
	if cfg.Quota.Timezone == "" {
		cfg.Quota.Timezone = "Local"
	}
	if cfg.Quota.PhotoPolicy == "" {
		cfg.Quota.PhotoPolicy = "daily"
	}
	if cfg.Quota.MaxPerMinute == 0 {
		cfg.Quota.MaxPerMinute = 20
	}
	if cfg.History.MaxMessages == 0 {
		cfg.History.MaxMessages = 100
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// intOr reads an int key where zero is a meaningful value, falling back to
// def only when the key is absent.
func intOr(k *koanf.Koanf, key string, def int) int {
	if !k.Exists(key) {
		return def
	}
	return k.Int(key)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
