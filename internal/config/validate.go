package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// Encryption key: must be exactly 64 hex chars (32 bytes)
	if c.Encryption.Key == "" {
		errs = append(errs, "ENCRYPTION_KEY is required")
	} else if len(c.Encryption.Key) != 64 {
		errs = append(errs, "ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes)")
	} else if _, err := hex.DecodeString(c.Encryption.Key); err != nil {
		errs = append(errs, "ENCRYPTION_KEY must be valid hex")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// AI provider
	switch c.AI.Provider {
	case "openai":
		// A missing key is reported per call, so the process still starts.
		if c.AI.OpenAIAPIKey == "" {
			slog.Warn("OPENAI_API_KEY is empty, AI requests will fail with a configuration error")
		}
	case "vertex":
		if c.AI.VertexProject == "" {
			errs = append(errs, "VERTEX_PROJECT is required when AI_PROVIDER=vertex")
		}
	default:
		errs = append(errs, fmt.Sprintf("AI_PROVIDER must be openai or vertex, got %q", c.AI.Provider))
	}
	if c.AI.Timeout <= 0 {
		errs = append(errs, "AI_TIMEOUT must be positive")
	}

	// Quota
	if c.Quota.PhotoPolicy != "daily" && c.Quota.PhotoPolicy != "credits" {
		errs = append(errs, fmt.Sprintf("QUOTA_PHOTO_POLICY must be daily or credits, got %q", c.Quota.PhotoPolicy))
	}
	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("QUOTA_TIMEZONE is not a known location: %q", c.Quota.Timezone))
	}
	if c.Quota.DefaultCredits < 0 {
		errs = append(errs, "QUOTA_DEFAULT_CREDITS must not be negative")
	}
	if c.Quota.FreeChatDaily < 0 || c.Quota.FreePhotoDaily < 0 {
		errs = append(errs, "QUOTA_FREE_CHAT_DAILY and QUOTA_FREE_PHOTO_DAILY must not be negative")
	}

	if c.NATS.URL == "" {
		slog.Warn("NATS_URL is empty, usage and audit events are not published")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

// Location resolves the quota timezone. Validate must have passed.
func (c QuotaConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
