package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays environment variables onto config. A .env file in the
// working directory is loaded first when present; variables already set in
// the process environment take precedence over it.
func parseEnv(config *Config) error {
	// missing .env is normal in production
	_ = godotenv.Load()

	setString(&config.Addr, "PORT", func(v string) string { return ":" + v })
	setString(&config.DatabaseURL, "DATABASE_URL", nil)
	setString(&config.CORSOrigin, "CORS_ORIGIN", nil)
	setString(&config.JWTSecret, "JWT_SECRET", nil)
	setString(&config.AdminToken, "X_ADMIN_TOKEN", nil)
	setString(&config.DetectorAPIKey, "ANTHROPIC_API_KEY", nil)
	setString(&config.DetectorURL, "DETECTOR_URL", nil)
	setString(&config.DetectorModel, "DETECTOR_MODEL", nil)

	if v := os.Getenv("DETECTOR_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DETECTOR_TIMEOUT: %w", err)
		}
		config.DetectorTimeout = d
	}
	if v := os.Getenv("DETECTOR_MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DETECTOR_MIN_CONFIDENCE: %w", err)
		}
		config.DetectorMinConfidence = f
	}
	if v := os.Getenv("COMMENT_RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("COMMENT_RATE_LIMIT_RPS: %w", err)
		}
		config.CommentRateLimitRPS = f
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_COMMENT_LENGTH", &config.MaxCommentLength},
		{"AUDIT_QUEUE_SIZE", &config.AuditQueueSize},
		{"COMMENT_RATE_LIMIT_BURST", &config.CommentRateLimitBurst},
	}
	for _, it := range ints {
		v := os.Getenv(it.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", it.key, err)
		}
		*it.dst = n
	}

	return nil
}

func setString(dst *string, key string, transform func(string) string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if transform != nil {
		v = transform(v)
	}
	*dst = v
}
