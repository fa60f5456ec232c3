// Package config provides environment-driven configuration, adapted from
// the teacher's accumulating ValidateEnv pattern: every violation is
// collected and returned together rather than failing on the first.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration.
type Config struct {
	// Required
	Port string

	// Optional, defaulted
	GoEnv                   string
	LogLevel                string
	DevelopmentMode         bool
	AllowedOrigins          string
	ReconnectTimeoutSeconds int
	RoomCleanupGraceSeconds int
	CookieName              string

	// Optional, disables stats persistence when empty
	StatsDSN string
}

// ValidateEnv validates environment variables and returns a Config,
// accumulating every violation instead of failing on the first.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = getEnvOrDefault("PORT", "8080")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	cfg.CookieName = getEnvOrDefault("COOKIE_NAME", "username")
	cfg.StatsDSN = os.Getenv("STATS_DSN")

	cfg.ReconnectTimeoutSeconds = getEnvIntOrDefault("RECONNECT_TIMEOUT_SECONDS", 180, &errs)
	cfg.RoomCleanupGraceSeconds = getEnvIntOrDefault("ROOM_CLEANUP_GRACE_SECONDS", 5, &errs)

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int, errs *[]string) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an integer (got %q)", key, raw))
		return defaultValue
	}
	return v
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"reconnect_timeout_seconds", cfg.ReconnectTimeoutSeconds,
		"stats_enabled", cfg.StatsDSN != "",
	)
}
