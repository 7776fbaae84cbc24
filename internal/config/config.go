package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"notehub/internal/notes"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string
	DBPath    string
	LogLevel  slog.Level
	LogFormat string

	JWTSecret        string
	SessionTTL       time.Duration
	FederationSecret string
	AdminInviteCode  string

	RedisURL     string
	RedisChannel string

	CatalogPath       string
	DefaultUniversity string
	MergePrecedence   notes.Precedence
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		APIPort:           getEnv("API_PORT", "9000"),
		DBPath:            getEnv("DB_PATH", "./data/notehub.db"),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "text")),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		FederationSecret:  getEnv("FEDERATION_SECRET", ""),
		AdminInviteCode:   getEnv("ADMIN_INVITE_CODE", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		RedisChannel:      getEnv("REDIS_CHANNEL", "notehub:changes"),
		CatalogPath:       getEnv("CATALOG_PATH", ""),
		DefaultUniversity: getEnv("DEFAULT_UNIVERSITY", "BAUST"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	ttl, err := time.ParseDuration(getEnv("SESSION_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL must be a valid duration: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be greater than 0")
	}
	cfg.SessionTTL = ttl

	precedence, err := notes.ParsePrecedence(getEnv("MERGE_PRECEDENCE", ""))
	if err != nil {
		return nil, fmt.Errorf("MERGE_PRECEDENCE: %w", err)
	}
	cfg.MergePrecedence = precedence

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
