// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dukerupert/roadpoints/internal/catalog"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	BaseURL   string

	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string

	AccrualSchedule    string
	ExpirationSchedule string
	CleanupSchedule    string

	Ebay catalog.Config

	PostmarkToken string
	FromEmail     string
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads settings through getenv, applying defaults for unset values.
func LoadFrom(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:      get("ROADPOINTS_PORT", "8080"),
		DBPath:    get("ROADPOINTS_DB_PATH", "roadpoints.db"),
		LogLevel:  get("ROADPOINTS_LOG_LEVEL", "info"),
		LogFormat: get("ROADPOINTS_LOG_FORMAT", "text"),
		BaseURL:   get("ROADPOINTS_BASE_URL", "http://localhost:8080"),

		JWTSecret:   getenv("ROADPOINTS_JWT_SECRET"),
		CORSOrigins: splitList(getenv("ROADPOINTS_CORS_ORIGINS")),

		AccrualSchedule:    get("ROADPOINTS_ACCRUAL_SCHEDULE", "@daily"),
		ExpirationSchedule: get("ROADPOINTS_EXPIRATION_SCHEDULE", "@daily"),
		CleanupSchedule:    get("ROADPOINTS_CLEANUP_SCHEDULE", "@hourly"),

		Ebay: catalog.Config{
			ClientID:     getenv("EBAY_CLIENT_ID"),
			ClientSecret: getenv("EBAY_CLIENT_SECRET"),
			Environment:  get("EBAY_ENV", "production"),
		},

		PostmarkToken: getenv("ROADPOINTS_POSTMARK_TOKEN"),
		FromEmail:     get("ROADPOINTS_FROM_EMAIL", "noreply@roadpoints.local"),
	}

	// "off" disables automatic expiration; admins can still run it by hand.
	if strings.EqualFold(cfg.ExpirationSchedule, "off") {
		cfg.ExpirationSchedule = ""
	}

	ttl, err := time.ParseDuration(get("ROADPOINTS_TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse ROADPOINTS_TOKEN_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, errors.New("ROADPOINTS_TOKEN_TTL must be positive")
	}
	cfg.TokenTTL = ttl

	switch cfg.Ebay.Environment {
	case "production", "sandbox":
	default:
		return nil, fmt.Errorf("EBAY_ENV must be production or sandbox, got %q", cfg.Ebay.Environment)
	}

	return cfg, nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("ROADPOINTS_JWT_SECRET must be at least 32 characters")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
