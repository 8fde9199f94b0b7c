package config

import (
	"strings"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "roadpoints.db" {
		t.Errorf("DBPath = %q, want roadpoints.db", cfg.DBPath)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.AccrualSchedule != "@daily" || cfg.ExpirationSchedule != "@daily" {
		t.Errorf("schedules = %q/%q, want @daily", cfg.AccrualSchedule, cfg.ExpirationSchedule)
	}
	if cfg.Ebay.Environment != "production" {
		t.Errorf("Ebay.Environment = %q, want production", cfg.Ebay.Environment)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Errorf("CORSOrigins = %v, want empty", cfg.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"ROADPOINTS_PORT":                "9000",
		"ROADPOINTS_TOKEN_TTL":           "2h",
		"ROADPOINTS_CORS_ORIGINS":        "https://a.test, https://b.test,,",
		"ROADPOINTS_EXPIRATION_SCHEDULE": "off",
		"ROADPOINTS_LOG_FORMAT":          "json",
		"EBAY_ENV":                       "sandbox",
		"EBAY_CLIENT_ID":                 "id",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Errorf("TokenTTL = %v, want 2h", cfg.TokenTTL)
	}
	if got := strings.Join(cfg.CORSOrigins, "|"); got != "https://a.test|https://b.test" {
		t.Errorf("CORSOrigins = %q", got)
	}
	if cfg.ExpirationSchedule != "" {
		t.Errorf("ExpirationSchedule = %q, want disabled", cfg.ExpirationSchedule)
	}
	if cfg.Ebay.Environment != "sandbox" || cfg.Ebay.ClientID != "id" {
		t.Errorf("Ebay = %+v", cfg.Ebay)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad ttl":      {"ROADPOINTS_TOKEN_TTL": "soon"},
		"negative ttl": {"ROADPOINTS_TOKEN_TTL": "-1h"},
		"bad ebay env": {"EBAY_ENV": "staging"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFrom(env(vars)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidateServe(t *testing.T) {
	cfg, _ := LoadFrom(env(nil))
	if err := cfg.ValidateServe(); err == nil {
		t.Error("expected error without secret")
	}
	cfg.JWTSecret = strings.Repeat("s", 32)
	if err := cfg.ValidateServe(); err != nil {
		t.Errorf("validate: %v", err)
	}
}
