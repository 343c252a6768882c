package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "MONGODB_URI", "REDIS_URL", "ENVIRONMENT", "ADMIN_KEY",
		"ALLOWED_ORIGINS", "GEO_LOOKUP_ENABLED", "GEO_LOOKUP_URL",
		"TRACK_RATE_LIMIT", "TRACK_RATE_WINDOW_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "3001" {
		t.Errorf("Port = %q, want 3001", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.AdminKey != "" {
		t.Errorf("AdminKey = %q, want empty", cfg.AdminKey)
	}
	if cfg.AllowedOrigins != "*" {
		t.Errorf("AllowedOrigins = %q, want *", cfg.AllowedOrigins)
	}
	if !cfg.GeoLookupEnabled {
		t.Error("GeoLookupEnabled = false, want true")
	}
	if cfg.GeoLookupURL != "http://ip-api.com/json" {
		t.Errorf("GeoLookupURL = %q", cfg.GeoLookupURL)
	}
	if cfg.TrackRateMax != 60 {
		t.Errorf("TrackRateMax = %d, want 60", cfg.TrackRateMax)
	}
	if cfg.TrackRateWindow != time.Minute {
		t.Errorf("TrackRateWindow = %s, want 1m", cfg.TrackRateWindow)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/beacon")
	t.Setenv("ADMIN_KEY", "s3cret")
	t.Setenv("GEO_LOOKUP_ENABLED", "false")
	t.Setenv("TRACK_RATE_LIMIT", "120")
	t.Setenv("TRACK_RATE_WINDOW_SECONDS", "30")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.MongoURI != "mongodb://localhost:27017/beacon" {
		t.Errorf("MongoURI = %q", cfg.MongoURI)
	}
	if cfg.AdminKey != "s3cret" {
		t.Errorf("AdminKey = %q", cfg.AdminKey)
	}
	if cfg.GeoLookupEnabled {
		t.Error("GeoLookupEnabled = true, want false")
	}
	if cfg.TrackRateMax != 120 {
		t.Errorf("TrackRateMax = %d, want 120", cfg.TrackRateMax)
	}
	if cfg.TrackRateWindow != 30*time.Second {
		t.Errorf("TrackRateWindow = %s, want 30s", cfg.TrackRateWindow)
	}
}

func TestGetBoolEnvBadValueFallsBack(t *testing.T) {
	t.Setenv("GEO_LOOKUP_ENABLED", "definitely")

	if !getBoolEnv("GEO_LOOKUP_ENABLED", true) {
		t.Error("Bad boolean should fall back to the default")
	}
}
