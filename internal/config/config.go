package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	MongoURI    string
	RedisURL    string
	Environment string

	// AdminKey is the shared secret gating stats, export and visit lookup.
	AdminKey string

	// CORS
	AllowedOrigins string

	// Geolocation enrichment (best-effort, never blocks ingestion)
	GeoLookupEnabled bool
	GeoLookupURL     string

	// Track beacon rate limiting (per originating IP)
	TrackRateMax    int
	TrackRateWindow time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3001"),
		MongoURI:    getEnv("MONGODB_URI", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		Environment: getEnv("ENVIRONMENT", "development"),

		AdminKey: getEnv("ADMIN_KEY", ""),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),

		GeoLookupEnabled: getBoolEnv("GEO_LOOKUP_ENABLED", true),
		GeoLookupURL:     getEnv("GEO_LOOKUP_URL", "http://ip-api.com/json"),

		TrackRateMax:    getIntEnv("TRACK_RATE_LIMIT", 60),
		TrackRateWindow: time.Duration(getIntEnv("TRACK_RATE_WINDOW_SECONDS", 60)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
