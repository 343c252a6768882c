package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestTrackRateLimiterInMemory(t *testing.T) {
	config := &RateLimitConfig{
		TrackMax:        2,
		TrackExpiration: 1 * time.Minute,
	}

	app := fiber.New()
	app.Post("/track", TrackRateLimiter(config, nil), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"tracked": true})
	})

	for i := 1; i <= 2; i++ {
		req := httptest.NewRequest("POST", "/track", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("Request %d: expected 200, got %d", i, resp.StatusCode)
		}
	}

	req := httptest.NewRequest("POST", "/track", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request over limit failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("Expected 429 over the limit, got %d", resp.StatusCode)
	}
}

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	t.Setenv("TRACK_RATE_LIMIT", "")
	t.Setenv("TRACK_RATE_WINDOW_SECONDS", "")
	t.Setenv("ENVIRONMENT", "")

	config := LoadRateLimitConfig()
	if config.TrackMax != 60 {
		t.Errorf("Expected default max 60, got %d", config.TrackMax)
	}
	if config.TrackExpiration != time.Minute {
		t.Errorf("Expected default window 1m, got %s", config.TrackExpiration)
	}
}

func TestLoadRateLimitConfigOverrides(t *testing.T) {
	t.Setenv("TRACK_RATE_LIMIT", "5")
	t.Setenv("TRACK_RATE_WINDOW_SECONDS", "30")
	t.Setenv("ENVIRONMENT", "")

	config := LoadRateLimitConfig()
	if config.TrackMax != 5 {
		t.Errorf("Expected max 5, got %d", config.TrackMax)
	}
	if config.TrackExpiration != 30*time.Second {
		t.Errorf("Expected window 30s, got %s", config.TrackExpiration)
	}
}
