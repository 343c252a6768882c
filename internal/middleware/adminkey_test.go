package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newGatedApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/stats", AdminKeyMiddleware(secret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestAdminKeyMissing(t *testing.T) {
	app := newGatedApp("s3cret")

	req := httptest.NewRequest("GET", "/stats", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminKeyWrong(t *testing.T) {
	app := newGatedApp("s3cret")

	req := httptest.NewRequest("GET", "/stats", nil)
	req.Header.Set("x-admin-key", "wrong")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminKeyHeader(t *testing.T) {
	app := newGatedApp("s3cret")

	req := httptest.NewRequest("GET", "/stats", nil)
	req.Header.Set("x-admin-key", "s3cret")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestAdminKeyQueryParam(t *testing.T) {
	app := newGatedApp("s3cret")

	req := httptest.NewRequest("GET", "/stats?key=s3cret", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestAdminKeyUnsetSecretRejectsEverything(t *testing.T) {
	app := newGatedApp("")

	req := httptest.NewRequest("GET", "/stats", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 with unset secret, got %d", resp.StatusCode)
	}
}
