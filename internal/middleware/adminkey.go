package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

// AdminKeyMiddleware gates the read/export/admin surface behind a single
// shared secret, supplied as the x-admin-key header or the key query
// parameter. A mismatch short-circuits before any query executes. There is no
// per-operation scoping, expiry or rotation.
func AdminKeyMiddleware(adminKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		supplied := c.Get("x-admin-key")
		if supplied == "" {
			supplied = c.Query("key")
		}

		// An unset secret closes the surface entirely rather than opening it.
		if adminKey == "" || supplied != adminKey {
			log.Printf("🚫 [ADMIN] Unauthorized access attempt on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		return c.Next()
	}
}
