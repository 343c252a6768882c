package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// StatsProvider serves the aggregated views. Implemented by
// services.StatsService.
type StatsProvider interface {
	Global(ctx context.Context) (map[string]interface{}, error)
	Site(ctx context.Context, site string) (map[string]interface{}, error)
	Conversations(ctx context.Context) (map[string]interface{}, error)
}

// StatsHandler handles the admin-gated aggregate stats endpoints
type StatsHandler struct {
	stats StatsProvider
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Global serves GET /stats
func (h *StatsHandler) Global(c *fiber.Ctx) error {
	result, err := h.stats.Global(c.Context())
	if err != nil {
		slog.Error("global stats failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load stats",
		})
	}
	return c.JSON(result)
}

// Site serves GET /stats/:site
func (h *StatsHandler) Site(c *fiber.Ctx) error {
	site := c.Params("site")
	result, err := h.stats.Site(c.Context(), site)
	if err != nil {
		slog.Error("site stats failed", "site", site, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load stats",
		})
	}
	return c.JSON(result)
}

// Conversations serves GET /stats/conversations. The route must be registered
// before /stats/:site or "conversations" gets captured as a site name.
func (h *StatsHandler) Conversations(c *fiber.Ctx) error {
	result, err := h.stats.Conversations(c.Context())
	if err != nil {
		slog.Error("conversation stats failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load stats",
		})
	}
	return c.JSON(result)
}
