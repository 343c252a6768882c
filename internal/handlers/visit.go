package handlers

import (
	"context"
	"errors"
	"log/slog"

	"beacon/internal/models"
	"beacon/internal/services"

	"github.com/gofiber/fiber/v2"
)

// VisitGetter fetches one record by identifier.
type VisitGetter interface {
	GetByID(ctx context.Context, id string) (*models.Visit, error)
}

// VisitHandler handles single-record lookups
type VisitHandler struct {
	visits VisitGetter
}

// NewVisitHandler creates a new visit handler
func NewVisitHandler(visits VisitGetter) *VisitHandler {
	return &VisitHandler{visits: visits}
}

// Get serves GET /visit/:id, returning the redacted record.
func (h *VisitHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	visit, err := h.visits.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Visit not found",
			})
		}
		slog.Error("visit lookup failed", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load visit",
		})
	}

	return c.JSON(fiber.Map{"visit": visit.Redacted()})
}
