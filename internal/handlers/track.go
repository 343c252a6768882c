package handlers

import (
	"context"

	"beacon/internal/logging"
	"beacon/internal/models"

	"github.com/gofiber/fiber/v2"
)

// TrackService ingests one beacon. Implemented by services.VisitService;
// tests substitute a double.
type TrackService interface {
	Track(ctx context.Context, req models.TrackRequest, ip, userAgent string) (*models.TrackResponse, error)
}

// TrackHandler handles the public /track beacon endpoint
type TrackHandler struct {
	visits TrackService
}

// NewTrackHandler creates a new track handler
func NewTrackHandler(visits TrackService) *TrackHandler {
	return &TrackHandler{visits: visits}
}

// Handle ingests a pageview or event beacon. Duplicate same-day visits are
// resolved inside the service; the only failure surfaced here is storage.
func (h *TrackHandler) Handle(c *fiber.Ctx) error {
	var req models.TrackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.visits.Track(c.Context(), req, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		logging.WithRequest(c.Method(), c.Path(), models.RedactIP(c.IP())).
			Error("track failed", "site", req.Site, "event_type", req.EventType, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record visit",
		})
	}

	return c.JSON(resp)
}
