package handlers

import (
	"context"
	"errors"
	"log/slog"

	"beacon/internal/models"
	"beacon/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ConversationService attaches a transcript to an existing record.
type ConversationService interface {
	SaveMessages(ctx context.Context, req models.SaveMessagesRequest) (int, error)
}

// ConversationHandler handles the /save_messages endpoint
type ConversationHandler struct {
	visits ConversationService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(visits ConversationService) *ConversationHandler {
	return &ConversationHandler{visits: visits}
}

// SaveMessages replaces the conversation payload on the record named by
// session_id. The identifier is the capability; there is no other auth.
func (h *ConversationHandler) SaveMessages(c *fiber.Ctx) error {
	var req models.SaveMessagesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SessionID == "" || len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id and messages are required",
		})
	}

	count, err := h.visits.SaveMessages(c.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Session not found",
			})
		}
		slog.Error("save messages failed", "session_id", req.SessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save messages",
		})
	}

	return c.JSON(fiber.Map{
		"saved":         true,
		"message_count": count,
	})
}
