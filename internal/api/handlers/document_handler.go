package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docsage/backend/internal/storage/models"
	"github.com/docsage/backend/pkg/logger"
)

type documentReader interface {
	Find(ctx context.Context, f models.DocumentFilter) ([]models.DocumentRecord, error)
}

type DocumentHandler struct {
	store documentReader
}

func NewDocumentHandler(store documentReader) *DocumentHandler {
	return &DocumentHandler{
		store: store,
	}
}

// ListDocuments returns the user's active documents, newest first.
func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	docs, err := h.store.Find(c.Context(), models.DocumentFilter{OwnerID: userID})
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	return c.JSON(fiber.Map{
		"documents": docs,
		"count":     len(docs),
	})
}
