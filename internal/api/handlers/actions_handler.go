package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docsage/backend/internal/files"
	"github.com/docsage/backend/pkg/logger"
)

type ActionsHandler struct {
	executor *files.Executor
}

func NewActionsHandler(executor *files.Executor) *ActionsHandler {
	return &ActionsHandler{
		executor: executor,
	}
}

// ExecuteAction runs one natural-language file-management command directly,
// bypassing the query pipeline.
func (h *ActionsHandler) ExecuteAction(c *fiber.Ctx) error {
	var req struct {
		Command string `json:"command"`
		UserID  string `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Command == "" || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "command and user_id are required",
		})
	}

	result, err := h.executor.Execute(c.Context(), req.Command, req.UserID)
	if err != nil {
		logger.Error("File action failed", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"success": result.Success,
		"message": result.Message,
	})
}
