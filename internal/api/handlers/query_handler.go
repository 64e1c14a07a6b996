package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docsage/backend/internal/query"
	"github.com/docsage/backend/internal/storage/models"
	"github.com/docsage/backend/pkg/logger"
)

// historyReader serves the query-history endpoint.
type historyReader interface {
	GetQueryHistory(ctx context.Context, userID string, limit int) ([]models.QueryRecord, error)
}

type QueryHandler struct {
	queryEngine *query.Engine
	history     historyReader
}

func NewQueryHandler(queryEngine *query.Engine, history historyReader) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
		history:     history,
	}
}

// HandleQuery answers a query over plain HTTP: chunks are buffered and the
// full response returned in one JSON body.
func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query              string `json:"query"`
		UserID             string `json:"user_id"`
		ConversationID     string `json:"conversation_id"`
		AttachedDocumentID string `json:"attached_document_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	result, err := h.queryEngine.ProcessQuery(c.Context(), query.Request{
		Query:              req.Query,
		UserID:             req.UserID,
		ConversationID:     req.ConversationID,
		AttachedDocumentID: req.AttachedDocumentID,
	}, func(query.StreamChunk) {})
	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(fiber.Map{
		"id":         result.ID,
		"query":      req.Query,
		"intent":     result.Intent.String(),
		"response":   result.Response,
		"sources":    result.Sources,
		"latency_ms": result.LatencyMS,
	})
}

// GetQueryHistory returns the user's most recent queries, newest first.
func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	records, err := h.history.GetQueryHistory(c.Context(), userID, limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}
