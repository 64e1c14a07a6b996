package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docsage/backend/internal/query"
	"github.com/docsage/backend/pkg/logger"
)

type WebSocketHandler struct {
	queryEngine *query.Engine
}

func NewWebSocketHandler(queryEngine *query.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		queryEngine: queryEngine,
	}
}

type wsInbound struct {
	Type               string `json:"type"`
	Content            string `json:"content"`
	UserID             string `json:"user_id"`
	ConversationID     string `json:"conversation_id"`
	AttachedDocumentID string `json:"attached_document_id"`
}

// HandleConnection serves one client connection. Queries run sequentially
// on the read loop, so a "cancel" frame is only read between queries; an
// in-flight query stops when a chunk write fails or the socket closes.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsInbound
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			return
		}

		switch msg.Type {
		case "query":
			if msg.Content == "" || msg.UserID == "" {
				h.sendError(c, "query and user_id are required")
				continue
			}
			h.streamResponse(c, msg)
		case "cancel":
			// Nothing in flight: queries are handled synchronously per
			// connection, so a cancel arriving here is a no-op.
		default:
			// Ignore unknown message types.
		}
	}
}

// streamResponse forwards chunks to the client as the engine produces
// them. A failed write cancels the engine's context.
func (h *WebSocketHandler) streamResponse(c *websocket.Conn, msg wsInbound) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Processing WebSocket query",
		zap.String("user_id", msg.UserID),
		zap.String("conversation_id", msg.ConversationID),
	)

	sink := func(chunk query.StreamChunk) {
		if err := h.sendChunk(c, chunk.TextDelta); err != nil {
			logger.Warn("Failed to send chunk, canceling query", zap.Error(err))
			cancel()
		}
	}

	result, err := h.queryEngine.ProcessQuery(ctx, query.Request{
		Query:              msg.Content,
		UserID:             msg.UserID,
		ConversationID:     msg.ConversationID,
		AttachedDocumentID: msg.AttachedDocumentID,
	}, sink)
	if err != nil {
		logger.Error("Failed to process WebSocket query", zap.Error(err))
		h.sendError(c, "Failed to process query")
		return
	}

	if err := h.sendComplete(c, result); err != nil {
		logger.Warn("Failed to send completion frame", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    "chunk",
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, result *query.Result) error {
	return c.WriteJSON(map[string]interface{}{
		"type":       "complete",
		"message_id": result.ID,
		"intent":     result.Intent.String(),
		"sources":    result.Sources,
		"latency_ms": result.LatencyMS,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	if err := c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}); err != nil {
		logger.Warn("Failed to send error frame", zap.Error(err))
	}
}
