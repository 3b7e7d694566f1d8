package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docassist/backend/internal/citation"
	"github.com/docassist/backend/internal/query"
	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/internal/storage/sqlite"
	"github.com/docassist/backend/pkg/logger"
)

// WebSocketHandler streams chat answers word by word over one connection.
type WebSocketHandler struct {
	engine   *query.Engine
	resolver *citation.Resolver
	db       *sqlite.Client
}

func NewWebSocketHandler(engine *query.Engine, resolver *citation.Resolver, db *sqlite.Client) *WebSocketHandler {
	return &WebSocketHandler{
		engine:   engine,
		resolver: resolver,
		db:       db,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type         string `json:"type"`
			Query        string `json:"query"`
			CollectionID int64  `json:"collection_id"`
			UserID       int64  `json:"user_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			break
		}

		if msg.Type != "query" || msg.Query == "" {
			continue
		}

		err = h.streamAnswer(c, msg.Query, msg.CollectionID, msg.UserID)
		if err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, rawQuery string, collectionID, userID int64) error {
	ctx := context.Background()

	if _, err := h.db.GetCollection(ctx, collectionID); err != nil {
		return err
	}

	history, err := h.db.GetChatHistory(ctx, collectionID, userID, chatHistoryLimit)
	if err != nil {
		return err
	}

	h.sendChunk(c, "status", "Processing query...")

	result, err := h.engine.Answer(ctx, rawQuery, collectionID, query.HistoryContext(history))
	if err != nil {
		return err
	}

	citations, err := h.resolver.Resolve(ctx, result.Fragments)
	if err != nil {
		return err
	}

	words := strings.Fields(result.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	turn := &models.ChatTurn{
		UserID:       userID,
		CollectionID: collectionID,
		Query:        rawQuery,
		Response:     result.Answer,
		CreatedAt:    time.Now(),
	}
	if err := h.db.InsertChatTurn(ctx, turn); err != nil {
		logger.Warn("Failed to record chat turn", zap.Error(err))
	}

	return c.WriteJSON(map[string]interface{}{
		"type":    "complete",
		"sources": citations,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
