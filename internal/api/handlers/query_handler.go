package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docassist/backend/internal/citation"
	"github.com/docassist/backend/internal/metrics"
	"github.com/docassist/backend/internal/query"
	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/internal/storage/sqlite"
	"github.com/docassist/backend/pkg/errs"
	"github.com/docassist/backend/pkg/logger"
)

// chatHistoryLimit caps how many prior turns feed the query composer.
const chatHistoryLimit = 10

type QueryHandler struct {
	engine   *query.Engine
	resolver *citation.Resolver
	db       *sqlite.Client
}

func NewQueryHandler(engine *query.Engine, resolver *citation.Resolver, db *sqlite.Client) *QueryHandler {
	return &QueryHandler{
		engine:   engine,
		resolver: resolver,
		db:       db,
	}
}

type queryRequest struct {
	Query        string `json:"query"`
	CollectionID int64  `json:"collection_id"`
	UserID       int64  `json:"user_id"`
}

// HandleSimpleQuery answers a one-shot question without conversational
// memory.
func (h *QueryHandler) HandleSimpleQuery(c *fiber.Ctx) error {
	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	if _, err := h.db.GetCollection(c.Context(), req.CollectionID); err != nil {
		return errorResponse(c, err)
	}

	start := time.Now()
	result, err := h.engine.Answer(c.Context(), req.Query, req.CollectionID, query.NoContext())
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to process query", zap.Error(err))
		return errorResponse(c, err)
	}
	metrics.QueryTotal.WithLabelValues("ok").Inc()
	metrics.QueryDuration.WithLabelValues("simple").Observe(time.Since(start).Seconds())

	citations, err := h.resolver.Resolve(c.Context(), result.Fragments)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"query":    req.Query,
		"response": result.Answer,
		"sources":  citations,
	})
}

// HandleChatQuery answers with conversational memory: the last turns for
// this (collection, user) are folded into the retrieval query and the new
// turn is recorded afterwards.
func (h *QueryHandler) HandleChatQuery(c *fiber.Ctx) error {
	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	if _, err := h.db.GetCollection(c.Context(), req.CollectionID); err != nil {
		return errorResponse(c, err)
	}

	history, err := h.db.GetChatHistory(c.Context(), req.CollectionID, req.UserID, chatHistoryLimit)
	if err != nil {
		return errorResponse(c, err)
	}

	start := time.Now()
	result, err := h.engine.Answer(c.Context(), req.Query, req.CollectionID, query.HistoryContext(history))
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to process chat query", zap.Error(err))
		return errorResponse(c, err)
	}
	metrics.QueryTotal.WithLabelValues("ok").Inc()
	metrics.QueryDuration.WithLabelValues("chat").Observe(time.Since(start).Seconds())

	citations, err := h.resolver.Resolve(c.Context(), result.Fragments)
	if err != nil {
		return errorResponse(c, err)
	}

	turn := &models.ChatTurn{
		UserID:       req.UserID,
		CollectionID: req.CollectionID,
		Query:        req.Query,
		Response:     result.Answer,
		CreatedAt:    time.Now(),
	}
	if err := h.db.InsertChatTurn(c.Context(), turn); err != nil {
		logger.Warn("Failed to record chat turn", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"query":    req.Query,
		"response": result.Answer,
		"sources":  citations,
	})
}

func (h *QueryHandler) GetChatHistory(c *fiber.Ctx) error {
	collectionID, err := c.ParamsInt("collection_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid collection id",
		})
	}

	userID := int64(c.QueryInt("user_id"))

	if _, err := h.db.GetCollection(c.Context(), int64(collectionID)); err != nil {
		return errorResponse(c, err)
	}

	history, err := h.db.GetChatHistory(c.Context(), int64(collectionID), userID, 100)
	if err != nil {
		return errorResponse(c, err)
	}

	out := make([]fiber.Map, 0, len(history))
	for _, turn := range history {
		out = append(out, fiber.Map{
			"query":      turn.Query,
			"response":   turn.Response,
			"created_at": turn.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{"history": out})
}

func errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	case errors.Is(err, errs.ErrExternalService):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Upstream service unavailable",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}
