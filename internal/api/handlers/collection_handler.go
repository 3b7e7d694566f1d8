package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docassist/backend/internal/index"
	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/internal/storage/sqlite"
	"github.com/docassist/backend/pkg/logger"
)

type CollectionHandler struct {
	db       *sqlite.Client
	registry *index.Registry
}

func NewCollectionHandler(db *sqlite.Client, registry *index.Registry) *CollectionHandler {
	return &CollectionHandler{
		db:       db,
		registry: registry,
	}
}

func (h *CollectionHandler) CreateCollection(c *fiber.Ctx) error {
	var req struct {
		Name    string `json:"name"`
		OwnerID int64  `json:"owner_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Collection name is required",
		})
	}

	col := &models.Collection{
		Name:      req.Name,
		OwnerID:   req.OwnerID,
		CreatedAt: time.Now(),
	}

	if err := h.db.InsertCollection(c.Context(), col); err != nil {
		logger.Error("Failed to create collection", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"id":      col.ID,
		"message": "Collection created successfully",
	})
}

func (h *CollectionHandler) ListCollections(c *fiber.Ctx) error {
	ownerID := int64(c.QueryInt("owner_id"))

	cols, err := h.db.ListCollections(c.Context(), ownerID)
	if err != nil {
		return errorResponse(c, err)
	}

	out := make([]fiber.Map, 0, len(cols))
	for _, col := range cols {
		out = append(out, fiber.Map{
			"id":         col.ID,
			"name":       col.Name,
			"created_at": col.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{"collections": out})
}

func (h *CollectionHandler) GetCollection(c *fiber.Ctx) error {
	collectionID, err := c.ParamsInt("collection_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid collection id",
		})
	}

	col, err := h.db.GetCollection(c.Context(), int64(collectionID))
	if err != nil {
		return errorResponse(c, err)
	}

	docs, err := h.db.ListDocuments(c.Context(), col.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	docList := make([]fiber.Map, 0, len(docs))
	for _, d := range docs {
		docList = append(docList, fiber.Map{
			"id":        d.ID,
			"file_name": d.FileName,
			"file_type": d.FileType,
		})
	}

	return c.JSON(fiber.Map{
		"id":         col.ID,
		"name":       col.Name,
		"created_at": col.CreatedAt.Unix(),
		"documents":  docList,
	})
}

// DeleteCollection cascades: documents and chat history rows, the cached
// index handle, the backing namespace and the persisted mapping all go.
func (h *CollectionHandler) DeleteCollection(c *fiber.Ctx) error {
	collectionID, err := c.ParamsInt("collection_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid collection id",
		})
	}

	if _, err := h.db.GetCollection(c.Context(), int64(collectionID)); err != nil {
		return errorResponse(c, err)
	}

	if err := h.registry.Evict(c.Context(), int64(collectionID)); err != nil {
		logger.Error("Failed to evict collection index", zap.Error(err))
		return errorResponse(c, err)
	}

	if err := h.db.DeleteCollection(c.Context(), int64(collectionID)); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Collection deleted successfully",
	})
}
