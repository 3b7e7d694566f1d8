package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docassist/backend/internal/indexing"
	"github.com/docassist/backend/internal/metrics"
	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/internal/storage/sqlite"
	"github.com/docassist/backend/pkg/errs"
	"github.com/docassist/backend/pkg/logger"
)

type DocumentHandler struct {
	indexer *indexing.Service
	db      *sqlite.Client
}

func NewDocumentHandler(indexer *indexing.Service, db *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{
		indexer: indexer,
		db:      db,
	}
}

// UploadDocument stores an already-extracted document and indexes it. Text
// extraction from raw file formats happens upstream; the payload carries
// plain text.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		CollectionID int64  `json:"collection_id"`
		FileName     string `json:"file_name"`
		FileType     string `json:"file_type"`
		Content      string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.FileName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File name is required",
		})
	}

	if _, err := h.db.GetCollection(c.Context(), req.CollectionID); err != nil {
		return errorResponse(c, err)
	}

	doc := &models.Document{
		CollectionID: req.CollectionID,
		FileName:     req.FileName,
		FileType:     req.FileType,
		Content:      req.Content,
		UploadedAt:   time.Now(),
	}

	if err := h.db.InsertDocument(c.Context(), doc); err != nil {
		logger.Error("Failed to store document", zap.Error(err))
		return errorResponse(c, err)
	}

	if err := h.indexer.Index(c.Context(), doc); err != nil {
		var indexErr *errs.IndexingError
		if errors.As(err, &indexErr) {
			logger.Error("Document indexing failed",
				zap.Int64("document_id", indexErr.DocumentID),
				zap.Int("chunk_index", indexErr.ChunkIndex),
				zap.Error(err),
			)
			// The document is stored; re-uploading is not needed, the
			// caller can retry indexing for this document.
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":       "Document stored but indexing failed",
				"document_id": indexErr.DocumentID,
				"chunk_index": indexErr.ChunkIndex,
			})
		}
		logger.Error("Failed to index document", zap.Error(err))
		return errorResponse(c, err)
	}
	metrics.DocumentsIndexed.Inc()

	return c.JSON(fiber.Map{
		"message":     "Document uploaded successfully",
		"document_id": doc.ID,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	collectionID, err := c.ParamsInt("collection_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid collection id",
		})
	}

	if _, err := h.db.GetCollection(c.Context(), int64(collectionID)); err != nil {
		return errorResponse(c, err)
	}

	docs, err := h.db.ListDocuments(c.Context(), int64(collectionID))
	if err != nil {
		return errorResponse(c, err)
	}

	out := make([]fiber.Map, 0, len(docs))
	for _, d := range docs {
		out = append(out, fiber.Map{
			"id":          d.ID,
			"file_name":   d.FileName,
			"file_type":   d.FileType,
			"uploaded_at": d.UploadedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{"documents": out})
}
