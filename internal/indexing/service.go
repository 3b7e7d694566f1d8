package indexing

import (
	"context"

	"go.uber.org/zap"

	"github.com/docassist/backend/internal/chunker"
	"github.com/docassist/backend/internal/index"
	"github.com/docassist/backend/internal/metrics"
	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/pkg/errs"
	"github.com/docassist/backend/pkg/logger"
)

// Service drives chunker output into a collection's index.
type Service struct {
	chunker  *chunker.Chunker
	registry *index.Registry
}

func NewService(ck *chunker.Chunker, registry *index.Registry) *Service {
	return &Service{
		chunker:  ck,
		registry: registry,
	}
}

// Index splits the document and inserts every chunk, tagged with document
// id, chunk index and collection id, in chunk-index order. A document that
// yields no chunks is a successful no-op and never touches the registry.
//
// A failed insertion stops the run and is reported as an IndexingError
// naming the document and the chunk. Chunks inserted before the failure
// stand; re-invoking Index appends, it does not replace.
func (s *Service) Index(ctx context.Context, doc *models.Document) error {
	chunks := s.chunker.Split(doc.Content)
	if len(chunks) == 0 {
		logger.Debug("Document produced no chunks, skipping",
			zap.Int64("document_id", doc.ID),
		)
		return nil
	}

	handle, err := s.registry.GetOrCreate(ctx, doc.CollectionID)
	if err != nil {
		return err
	}

	for _, chunk := range chunks {
		if err := handle.Insert(ctx, chunk.Text, doc.ID, chunk.Index); err != nil {
			return &errs.IndexingError{
				DocumentID: doc.ID,
				ChunkIndex: chunk.Index,
				Err:        err,
			}
		}
		metrics.ChunksIndexed.Inc()
	}

	logger.Info("Document indexed",
		zap.Int64("document_id", doc.ID),
		zap.Int64("collection_id", doc.CollectionID),
		zap.Int("chunks", len(chunks)),
	)

	return nil
}
