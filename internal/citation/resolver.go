package citation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/docassist/backend/internal/query"
	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/pkg/errs"
	"github.com/docassist/backend/pkg/logger"
)

// UnknownDocument is shown when a fragment's source document has been
// deleted or cannot be found.
const UnknownDocument = "Unknown document"

// DocumentStore looks up source documents for display. Satisfied by
// *sqlite.Client.
type DocumentStore interface {
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
}

// Citation maps a retrieved fragment back to its source document.
type Citation struct {
	DocumentName string `json:"document_name"`
	ChunkIndex   int    `json:"chunk_index"`
	DocumentID   int64  `json:"document_id"`
}

type Resolver struct {
	docs DocumentStore
}

func NewResolver(docs DocumentStore) *Resolver {
	return &Resolver{docs: docs}
}

// Resolve returns one citation per fragment, in the same order as the
// input, which is the retrieval rank.
func (r *Resolver) Resolve(ctx context.Context, fragments []query.Fragment) ([]Citation, error) {
	citations := make([]Citation, 0, len(fragments))

	for _, f := range fragments {
		name := UnknownDocument

		doc, err := r.docs.GetDocument(ctx, f.DocumentID)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			logger.Debug("Cited document no longer exists", zap.Int64("document_id", f.DocumentID))
		case err != nil:
			return nil, err
		default:
			name = doc.FileName
		}

		citations = append(citations, Citation{
			DocumentName: name,
			ChunkIndex:   f.ChunkIndex,
			DocumentID:   f.DocumentID,
		})
	}

	return citations, nil
}
