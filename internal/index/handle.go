package index

import (
	"context"

	"github.com/google/uuid"

	"github.com/docassist/backend/internal/vector/milvus"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the namespace-oriented vector collaborator. Satisfied by
// *milvus.Client; tests substitute in-memory fakes.
type VectorStore interface {
	EnsureNamespace(ctx context.Context, namespace string) error
	DropNamespace(ctx context.Context, namespace string) error
	Insert(ctx context.Context, namespace string, entries []milvus.Entry) error
	Search(ctx context.Context, namespace string, queryEmbedding []float32, topK int) ([]milvus.SearchResult, error)
}

// Handle is the live searchable index of one collection. Handles are created
// and cached by the Registry and stay valid until the collection is evicted.
type Handle struct {
	collectionID int64
	namespace    string
	store        VectorStore
	embedder     Embedder
}

func (h *Handle) CollectionID() int64 {
	return h.collectionID
}

func (h *Handle) Namespace() string {
	return h.namespace
}

// Insert embeds one chunk and upserts it with its identifying metadata.
// Chunk ids are random: re-inserting the same document appends new entries
// rather than replacing earlier ones.
func (h *Handle) Insert(ctx context.Context, text string, documentID int64, chunkIndex int) error {
	embedding, err := h.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	entry := milvus.Entry{
		ChunkID:      uuid.New().String(),
		Embedding:    embedding,
		Text:         text,
		DocumentID:   documentID,
		CollectionID: h.collectionID,
		ChunkIndex:   int64(chunkIndex),
	}

	return h.store.Insert(ctx, h.namespace, []milvus.Entry{entry})
}

// Search embeds the query and returns the topK nearest fragments in
// retrieval rank order.
func (h *Handle) Search(ctx context.Context, query string, topK int) ([]milvus.SearchResult, error) {
	embedding, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	return h.store.Search(ctx, h.namespace, embedding, topK)
}
