package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/docassist/backend/pkg/errs"
	"github.com/docassist/backend/pkg/logger"
)

// Client manages one milvus collection per document collection. Namespaces
// are created lazily by the index registry and dropped on collection delete.
type Client struct {
	client    client.Client
	vectorDim int
}

// Entry is one chunk ready for upsert. DocumentID, CollectionID and
// ChunkIndex travel with the vector; without them retrieved fragments
// cannot be resolved back to a citation.
type Entry struct {
	ChunkID      string
	Embedding    []float32
	Text         string
	DocumentID   int64
	CollectionID int64
	ChunkIndex   int64
}

type SearchResult struct {
	Text       string
	DocumentID int64
	ChunkIndex int
	Score      float32
}

func NewClient(endpoint, apiKey string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.Int("vector_dim", vectorDim),
	)

	return &Client{
		client:    c,
		vectorDim: vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

// EnsureNamespace creates and loads the namespace if it does not exist yet.
// Safe to call repeatedly with the same name.
func (m *Client) EnsureNamespace(ctx context.Context, namespace string) error {
	has, err := m.client.HasCollection(ctx, namespace)
	if err != nil {
		return errs.External("check namespace", err)
	}

	if has {
		logger.Debug("Namespace already exists", zap.String("namespace", namespace))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: namespace,
		Description:    "Document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "document_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "collection_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return errs.External("create namespace", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return errs.External("create vector index", err)
	}
	err = m.client.CreateIndex(ctx, namespace, "embedding", idx, false)
	if err != nil {
		return errs.External("create vector index", err)
	}

	err = m.client.LoadCollection(ctx, namespace, false)
	if err != nil {
		return errs.External("load namespace", err)
	}

	logger.Info("Namespace created and loaded", zap.String("namespace", namespace))

	return nil
}

// DropNamespace deletes the namespace and all vectors in it. Dropping a
// namespace that does not exist is a no-op.
func (m *Client) DropNamespace(ctx context.Context, namespace string) error {
	has, err := m.client.HasCollection(ctx, namespace)
	if err != nil {
		return errs.External("check namespace", err)
	}
	if !has {
		return nil
	}

	if err := m.client.DropCollection(ctx, namespace); err != nil {
		return errs.External("drop namespace", err)
	}

	logger.Info("Namespace dropped", zap.String("namespace", namespace))
	return nil
}

func (m *Client) Insert(ctx context.Context, namespace string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(entries))
	embeddings := make([][]float32, len(entries))
	texts := make([]string, len(entries))
	documentIDs := make([]int64, len(entries))
	collectionIDs := make([]int64, len(entries))
	chunkIndexes := make([]int64, len(entries))

	for i, e := range entries {
		chunkIDs[i] = e.ChunkID
		embeddings[i] = e.Embedding
		texts[i] = e.Text
		documentIDs[i] = e.DocumentID
		collectionIDs[i] = e.CollectionID
		chunkIndexes[i] = e.ChunkIndex
	}

	_, err := m.client.Insert(
		ctx,
		namespace,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnInt64("document_id", documentIDs),
		entity.NewColumnInt64("collection_id", collectionIDs),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
	)
	if err != nil {
		return errs.External("insert chunks", err)
	}

	err = m.client.Flush(ctx, namespace, false)
	if err != nil {
		return errs.External("flush namespace", err)
	}

	logger.Debug("Chunks inserted into vector store",
		zap.String("namespace", namespace),
		zap.Int("count", len(entries)),
	)

	return nil
}

// Search returns the topK nearest chunks in similarity order. The order of
// the returned slice is the retrieval rank and must not be re-sorted by
// callers.
func (m *Client) Search(ctx context.Context, namespace string, queryEmbedding []float32, topK int) ([]SearchResult, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		namespace,
		[]string{},
		"",
		[]string{"text", "document_id", "chunk_index"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, errs.External("vector search", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		textCol := sr.Fields.GetColumn("text")
		docIDCol := sr.Fields.GetColumn("document_id")
		chunkIndexCol := sr.Fields.GetColumn("chunk_index")

		for i := 0; i < sr.ResultCount; i++ {
			text, _ := textCol.Get(i)
			docID, _ := docIDCol.Get(i)
			chunkIndex, _ := chunkIndexCol.Get(i)

			result := SearchResult{
				Text:  text.(string),
				Score: sr.Scores[i],
			}
			if v, ok := docID.(int64); ok {
				result.DocumentID = v
			}
			if v, ok := chunkIndex.(int64); ok {
				result.ChunkIndex = int(v)
			}

			results = append(results, result)
		}
	}

	logger.Debug("Vector search completed",
		zap.String("namespace", namespace),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}
