package query

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/docassist/backend/internal/admin"
	"github.com/docassist/backend/internal/index"
	"github.com/docassist/backend/internal/metrics"
	"github.com/docassist/backend/pkg/logger"
)

// EmptyCollectionAnswer is the sentinel returned for collections that have
// never been indexed. It is a normal outcome, not an error.
const EmptyCollectionAnswer = "No documents found in this collection"

const DefaultTopK = 5

// CompletionClient generates the final answer from the retrieved excerpts.
// Satisfied by *llm.Client.
type CompletionClient interface {
	GenerateAnswer(ctx context.Context, model, query string, excerpts []string) (string, error)
}

// Fragment is one retrieved chunk reference, in retrieval rank order.
type Fragment struct {
	Text       string
	DocumentID int64
	ChunkIndex int
	Score      float32
}

type Result struct {
	Answer    string
	Fragments []Fragment
}

// Engine executes the enhanced query against a collection's cached index.
type Engine struct {
	registry *index.Registry
	settings *admin.Store
	llm      CompletionClient
	topK     int
}

func NewEngine(registry *index.Registry, settings *admin.Store, llm CompletionClient, topK int) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{
		registry: registry,
		settings: settings,
		llm:      llm,
		topK:     topK,
	}
}

// Answer retrieves relevant fragments for the composed query and
// synthesizes an answer from them. When the collection has no index the
// sentinel result is returned. The active model is resolved fresh on every
// call so an admin model change applies to the very next query.
//
// Fragment order is retrieval-similarity rank and is preserved unchanged
// into the result; fragments without document-id metadata are dropped.
func (e *Engine) Answer(ctx context.Context, rawQuery string, collectionID int64, source ContextSource) (*Result, error) {
	start := time.Now()

	handle, ok := e.registry.Lookup(collectionID)
	if !ok {
		metrics.EmptyCollectionQueries.Inc()
		logger.Debug("Query against unindexed collection",
			zap.Int64("collection_id", collectionID),
		)
		return &Result{Answer: EmptyCollectionAnswer}, nil
	}

	source, err := e.resolveSource(ctx, source)
	if err != nil {
		return nil, err
	}
	enhanced := Compose(rawQuery, source)

	model, err := e.settings.ActiveModel(ctx)
	if err != nil {
		return nil, err
	}

	retrieved, err := handle.Search(ctx, enhanced, e.topK)
	if err != nil {
		return nil, err
	}
	metrics.RetrievedFragments.Observe(float64(len(retrieved)))

	excerpts := make([]string, 0, len(retrieved))
	fragments := make([]Fragment, 0, len(retrieved))
	for _, r := range retrieved {
		excerpts = append(excerpts, r.Text)

		// Legacy or malformed entries without a document id cannot be
		// cited; skip them rather than fail the query.
		if r.DocumentID == 0 {
			continue
		}
		fragments = append(fragments, Fragment{
			Text:       r.Text,
			DocumentID: r.DocumentID,
			ChunkIndex: r.ChunkIndex,
			Score:      r.Score,
		})
	}

	answer, err := e.llm.GenerateAnswer(ctx, model, enhanced, excerpts)
	if err != nil {
		return nil, err
	}

	logger.Info("Query answered",
		zap.Int64("collection_id", collectionID),
		zap.String("model", model),
		zap.Int("fragments", len(fragments)),
		zap.Duration("latency", time.Since(start)),
	)

	return &Result{
		Answer:    answer,
		Fragments: fragments,
	}, nil
}

// resolveSource enforces the context priority: conversation history when
// present, otherwise the administrator custom context, never both.
func (e *Engine) resolveSource(ctx context.Context, source ContextSource) (ContextSource, error) {
	if source.kind != contextNone {
		return source, nil
	}

	custom, err := e.settings.CustomContext(ctx)
	if err != nil {
		return NoContext(), err
	}
	return CustomContext(custom), nil
}
