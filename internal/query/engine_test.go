package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docassist/backend/internal/admin"
	"github.com/docassist/backend/internal/index"
	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/internal/vector/milvus"
	"github.com/docassist/backend/pkg/errs"
)

type fakeVectorStore struct {
	results []milvus.SearchResult
}

func (f *fakeVectorStore) EnsureNamespace(ctx context.Context, namespace string) error { return nil }
func (f *fakeVectorStore) DropNamespace(ctx context.Context, namespace string) error   { return nil }
func (f *fakeVectorStore) Insert(ctx context.Context, namespace string, entries []milvus.Entry) error {
	return nil
}
func (f *fakeVectorStore) Search(ctx context.Context, namespace string, queryEmbedding []float32, topK int) ([]milvus.SearchResult, error) {
	return f.results, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeMappings struct{}

func (fakeMappings) CreateIndexedCollection(ctx context.Context, collectionID int64, namespace string) error {
	return nil
}
func (fakeMappings) ListIndexedCollections(ctx context.Context) ([]models.IndexedCollection, error) {
	return nil, nil
}
func (fakeMappings) DeleteIndexedCollection(ctx context.Context, collectionID int64) error {
	return nil
}

type fakeSettings struct {
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]string)}
}

func (f *fakeSettings) GetSetting(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", fmt.Errorf("setting %q: %w", key, errs.ErrNotFound)
	}
	return v, nil
}

func (f *fakeSettings) SetSetting(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

type fakeLLM struct {
	answer       string
	lastModel    string
	lastQuery    string
	lastExcerpts []string
	calls        int
}

func (f *fakeLLM) GenerateAnswer(ctx context.Context, model, query string, excerpts []string) (string, error) {
	f.calls++
	f.lastModel = model
	f.lastQuery = query
	f.lastExcerpts = excerpts
	return f.answer, nil
}

func newTestEngine(t *testing.T, store *fakeVectorStore, settings *fakeSettings, llm *fakeLLM, indexed ...int64) *Engine {
	t.Helper()

	registry := index.NewRegistry(store, fakeEmbedder{}, fakeMappings{})
	for _, id := range indexed {
		_, err := registry.GetOrCreate(context.Background(), id)
		require.NoError(t, err)
	}

	return NewEngine(registry, admin.NewStore(settings, "default-model"), llm, 5)
}

func TestAnswerUnindexedCollectionSentinel(t *testing.T) {
	llm := &fakeLLM{answer: "should not be called"}
	engine := newTestEngine(t, &fakeVectorStore{}, newFakeSettings(), llm)

	result, err := engine.Answer(context.Background(), "anything", 42, NoContext())

	require.NoError(t, err)
	assert.Equal(t, EmptyCollectionAnswer, result.Answer)
	assert.Empty(t, result.Fragments)
	assert.Zero(t, llm.calls)
}

func TestAnswerPreservesRankOrder(t *testing.T) {
	store := &fakeVectorStore{results: []milvus.SearchResult{
		{Text: "most relevant", DocumentID: 3, ChunkIndex: 2, Score: 0.1},
		{Text: "second", DocumentID: 1, ChunkIndex: 0, Score: 0.4},
		{Text: "third", DocumentID: 2, ChunkIndex: 5, Score: 0.9},
	}}
	llm := &fakeLLM{answer: "an answer"}
	engine := newTestEngine(t, store, newFakeSettings(), llm, 1)

	result, err := engine.Answer(context.Background(), "question", 1, NoContext())

	require.NoError(t, err)
	require.Len(t, result.Fragments, 3)
	assert.Equal(t, int64(3), result.Fragments[0].DocumentID)
	assert.Equal(t, int64(1), result.Fragments[1].DocumentID)
	assert.Equal(t, int64(2), result.Fragments[2].DocumentID)
	assert.Equal(t, []string{"most relevant", "second", "third"}, llm.lastExcerpts)
}

func TestAnswerDropsFragmentsWithoutDocumentID(t *testing.T) {
	store := &fakeVectorStore{results: []milvus.SearchResult{
		{Text: "cited", DocumentID: 7, ChunkIndex: 1},
		{Text: "legacy entry", DocumentID: 0, ChunkIndex: 0},
		{Text: "also cited", DocumentID: 9, ChunkIndex: 3},
	}}
	llm := &fakeLLM{answer: "an answer"}
	engine := newTestEngine(t, store, newFakeSettings(), llm, 1)

	result, err := engine.Answer(context.Background(), "question", 1, NoContext())

	require.NoError(t, err)
	require.Len(t, result.Fragments, 2)
	assert.Equal(t, int64(7), result.Fragments[0].DocumentID)
	assert.Equal(t, int64(9), result.Fragments[1].DocumentID)

	// Uncited text still reaches the model.
	assert.Len(t, llm.lastExcerpts, 3)
}

func TestAnswerResolvesModelFreshPerQuery(t *testing.T) {
	settings := newFakeSettings()
	llm := &fakeLLM{answer: "an answer"}
	engine := newTestEngine(t, &fakeVectorStore{}, settings, llm, 1)
	ctx := context.Background()

	_, err := engine.Answer(ctx, "question", 1, NoContext())
	require.NoError(t, err)
	assert.Equal(t, "default-model", llm.lastModel)

	require.NoError(t, settings.SetSetting(ctx, "active_model", "gpt-4o"))

	_, err = engine.Answer(ctx, "question", 1, NoContext())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", llm.lastModel)
}

func TestAnswerAppliesStoredCustomContext(t *testing.T) {
	settings := newFakeSettings()
	require.NoError(t, settings.SetSetting(context.Background(), "custom_context", "Focus on pricing"))

	llm := &fakeLLM{answer: "an answer"}
	engine := newTestEngine(t, &fakeVectorStore{}, settings, llm, 1)

	_, err := engine.Answer(context.Background(), "what is the cost?", 1, NoContext())

	require.NoError(t, err)
	assert.Equal(t, "Additional context: Focus on pricing\nQuestion: what is the cost?", llm.lastQuery)
}

func TestAnswerHistoryOverridesCustomContext(t *testing.T) {
	settings := newFakeSettings()
	require.NoError(t, settings.SetSetting(context.Background(), "custom_context", "Focus on pricing"))

	llm := &fakeLLM{answer: "an answer"}
	engine := newTestEngine(t, &fakeVectorStore{}, settings, llm, 1)

	turns := []models.ChatTurn{{Query: "what is X?", Response: "X is..."}}
	_, err := engine.Answer(context.Background(), "and Y?", 1, HistoryContext(turns))

	require.NoError(t, err)
	assert.Contains(t, llm.lastQuery, "Previous conversation context:")
	assert.NotContains(t, llm.lastQuery, "Additional context:")
}
