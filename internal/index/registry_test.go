package index

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/internal/vector/milvus"
)

type recordingVectorStore struct {
	mu          sync.Mutex
	ensureCalls map[string]int
	dropped     []string
	entries     map[string][]milvus.Entry
}

func newRecordingVectorStore() *recordingVectorStore {
	return &recordingVectorStore{
		ensureCalls: make(map[string]int),
		entries:     make(map[string][]milvus.Entry),
	}
}

func (s *recordingVectorStore) EnsureNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureCalls[namespace]++
	return nil
}

func (s *recordingVectorStore) DropNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = append(s.dropped, namespace)
	return nil
}

func (s *recordingVectorStore) Insert(ctx context.Context, namespace string, entries []milvus.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[namespace] = append(s.entries[namespace], entries...)
	return nil
}

func (s *recordingVectorStore) Search(ctx context.Context, namespace string, queryEmbedding []float32, topK int) ([]milvus.SearchResult, error) {
	return nil, nil
}

type memoryMappings struct {
	mu          sync.Mutex
	rows        map[int64]string
	createCalls int
}

func newMemoryMappings() *memoryMappings {
	return &memoryMappings{rows: make(map[int64]string)}
}

func (m *memoryMappings) CreateIndexedCollection(ctx context.Context, collectionID int64, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if _, ok := m.rows[collectionID]; !ok {
		m.rows[collectionID] = namespace
	}
	return nil
}

func (m *memoryMappings) ListIndexedCollections(ctx context.Context) ([]models.IndexedCollection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var indexed []models.IndexedCollection
	for id, ns := range m.rows {
		indexed = append(indexed, models.IndexedCollection{
			CollectionID: id,
			Namespace:    ns,
			CreatedAt:    time.Now(),
		})
	}
	return indexed, nil
}

func (m *memoryMappings) DeleteIndexedCollection(ctx context.Context, collectionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, collectionID)
	return nil
}

type constantEmbedder struct{}

func (constantEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func TestNamespaceFor(t *testing.T) {
	assert.Equal(t, "collection_42", NamespaceFor(42))
}

func TestLookupNeverCreates(t *testing.T) {
	mappings := newMemoryMappings()
	registry := NewRegistry(newRecordingVectorStore(), constantEmbedder{}, mappings)

	_, ok := registry.Lookup(5)

	assert.False(t, ok)
	assert.Zero(t, mappings.createCalls)
}

func TestGetOrCreateFirstUse(t *testing.T) {
	store := newRecordingVectorStore()
	mappings := newMemoryMappings()
	registry := NewRegistry(store, constantEmbedder{}, mappings)

	h, err := registry.GetOrCreate(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, int64(7), h.CollectionID())
	assert.Equal(t, "collection_7", h.Namespace())
	assert.Equal(t, "collection_7", mappings.rows[7])
	assert.Equal(t, 1, store.ensureCalls["collection_7"])

	cached, ok := registry.Lookup(7)
	require.True(t, ok)
	assert.Same(t, h, cached)
}

// Concurrent first-indexing of the same collection must produce exactly one
// mapping, one namespace and one shared handle.
func TestGetOrCreateConcurrent(t *testing.T) {
	store := newRecordingVectorStore()
	mappings := newMemoryMappings()
	registry := NewRegistry(store, constantEmbedder{}, mappings)

	const workers = 32
	handles := make([]*Handle, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := registry.GetOrCreate(context.Background(), 7)
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, mappings.createCalls)
	assert.Equal(t, 1, store.ensureCalls["collection_7"])
	assert.Len(t, mappings.rows, 1)

	for i := 1; i < workers; i++ {
		assert.Same(t, handles[0], handles[i])
	}
}

func TestEvict(t *testing.T) {
	store := newRecordingVectorStore()
	mappings := newMemoryMappings()
	registry := NewRegistry(store, constantEmbedder{}, mappings)
	ctx := context.Background()

	_, err := registry.GetOrCreate(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, registry.Evict(ctx, 3))

	_, ok := registry.Lookup(3)
	assert.False(t, ok)
	assert.Contains(t, store.dropped, "collection_3")
	assert.Empty(t, mappings.rows)
}

func TestEvictNeverIndexedIsNoOp(t *testing.T) {
	registry := NewRegistry(newRecordingVectorStore(), constantEmbedder{}, newMemoryMappings())

	assert.NoError(t, registry.Evict(context.Background(), 99))
}

func TestPreloadRestoresHandles(t *testing.T) {
	store := newRecordingVectorStore()
	mappings := newMemoryMappings()
	mappings.rows[11] = "collection_11"
	registry := NewRegistry(store, constantEmbedder{}, mappings)

	require.NoError(t, registry.Preload(context.Background()))

	h, ok := registry.Lookup(11)
	require.True(t, ok)
	assert.Equal(t, "collection_11", h.Namespace())

	// Persisted namespaces already exist; preload must not recreate them.
	assert.Empty(t, store.ensureCalls)
}

func TestHandleInsertTagsMetadata(t *testing.T) {
	store := newRecordingVectorStore()
	registry := NewRegistry(store, constantEmbedder{}, newMemoryMappings())
	ctx := context.Background()

	h, err := registry.GetOrCreate(ctx, 4)
	require.NoError(t, err)

	require.NoError(t, h.Insert(ctx, "some chunk text", 21, 2))

	entries := store.entries["collection_4"]
	require.Len(t, entries, 1)
	assert.Equal(t, "some chunk text", entries[0].Text)
	assert.Equal(t, int64(21), entries[0].DocumentID)
	assert.Equal(t, int64(4), entries[0].CollectionID)
	assert.Equal(t, int64(2), entries[0].ChunkIndex)
	assert.NotEmpty(t, entries[0].ChunkID)
}

// Chunk ids are random, so inserting the same chunk twice appends a second
// entry instead of replacing the first.
func TestHandleReinsertAppends(t *testing.T) {
	store := newRecordingVectorStore()
	registry := NewRegistry(store, constantEmbedder{}, newMemoryMappings())
	ctx := context.Background()

	h, err := registry.GetOrCreate(ctx, 4)
	require.NoError(t, err)

	require.NoError(t, h.Insert(ctx, "same text", 21, 0))
	require.NoError(t, h.Insert(ctx, "same text", 21, 0))

	entries := store.entries["collection_4"]
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ChunkID, entries[1].ChunkID)
}
