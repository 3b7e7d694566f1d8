package index

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/pkg/logger"
)

// MappingStore persists which collections have been indexed and under which
// namespace. Satisfied by *sqlite.Client.
type MappingStore interface {
	CreateIndexedCollection(ctx context.Context, collectionID int64, namespace string) error
	ListIndexedCollections(ctx context.Context) ([]models.IndexedCollection, error)
	DeleteIndexedCollection(ctx context.Context, collectionID int64) error
}

// NamespaceFor derives the vector namespace name for a collection. The
// mapping is deterministic so a restarted process reattaches to the same
// namespaces.
func NamespaceFor(collectionID int64) string {
	return fmt.Sprintf("collection_%d", collectionID)
}

// Registry caches one Handle per indexed collection. Reads of a cached
// handle take only the shared read lock; the first-indexing path for a
// collection is serialized per collection id so concurrent first uploads
// cannot create two mappings or two namespaces. Work on different
// collections never blocks.
type Registry struct {
	mu       sync.RWMutex
	handles  map[int64]*Handle
	creating map[int64]*sync.Mutex

	store    VectorStore
	embedder Embedder
	mappings MappingStore
}

func NewRegistry(store VectorStore, embedder Embedder, mappings MappingStore) *Registry {
	return &Registry{
		handles:  make(map[int64]*Handle),
		creating: make(map[int64]*sync.Mutex),
		store:    store,
		embedder: embedder,
		mappings: mappings,
	}
}

// Preload restores a handle for every persisted mapping so queries keep
// working across process restarts. Namespaces already exist for persisted
// rows, so no vector store calls are made here.
func (r *Registry) Preload(ctx context.Context) error {
	indexed, err := r.mappings.ListIndexedCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to load indexed collections: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ic := range indexed {
		if _, ok := r.handles[ic.CollectionID]; ok {
			continue
		}
		r.handles[ic.CollectionID] = &Handle{
			collectionID: ic.CollectionID,
			namespace:    ic.Namespace,
			store:        r.store,
			embedder:     r.embedder,
		}
	}

	logger.Info("Index registry preloaded", zap.Int("collections", len(indexed)))
	return nil
}

// Lookup returns the cached handle, if any. It never touches persistence.
func (r *Registry) Lookup(collectionID int64) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[collectionID]
	return h, ok
}

// GetOrCreate returns the collection's handle, creating the persisted
// mapping and the backing namespace on first use. The loser of a concurrent
// first-indexing race finds the winner's cached handle and reuses it.
func (r *Registry) GetOrCreate(ctx context.Context, collectionID int64) (*Handle, error) {
	if h, ok := r.Lookup(collectionID); ok {
		return h, nil
	}

	lock := r.creationLock(collectionID)
	lock.Lock()
	defer lock.Unlock()

	if h, ok := r.Lookup(collectionID); ok {
		return h, nil
	}

	namespace := NamespaceFor(collectionID)

	if err := r.mappings.CreateIndexedCollection(ctx, collectionID, namespace); err != nil {
		return nil, err
	}
	if err := r.store.EnsureNamespace(ctx, namespace); err != nil {
		return nil, err
	}

	h := &Handle{
		collectionID: collectionID,
		namespace:    namespace,
		store:        r.store,
		embedder:     r.embedder,
	}

	r.mu.Lock()
	r.handles[collectionID] = h
	r.mu.Unlock()

	logger.Info("Collection indexed for the first time",
		zap.Int64("collection_id", collectionID),
		zap.String("namespace", namespace),
	)

	return h, nil
}

// Evict removes the cached handle, drops the backing namespace and deletes
// the persisted mapping. Calling it for a collection that was never indexed
// is a no-op.
func (r *Registry) Evict(ctx context.Context, collectionID int64) error {
	lock := r.creationLock(collectionID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	delete(r.handles, collectionID)
	r.mu.Unlock()

	if err := r.store.DropNamespace(ctx, NamespaceFor(collectionID)); err != nil {
		return err
	}
	if err := r.mappings.DeleteIndexedCollection(ctx, collectionID); err != nil {
		return err
	}

	logger.Info("Collection evicted from index registry", zap.Int64("collection_id", collectionID))
	return nil
}

func (r *Registry) creationLock(collectionID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.creating[collectionID]; ok {
		return l
	}

	l := &sync.Mutex{}
	r.creating[collectionID] = l
	return l
}
