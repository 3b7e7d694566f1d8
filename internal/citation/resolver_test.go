package citation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docassist/backend/internal/query"
	"github.com/docassist/backend/internal/storage/models"
	"github.com/docassist/backend/pkg/errs"
)

type fakeDocumentStore struct {
	docs map[int64]*models.Document
	err  error
}

func (f *fakeDocumentStore) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, errs.ErrNotFound)
	}
	return doc, nil
}

func TestResolvePreservesInputOrder(t *testing.T) {
	store := &fakeDocumentStore{docs: map[int64]*models.Document{
		1: {ID: 1, FileName: "guide.pdf"},
		3: {ID: 3, FileName: "notes.txt"},
	}}
	resolver := NewResolver(store)

	fragments := []query.Fragment{
		{DocumentID: 3, ChunkIndex: 4},
		{DocumentID: 1, ChunkIndex: 0},
		{DocumentID: 3, ChunkIndex: 1},
	}

	citations, err := resolver.Resolve(context.Background(), fragments)

	require.NoError(t, err)
	require.Len(t, citations, 3)
	assert.Equal(t, Citation{DocumentName: "notes.txt", ChunkIndex: 4, DocumentID: 3}, citations[0])
	assert.Equal(t, Citation{DocumentName: "guide.pdf", ChunkIndex: 0, DocumentID: 1}, citations[1])
	assert.Equal(t, Citation{DocumentName: "notes.txt", ChunkIndex: 1, DocumentID: 3}, citations[2])
}

func TestResolveMissingDocumentGetsPlaceholder(t *testing.T) {
	store := &fakeDocumentStore{docs: map[int64]*models.Document{
		1: {ID: 1, FileName: "guide.pdf"},
	}}
	resolver := NewResolver(store)

	fragments := []query.Fragment{
		{DocumentID: 1, ChunkIndex: 0},
		{DocumentID: 99, ChunkIndex: 2},
	}

	citations, err := resolver.Resolve(context.Background(), fragments)

	require.NoError(t, err)
	require.Len(t, citations, 2)
	assert.Equal(t, "guide.pdf", citations[0].DocumentName)
	assert.Equal(t, UnknownDocument, citations[1].DocumentName)
	assert.Equal(t, int64(99), citations[1].DocumentID)
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	store := &fakeDocumentStore{err: errors.New("database locked")}
	resolver := NewResolver(store)

	_, err := resolver.Resolve(context.Background(), []query.Fragment{{DocumentID: 1}})

	assert.Error(t, err)
}

func TestResolveNoFragments(t *testing.T) {
	resolver := NewResolver(&fakeDocumentStore{})

	citations, err := resolver.Resolve(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, citations)
}
