package admin

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docassist/backend/pkg/errs"
)

type memorySettings struct {
	values map[string]string
}

func newMemorySettings() *memorySettings {
	return &memorySettings{values: make(map[string]string)}
}

func (m *memorySettings) GetSetting(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("setting %q: %w", key, errs.ErrNotFound)
	}
	return v, nil
}

func (m *memorySettings) SetSetting(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func TestActiveModelDefaultsWhenUnset(t *testing.T) {
	store := NewStore(newMemorySettings(), "gpt-4o-mini")

	model, err := store.ActiveModel(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestActiveModelDefaultsWhenEmpty(t *testing.T) {
	db := newMemorySettings()
	db.values[keyActiveModel] = ""
	store := NewStore(db, "gpt-4o-mini")

	model, err := store.ActiveModel(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestSetActiveModelLastWriteWins(t *testing.T) {
	store := NewStore(newMemorySettings(), "gpt-4o-mini")
	ctx := context.Background()

	require.NoError(t, store.SetActiveModel(ctx, "gpt-4o"))
	require.NoError(t, store.SetActiveModel(ctx, "gpt-4-turbo"))

	model, err := store.ActiveModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4-turbo", model)
}

func TestEnsureDefaultsSeedsOnce(t *testing.T) {
	db := newMemorySettings()
	store := NewStore(db, "gpt-4o-mini")
	ctx := context.Background()

	require.NoError(t, store.EnsureDefaults(ctx))
	assert.Equal(t, "gpt-4o-mini", db.values[keyActiveModel])

	// A stored admin choice survives later boots.
	require.NoError(t, store.SetActiveModel(ctx, "gpt-4o"))
	require.NoError(t, store.EnsureDefaults(ctx))

	model, err := store.ActiveModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
}

func TestCustomContextEmptyWhenUnset(t *testing.T) {
	store := NewStore(newMemorySettings(), "gpt-4o-mini")

	text, err := store.CustomContext(context.Background())

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestCustomContextRoundTrip(t *testing.T) {
	store := NewStore(newMemorySettings(), "gpt-4o-mini")
	ctx := context.Background()

	require.NoError(t, store.SetCustomContext(ctx, "Focus on pricing"))

	text, err := store.CustomContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Focus on pricing", text)
}
