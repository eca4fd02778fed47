package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutAndGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	location, err := store.Put(context.Background(), "research_20250101_120000.json", strings.NewReader(`{"ok":true}`))
	require.NoError(t, err)
	assert.Contains(t, location, "research_20250101_120000.json")

	rc, err := store.Get(context.Background(), "research_20250101_120000.json")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestLocalStorePutRefusesOverwrite(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "judgment_20250101_120000.json", strings.NewReader("first"))
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "judgment_20250101_120000.json", strings.NewReader("second"))
	assert.ErrorIs(t, err, ErrRecordExists)

	// The original record is untouched.
	rc, err := store.Get(context.Background(), "judgment_20250101_120000.json")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestLocalStoreGetMissingRecord(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing.json")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "record not found")
}

func TestNewStoreUnknownType(t *testing.T) {
	_, err := NewStore(StoreConfig{Type: "tape"})
	assert.Error(t, err)
}
