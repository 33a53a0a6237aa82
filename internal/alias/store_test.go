package alias

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), DefaultFileName))

	entries, err := s.LoadAll(context.Background())

	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_RoundTripThroughIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Given: an index backed by a file store
	ix := NewIndex(ctx, WithPersister(NewFileStore(path)), WithClock(func() time.Time { return fixed }))
	_, err := ix.Insert(ctx, "g", WebSearch("google", "Google"))
	require.NoError(t, err)
	_, err = ix.Insert(ctx, "ff", AppLaunch("firefox", "Firefox"))
	require.NoError(t, err)

	// When: a second index loads the same file
	reloaded := NewIndex(ctx, WithPersister(NewFileStore(path)))

	// Then: entries and order survive
	assert.Equal(t, ix.Entries(), reloaded.Entries())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_MalformedFileMovedAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	s := NewFileStore(path)

	entries, err := s.LoadAll(context.Background())

	assert.Empty(t, entries)
	assert.Equal(t, lerrors.ErrCodeStateCorrupt, lerrors.GetCode(err))
	_, statErr := os.Stat(path + ".corrupt")
	assert.NoError(t, statErr)

	// And: an index over the corrupt file starts empty and can save again
	ix := NewIndex(context.Background(), WithPersister(s))
	assert.Equal(t, 0, ix.Len())
	_, err = ix.Insert(context.Background(), "g", WebSearch("google", "Google"))
	require.NoError(t, err)
	loaded, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestFileStore_CanceledContext(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), DefaultFileName))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.OnChanged(ctx, nil), context.Canceled)
}
