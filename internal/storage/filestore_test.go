package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("notes.md", "# Notes\nhello"))
	assert.True(t, store.Exists("notes.md"))

	content, err := store.Load("notes.md")
	require.NoError(t, err)
	assert.Equal(t, "# Notes\nhello", content)

	require.NoError(t, store.Save("notes.md", "updated"))
	content, err = store.Load("notes.md")
	require.NoError(t, err)
	assert.Equal(t, "updated", content)

	require.NoError(t, store.Delete("notes.md"))
	assert.False(t, store.Exists("notes.md"))

	// Deleting a missing file is not an error.
	require.NoError(t, store.Delete("notes.md"))
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.md", "a/b.md", ".hidden"} {
		assert.Error(t, store.Save(name, "x"), "filename %q must be rejected", name)
		_, loadErr := store.Load(name)
		assert.Error(t, loadErr)
		assert.False(t, store.Exists(name))
	}
}

func TestFileStoreList(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("b.md", "b"))
	require.NoError(t, store.Save("a.md", "a"))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, names)
}
