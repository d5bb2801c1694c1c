package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLocalArtifactStore_SaveAndList(t *testing.T) {
	store := NewLocalArtifactStore(t.TempDir())

	src := writeTempFile(t, "payload bytes")
	ref, err := store.Save(src, "task1", "video.mp4")
	require.NoError(t, err)
	assert.Equal(t, "/files/task1/video.mp4", ref)

	data, err := os.ReadFile(filepath.Join(store.Root(), "task1", "video.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "payload bytes", string(data))

	names, err := store.List("task1")
	require.NoError(t, err)
	assert.Equal(t, []string{"video.mp4"}, names)
}

func TestLocalArtifactStore_DeleteNamespace(t *testing.T) {
	store := NewLocalArtifactStore(t.TempDir())

	src := writeTempFile(t, "x")
	_, err := store.Save(src, "task1", "a.bin")
	require.NoError(t, err)
	_, err = store.Save(src, "task2", "b.bin")
	require.NoError(t, err)

	require.NoError(t, store.DeleteNamespace("task1"))

	names, err := store.List("task1")
	require.NoError(t, err)
	assert.Empty(t, names)

	ids, err := store.ListNamespaces()
	require.NoError(t, err)
	assert.Equal(t, []string{"task2"}, ids)
}

func TestLocalArtifactStore_RejectsTraversal(t *testing.T) {
	store := NewLocalArtifactStore(t.TempDir())
	src := writeTempFile(t, "x")

	_, err := store.Save(src, "../escape", "a.bin")
	assert.Error(t, err)

	_, err = store.Save(src, "task1", "../../etc/passwd")
	assert.Error(t, err)

	assert.Error(t, store.DeleteNamespace(".."))
}

func TestLocalArtifactStore_ListMissingNamespace(t *testing.T) {
	store := NewLocalArtifactStore(t.TempDir())

	names, err := store.List("absent")
	require.NoError(t, err)
	assert.Empty(t, names)
}
