package gallery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePackage(t *testing.T, root, name, metadata string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(metadata), 0o644))
}

func TestManager_ScanAndCycle(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "a_first", `{"id": "first"}`)
	writePackage(t, root, "b_second", `{"id": "second"}`)

	m := NewManager(root)
	count, err := m.Scan()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, "first", m.Current().ID)
	assert.Equal(t, "second", m.Next().ID)
	assert.Equal(t, "first", m.Next().ID, "Next wraps around")
}

func TestManager_SkipsBrokenPackages(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "good", `{"id": "good"}`)
	writePackage(t, root, "broken", `{{{`)
	// A directory without metadata.json is not a package.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0o755))

	m := NewManager(root)
	count, err := m.Scan()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "good", m.Current().ID)
}

func TestManager_EmptyGallery(t *testing.T) {
	m := NewManager(t.TempDir())
	count, err := m.Scan()
	assert.ErrorIs(t, err, ErrEmptyGallery)
	assert.Zero(t, count)
	assert.Nil(t, m.Current())
	assert.Nil(t, m.Next())
}

func TestManager_RescanPreservesCurrentImage(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "a", `{"id": "a"}`)
	writePackage(t, root, "b", `{"id": "b"}`)

	m := NewManager(root)
	_, err := m.Scan()
	require.NoError(t, err)
	m.Next()
	require.Equal(t, "b", m.Current().ID)

	writePackage(t, root, "c", `{"id": "c"}`)
	_, err = m.Scan()
	require.NoError(t, err)
	assert.Equal(t, "b", m.Current().ID, "rescan must not yank the displayed image")
}

func TestManager_AudioPath(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "pkg", `{"id": "pkg"}`)
	audioDir := filepath.Join(root, "pkg", "audio")
	require.NoError(t, os.MkdirAll(audioDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "amb.wav"), []byte("riff"), 0o644))

	m := NewManager(root)
	_, err := m.Scan()
	require.NoError(t, err)

	path, ok := m.AudioPath("audio/amb.wav")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "pkg", "audio", "amb.wav"), path)

	_, ok = m.AudioPath("audio/missing.wav")
	assert.False(t, ok, "missing asset must degrade to silence")
}
