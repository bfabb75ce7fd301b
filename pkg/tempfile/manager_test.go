package tempfile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFileTracksUniquePaths(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	const n = 20
	paths := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := m.CreateAudioFile()
			assert.NoError(t, err)
			paths <- p
		}()
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool)
	for p := range paths {
		assert.False(t, seen[p], "duplicate scratch path %s", p)
		seen[p] = true
		assert.Equal(t, ".m4a", filepath.Ext(p))
	}
	assert.Equal(t, n, m.TrackedCount())
}

func TestCleanupRemovesFileAndRegistryEntry(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	path, err := m.CreateFile(".wav")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))

	assert.True(t, m.Cleanup(path))
	assert.Equal(t, 0, m.TrackedCount())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanupToleratesMissingFile(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	path, err := m.CreateAudioFile()
	require.NoError(t, err)
	// Never materialized on disk; cleanup still succeeds.
	assert.True(t, m.Cleanup(path))
}

func TestCleanupAllSweepsEverything(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, nil)

	for i := 0; i < 5; i++ {
		path, err := m.CreateAudioFile()
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	// One file deleted out-of-band before the sweep.
	all, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	require.NoError(t, os.Remove(filepath.Join(dir, all[0].Name())))

	failed := m.CleanupAll()
	assert.Empty(t, failed)
	assert.Equal(t, 0, m.TrackedCount())

	remaining, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRegisterIsIdempotent(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	m.Register("/tmp/external.m4a")
	m.Register("/tmp/external.m4a")
	assert.Equal(t, 1, m.TrackedCount())
}
