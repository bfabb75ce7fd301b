package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsonify/vox/pkg/voxerr"
)

func TestWriteFileSafely(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, WriteFileSafely("hello transcript\n", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello transcript\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriteFileSafelyCreatesNestedDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "out.srt")
	require.NoError(t, WriteFileSafely("1\n", path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteFileSafelyReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, WriteFileSafely("new content", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))
}

func TestWriteFileSafelyLeavesNoStagingArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFileSafely("x", filepath.Join(dir, "out.txt")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".vox-write-"),
			"staging file %s survived", e.Name())
	}
}

func TestWriteFileSafelyEmptyPath(t *testing.T) {
	err := WriteFileSafely("content", "")
	require.Error(t, err)
	assert.Equal(t, voxerr.KindInvalidOutputPath, voxerr.KindOf(err))
}
