package output

import (
	"os"
	"path/filepath"

	"github.com/jsonify/vox/pkg/voxerr"
)

// WriteFileSafely persists content at path via a temp-file-then-rename
// sequence. A crash mid-write never leaves a partially written target, and
// no temp artifact survives either outcome. Intermediate directories are
// created as needed.
func WriteFileSafely(content, path string) error {
	if path == "" {
		return voxerr.New(voxerr.KindInvalidOutputPath, "output path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return voxerr.Wrap(voxerr.KindOutputWriteFailed, err, "creating output directory").With("dir", dir)
	}

	// The temp file lives in the target directory so the final rename stays
	// on one filesystem and is atomic.
	tmp, err := os.CreateTemp(dir, ".vox-write-*")
	if err != nil {
		return voxerr.Wrap(voxerr.KindOutputWriteFailed, err, "creating staging file").With("dir", dir)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return voxerr.Wrap(voxerr.KindOutputWriteFailed, err, "writing staging file").With("path", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return voxerr.Wrap(voxerr.KindOutputWriteFailed, err, "closing staging file").With("path", path)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return voxerr.Wrap(voxerr.KindOutputWriteFailed, err, "setting output permissions").With("path", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return voxerr.Wrap(voxerr.KindOutputWriteFailed, err, "replacing output file").With("path", path)
	}
	return nil
}
