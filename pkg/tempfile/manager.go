// Package tempfile tracks scratch audio files so every pipeline exit path
// can release them. Each processor owns one manager; sweeping the registry
// at the end of a run releases everything that run allocated.
package tempfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const filePrefix = "vox_audio_"

// Manager allocates unique scratch-file paths and guarantees their removal.
// All registry mutations are serialized by a single mutex.
type Manager struct {
	mu      sync.Mutex
	dir     string
	tracked map[string]struct{}
	logger  hclog.Logger
}

// NewManager creates a manager writing scratch files under dir. An empty dir
// falls back to the system temp directory.
func NewManager(dir string, logger hclog.Logger) *Manager {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Manager{
		dir:     dir,
		tracked: make(map[string]struct{}),
		logger:  logger,
	}
}

// CreateAudioFile reserves a unique .m4a scratch path and registers it.
// Uniqueness comes from a process-wide random UUID, so concurrent callers
// and independent processor instances never collide.
func (m *Manager) CreateAudioFile() (string, error) {
	return m.CreateFile(".m4a")
}

// CreateFile reserves a unique scratch path with the given extension.
func (m *Manager) CreateFile(ext string) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch directory %s: %w", m.dir, err)
	}
	path := filepath.Join(m.dir, filePrefix+uuid.New().String()+ext)

	m.mu.Lock()
	m.tracked[path] = struct{}{}
	m.mu.Unlock()

	return path, nil
}

// Register adds an externally-created path to the tracked set. Idempotent.
func (m *Manager) Register(path string) {
	m.mu.Lock()
	m.tracked[path] = struct{}{}
	m.mu.Unlock()
}

// Cleanup removes the file and drops it from the registry. A file that is
// already gone counts as success; only a real removal failure returns false.
func (m *Manager) Cleanup(path string) bool {
	m.mu.Lock()
	delete(m.tracked, path)
	m.mu.Unlock()

	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		m.logger.Warn("failed to remove scratch file", "path", path, "error", err)
		return false
	}
	return true
}

// CleanupFiles removes the given paths best-effort and returns the subset
// that failed to delete. Never returns an error.
func (m *Manager) CleanupFiles(paths []string) []string {
	var failed []string
	for _, p := range paths {
		if !m.Cleanup(p) {
			failed = append(failed, p)
		}
	}
	return failed
}

// CleanupAll sweeps the entire registry, tolerating files removed
// out-of-band. Returns the paths that could not be deleted.
func (m *Manager) CleanupAll() []string {
	m.mu.Lock()
	paths := make([]string, 0, len(m.tracked))
	for p := range m.tracked {
		paths = append(paths, p)
	}
	m.mu.Unlock()

	failed := m.CleanupFiles(paths)
	if len(paths) > 0 {
		m.logger.Debug("swept scratch registry", "removed", len(paths)-len(failed), "failed", len(failed))
	}
	return failed
}

// TrackedCount reports how many paths are currently registered.
func (m *Manager) TrackedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracked)
}
