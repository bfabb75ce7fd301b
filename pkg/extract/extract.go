// Package extract turns an input media file into a validated audio scratch
// file. Two backends implement the same contract; neither retries or chains
// to the other, and neither cleans up its scratch file on failure. The
// caller owns release through the tempfile manager regardless of outcome.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/voxerr"
)

// ErrBackendUnavailable signals that this backend cannot handle the input at
// all (as opposed to having tried and failed); the caller may fall back to
// another backend.
var ErrBackendUnavailable = errors.New("extraction backend unavailable")

// ProgressFunc receives phase and fractional progress updates. Progress is
// non-decreasing within one extraction; the final value may be short of 1.0
// when the backend finishes before a last update fires.
type ProgressFunc func(phase models.Phase, progress float64)

// Extractor is the capability contract shared by all extraction backends.
type Extractor interface {
	Name() string
	Available() bool
	Extract(ctx context.Context, inputPath string, onProgress ProgressFunc) (*models.AudioFile, error)
}

// supportedExtensions is the container allow-list shared by every backend.
var supportedExtensions = map[string]bool{
	".mp3":  true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".m4a":  true,
	".wav":  true,
	".webm": true,
	".flac": true,
	".aac":  true,
	".mov":  true,
}

// SupportedExtensions returns the sorted container allow-list.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for e := range supportedExtensions {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}

// ValidateInput runs the ordered pre-flight checks every backend applies
// before doing any work: existence, file type, then container extension.
// Short-circuits on the first failure.
func ValidateInput(path string) error {
	if path == "" {
		return voxerr.New(voxerr.KindInvalidInputFile, "input path is empty: file does not exist")
	}
	info, err := os.Stat(path)
	if err != nil {
		return voxerr.New(voxerr.KindInvalidInputFile, "input file does not exist: %s", path)
	}
	if info.IsDir() {
		return voxerr.New(voxerr.KindInvalidInputFile, "input path is a directory, not a media file: %s", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return voxerr.New(voxerr.KindUnsupportedFormat,
			"unsupported container %q, expected one of %s", ext, strings.Join(SupportedExtensions(), " "))
	}
	return nil
}

// CommandRunner abstracts subprocess execution so backends can be exercised
// without ffmpeg on the test machine.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	RunWithProgress(ctx context.Context, onLine func(string), name string, args ...string) error
}

// ExecRunner is the production CommandRunner backed by os/exec.
type ExecRunner struct{}

// Run executes the command and returns its combined output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// RunWithProgress executes the command, streaming stderr lines to onLine as
// they arrive. ffmpeg emits carriage-return separated status lines, so the
// scanner splits on both \r and \n.
func (ExecRunner) RunWithProgress(ctx context.Context, onLine func(string), name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(stderr)
	scanner.Split(scanStatusLines)
	for scanner.Scan() {
		onLine(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// scanStatusLines splits on \n or \r so ffmpeg's in-place progress updates
// surface as individual lines.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
