package extract

import (
	"bufio"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsonify/vox/pkg/voxerr"
)

func TestValidateInputOrdering(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "talk.mp3")
	require.NoError(t, os.WriteFile(media, []byte("x"), 0o644))

	tests := []struct {
		name     string
		path     string
		wantKind voxerr.Kind
		wantMsg  string
	}{
		{"empty path", "", voxerr.KindInvalidInputFile, "input path is empty: file does not exist"},
		{"missing file", filepath.Join(dir, "gone.mp3"), voxerr.KindInvalidInputFile, "input file does not exist"},
		{"directory", dir, voxerr.KindInvalidInputFile, "input path is a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, voxerr.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("unsupported extension", func(t *testing.T) {
		doc := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(doc, []byte("x"), 0o644))
		err := ValidateInput(doc)
		require.Error(t, err)
		assert.Equal(t, voxerr.KindUnsupportedFormat, voxerr.KindOf(err))
		assert.Contains(t, err.Error(), `unsupported container ".txt"`)
	})

	t.Run("supported file passes", func(t *testing.T) {
		assert.NoError(t, ValidateInput(media))
	})
}

func TestScanStatusLinesSplitsCarriageReturns(t *testing.T) {
	input := "frame=1 time=00:00:01.00\rframe=2 time=00:00:02.00\nsize=done"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanStatusLines)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Equal(t, []string{
		"frame=1 time=00:00:01.00",
		"frame=2 time=00:00:02.00",
		"size=done",
	}, lines)
}

// writeWAV builds a minimal RIFF/WAVE file: 16 kHz mono 16-bit PCM with
// dataSeconds seconds of silence.
func writeWAV(t *testing.T, path string, dataSeconds int) {
	t.Helper()

	const (
		channels   = 1
		sampleRate = 16000
		byteRate   = sampleRate * channels * 2
	)
	dataSize := byteRate * dataSeconds
	data := make([]byte, dataSize)

	var buf []byte
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataSize))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, channels)
	buf = binary.LittleEndian.AppendUint32(buf, sampleRate)
	buf = binary.LittleEndian.AppendUint32(buf, byteRate)
	buf = binary.LittleEndian.AppendUint16(buf, 2)  // block align
	buf = binary.LittleEndian.AppendUint16(buf, 16) // bits per sample
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataSize))
	buf = append(buf, data...)

	require.NoError(t, os.WriteFile(path, buf, 0o644))
}
