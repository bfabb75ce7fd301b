package extract

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/audio"
	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/tempfile"
	"github.com/jsonify/vox/pkg/voxerr"
)

// copyChunkSize balances progress granularity against syscall overhead.
const copyChunkSize = 256 * 1024

// NativeExtractor decodes WAV containers in-process, with no external
// dependencies. Anything it cannot decode natively reports
// ErrBackendUnavailable so the pipeline can fall back to the subprocess
// backend.
type NativeExtractor struct {
	temps  *tempfile.Manager
	logger hclog.Logger
}

// NewNativeExtractor creates the in-process backend.
func NewNativeExtractor(temps *tempfile.Manager, logger hclog.Logger) *NativeExtractor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &NativeExtractor{temps: temps, logger: logger}
}

func (e *NativeExtractor) Name() string { return "native" }

// Available is always true: the decoder is compiled in.
func (e *NativeExtractor) Available() bool { return true }

// Extract validates the input, parses the RIFF header for format
// properties, and streams the audio into a fresh scratch file.
func (e *NativeExtractor) Extract(ctx context.Context, inputPath string, onProgress ProgressFunc) (*models.AudioFile, error) {
	if err := ValidateInput(inputPath); err != nil {
		return nil, err
	}
	if strings.ToLower(filepath.Ext(inputPath)) != ".wav" {
		return nil, fmt.Errorf("native decoder handles WAV only: %w", ErrBackendUnavailable)
	}

	emit(onProgress, models.PhaseInitializing, 0)

	src, err := os.Open(inputPath)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindInvalidInputFile, err, "opening input file %s", inputPath)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindInvalidInputFile, err, "inspecting input file %s", inputPath)
	}

	format, err := parseWAVHeader(src)
	if err != nil {
		return nil, err
	}
	format.FileSize = info.Size()

	if verr := audio.Validate(format.Codec, format.SampleRate, format.Channels, format.BitRate); verr != nil {
		format.ValidationError = verr.Error()
		return nil, verr
	}
	format.IsValid = true

	tempPath, err := e.temps.CreateFile(".wav")
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindAudioExtractionFailed, err, "allocating scratch file")
	}

	if err := e.copyAudio(ctx, src, tempPath, info.Size(), onProgress); err != nil {
		return nil, err
	}

	e.logger.Debug("native extraction complete", "input", inputPath, "scratch", tempPath,
		"sample_rate", format.SampleRate, "channels", format.Channels, "duration", format.Duration)

	return &models.AudioFile{
		Path:          inputPath,
		Format:        format,
		TemporaryPath: tempPath,
	}, nil
}

// copyAudio streams the source into the scratch file, reporting extraction
// progress per chunk. A partially written scratch file on error is left for
// the caller's resource manager to release.
func (e *NativeExtractor) copyAudio(ctx context.Context, src io.ReadSeeker, tempPath string, totalSize int64, onProgress ProgressFunc) error {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return voxerr.Wrap(voxerr.KindAudioExtractionFailed, err, "rewinding input")
	}

	dst, err := os.Create(tempPath)
	if err != nil {
		return voxerr.Wrap(voxerr.KindAudioExtractionFailed, err, "creating scratch file %s", tempPath)
	}
	defer dst.Close()

	buf := make([]byte, copyChunkSize)
	var copied int64
	for {
		if err := ctx.Err(); err != nil {
			return voxerr.Wrap(voxerr.KindAudioExtractionFailed, err, "extraction canceled")
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return voxerr.Wrap(voxerr.KindAudioExtractionFailed, werr, "writing scratch file %s", tempPath)
			}
			copied += int64(n)
			if totalSize > 0 {
				emit(onProgress, models.PhaseExtracting, float64(copied)/float64(totalSize))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return voxerr.Wrap(voxerr.KindAudioExtractionFailed, rerr, "reading input")
		}
	}
	return nil
}

// parseWAVHeader walks the RIFF chunk list and derives the audio format.
// A file that is not a RIFF/WAVE container is unreadable; a container with
// a format chunk but no audio data has no decodable track.
func parseWAVHeader(r io.ReadSeeker) (models.AudioFormat, error) {
	var format models.AudioFormat

	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return format, voxerr.New(voxerr.KindUnsupportedFormat, "file too short to be a WAV container")
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return format, voxerr.New(voxerr.KindUnsupportedFormat, "not a readable WAV container")
	}

	var (
		haveFmt  bool
		dataSize uint32
		byteRate uint32
	)

	chunk := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, chunk); err != nil {
			break // end of chunk list
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return format, voxerr.New(voxerr.KindUnsupportedFormat, "malformed WAV format chunk")
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return format, voxerr.New(voxerr.KindUnsupportedFormat, "truncated WAV format chunk")
			}
			format.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			byteRate = binary.LittleEndian.Uint32(body[8:12])
			format.BitRate = int(byteRate) * 8
			haveFmt = true
		case "data":
			dataSize = size
			if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
				break
			}
		default:
			if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
				break
			}
		}
		// Chunks are word-aligned; odd sizes carry a pad byte.
		if size%2 == 1 {
			if _, err := r.Seek(1, io.SeekCurrent); err != nil {
				break
			}
		}
	}

	if !haveFmt {
		return format, voxerr.New(voxerr.KindUnsupportedFormat, "WAV container missing format chunk")
	}
	if dataSize == 0 {
		return format, voxerr.New(voxerr.KindAudioExtractionFailed, "WAV container has no audio track")
	}

	format.Codec = "wav"
	if byteRate > 0 {
		format.Duration = float64(dataSize) / float64(byteRate)
	}
	return format, nil
}

// emit invokes the progress callback when one was supplied.
func emit(onProgress ProgressFunc, phase models.Phase, progress float64) {
	if onProgress != nil {
		onProgress(phase, progress)
	}
}
