package extract

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/audio"
	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/tempfile"
	"github.com/jsonify/vox/pkg/voxerr"
)

// Output stream settings for the scratch file.
const (
	outputCodec   = "aac"
	outputBitRate = 128000
)

var progressTimePattern = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2}(?:\.\d+)?)`)

// FFmpegExtractor shells out to ffprobe/ffmpeg and parses the textual
// progress stream. It handles every supported container, at the cost of an
// external dependency.
type FFmpegExtractor struct {
	temps       *tempfile.Manager
	runner      CommandRunner
	ffmpegPath  string
	ffprobePath string
	logger      hclog.Logger
}

// NewFFmpegExtractor creates the subprocess backend with the production
// command runner. FFMPEG_PATH and FFPROBE_PATH override binary discovery.
func NewFFmpegExtractor(temps *tempfile.Manager, logger hclog.Logger) *FFmpegExtractor {
	return NewFFmpegExtractorWithRunner(temps, ExecRunner{}, logger)
}

// NewFFmpegExtractorWithRunner injects a command runner, used by tests.
func NewFFmpegExtractorWithRunner(temps *tempfile.Manager, runner CommandRunner, logger hclog.Logger) *FFmpegExtractor {
	ffmpegPath := "ffmpeg"
	if p := os.Getenv("FFMPEG_PATH"); p != "" {
		ffmpegPath = p
	}
	ffprobePath := "ffprobe"
	if p := os.Getenv("FFPROBE_PATH"); p != "" {
		ffprobePath = p
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FFmpegExtractor{
		temps:       temps,
		runner:      runner,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

func (e *FFmpegExtractor) Name() string { return "ffmpeg" }

// Available reports whether the ffmpeg binary resolves on this host.
func (e *FFmpegExtractor) Available() bool {
	_, err := exec.LookPath(e.ffmpegPath)
	return err == nil
}

// Extract probes the container, validates the decoded format, and
// transcodes the audio stream into an AAC scratch file while mapping
// ffmpeg's time= status lines onto fractional progress.
func (e *FFmpegExtractor) Extract(ctx context.Context, inputPath string, onProgress ProgressFunc) (*models.AudioFile, error) {
	if err := ValidateInput(inputPath); err != nil {
		return nil, err
	}

	emit(onProgress, models.PhaseInitializing, 0)

	probed, err := e.probe(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	format := models.AudioFormat{
		Codec:      outputCodec,
		SampleRate: probed.SampleRate,
		Channels:   probed.Channels,
		BitRate:    outputBitRate,
		Duration:   probed.Duration,
		FileSize:   probed.FileSize,
	}
	if verr := audio.Validate(format.Codec, format.SampleRate, format.Channels, format.BitRate); verr != nil {
		format.ValidationError = verr.Error()
		return nil, verr
	}
	format.IsValid = true

	tempPath, err := e.temps.CreateAudioFile()
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindAudioExtractionFailed, err, "allocating scratch file")
	}

	args := []string{
		"-i", inputPath,
		"-vn",
		"-acodec", outputCodec,
		"-b:a", strconv.Itoa(outputBitRate/1000) + "k",
		"-y", tempPath,
	}

	e.logger.Debug("running ffmpeg extraction", "input", inputPath, "scratch", tempPath)

	var lastLine string
	var lastProgress float64
	onLine := func(line string) {
		if line != "" {
			lastLine = line
		}
		if probed.Duration <= 0 {
			return
		}
		if secs, ok := parseProgressTime(line); ok {
			p := secs / probed.Duration
			if p > 1 {
				p = 1
			}
			if p > lastProgress {
				lastProgress = p
				emit(onProgress, models.PhaseExtracting, p)
			}
		}
	}

	if err := e.runner.RunWithProgress(ctx, onLine, e.ffmpegPath, args...); err != nil {
		return nil, voxerr.Wrap(voxerr.KindAudioExtractionFailed, err, "ffmpeg transcode failed").
			With("input", inputPath).With("detail", lastLine)
	}

	return &models.AudioFile{
		Path:          inputPath,
		Format:        format,
		TemporaryPath: tempPath,
	}, nil
}

// probedFormat carries raw ffprobe results before validation.
type probedFormat struct {
	Codec      string
	SampleRate int
	Channels   int
	BitRate    int
	Duration   float64
	FileSize   int64
}

// probe reads the first audio stream's properties and the container
// duration. An unreadable container and a container with no audio track are
// reported distinctly.
func (e *FFmpegExtractor) probe(ctx context.Context, inputPath string) (probedFormat, error) {
	var probed probedFormat

	streamOut, err := e.runner.Run(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,sample_rate,channels,bit_rate",
		"-of", "default=noprint_wrappers=1",
		inputPath,
	)
	if err != nil {
		return probed, voxerr.Wrap(voxerr.KindUnsupportedFormat, err,
			"container is unreadable: %s", inputPath).With("detail", strings.TrimSpace(string(streamOut)))
	}

	streamFields := parseProbeOutput(string(streamOut))
	if streamFields["codec_name"] == "" {
		return probed, voxerr.New(voxerr.KindAudioExtractionFailed,
			"no decodable audio track in %s", inputPath)
	}
	probed.Codec = streamFields["codec_name"]
	probed.SampleRate, _ = strconv.Atoi(streamFields["sample_rate"])
	probed.Channels, _ = strconv.Atoi(streamFields["channels"])
	probed.BitRate, _ = strconv.Atoi(streamFields["bit_rate"])

	formatOut, err := e.runner.Run(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration,bit_rate,size",
		"-of", "default=noprint_wrappers=1",
		inputPath,
	)
	if err != nil {
		return probed, voxerr.Wrap(voxerr.KindUnsupportedFormat, err,
			"container metadata is unreadable: %s", inputPath)
	}
	formatFields := parseProbeOutput(string(formatOut))
	probed.Duration, _ = strconv.ParseFloat(formatFields["duration"], 64)
	size, _ := strconv.ParseInt(formatFields["size"], 10, 64)
	probed.FileSize = size
	if probed.BitRate == 0 {
		probed.BitRate, _ = strconv.Atoi(formatFields["bit_rate"])
	}

	return probed, nil
}

// parseProbeOutput parses ffprobe's key=value lines. "N/A" values are
// dropped so numeric parsing falls back cleanly.
func parseProbeOutput(out string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok || value == "N/A" {
			continue
		}
		fields[key] = value
	}
	return fields
}

// parseProgressTime extracts the elapsed seconds from an ffmpeg status line.
func parseProgressTime(line string) (float64, bool) {
	m := progressTimePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.ParseFloat(m[3], 64)
	return float64(hours)*3600 + float64(minutes)*60 + seconds, true
}
