package engine

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/voxerr"
)

// Recognizer is the seam between the local engine and the on-device speech
// model. Tests supply a double; production uses the whisper CLI.
type Recognizer interface {
	Available() bool
	Recognize(ctx context.Context, audioPath, language string) (*RecognizedSpeech, error)
}

// RecognizedSpeech is the raw recognizer output before canonicalization.
type RecognizedSpeech struct {
	Text     string
	Language string
	Segments []RecognizedSegment
}

// RecognizedSegment is one raw recognizer segment.
type RecognizedSegment struct {
	Text       string
	StartTime  float64
	EndTime    float64
	Confidence float64
}

// LocalEngine transcribes on-device through a Recognizer. It never touches
// the network, so it carries no credentials and no retry semantics.
type LocalEngine struct {
	rec      Recognizer
	language string
	logger   hclog.Logger
}

// NewLocalEngine wires a local engine to the given recognizer. The language
// hint is the engine default; a per-file hint takes precedence.
func NewLocalEngine(rec Recognizer, language string, logger hclog.Logger) *LocalEngine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &LocalEngine{rec: rec, language: language, logger: logger}
}

func (e *LocalEngine) Name() models.Engine { return models.EngineLocal }

// Available reports whether the underlying recognizer can run on this host.
func (e *LocalEngine) Available() bool { return e.rec.Available() }

// Transcribe runs the recognizer over the scratch audio and maps its output
// into the canonical result. Progress is coarse: recognizers report no
// intermediate state, so the engine emits start and completion only.
func (e *LocalEngine) Transcribe(ctx context.Context, file *models.AudioFile, onProgress ProgressFunc) (*models.TranscriptionResult, error) {
	started := time.Now()
	if onProgress != nil {
		onProgress(0)
	}

	speech, err := e.rec.Recognize(ctx, file.AudioPath(), languageHint(file, e.language))
	if err != nil {
		if voxerr.KindOf(err) != "" {
			return nil, err
		}
		return nil, voxerr.Wrap(voxerr.KindTranscriptionFailed, err, "local recognition failed").
			With("audio", file.AudioPath())
	}

	segments := make([]models.TranscriptionSegment, 0, len(speech.Segments))
	var confidenceSum float64
	for _, s := range speech.Segments {
		segments = append(segments, models.TranscriptionSegment{
			Text:       strings.TrimSpace(s.Text),
			StartTime:  s.StartTime,
			EndTime:    s.EndTime,
			Confidence: s.Confidence,
			Type:       models.SegmentSpeech,
		})
		confidenceSum += s.Confidence
	}

	confidence := 0.0
	if len(segments) > 0 {
		confidence = confidenceSum / float64(len(segments))
	}

	result := &models.TranscriptionResult{
		Text:           strings.TrimSpace(speech.Text),
		Language:       speech.Language,
		Confidence:     confidence,
		Duration:       file.Format.Duration,
		Segments:       segments,
		Engine:         models.EngineLocal,
		ProcessingTime: time.Since(started).Seconds(),
		AudioFormat:    file.Format,
	}
	canonicalize(result)

	if onProgress != nil {
		onProgress(1)
	}
	e.logger.Debug("local transcription complete",
		"segments", len(result.Segments), "confidence", result.Confidence)
	return result, nil
}

// WhisperCLI runs the whisper command-line recognizer as a subprocess and
// parses its JSON output file.
type WhisperCLI struct {
	binary string
	model  string
}

// NewWhisperCLI builds the production recognizer. WHISPER_PATH overrides
// binary discovery; WHISPER_MODEL overrides the default "base" model.
func NewWhisperCLI() *WhisperCLI {
	binary := "whisper"
	if p := os.Getenv("WHISPER_PATH"); p != "" {
		binary = p
	}
	model := "base"
	if m := os.Getenv("WHISPER_MODEL"); m != "" {
		model = m
	}
	return &WhisperCLI{binary: binary, model: model}
}

// Available reports whether the whisper binary resolves on this host.
func (w *WhisperCLI) Available() bool {
	_, err := exec.LookPath(w.binary)
	return err == nil
}

// whisperDocument mirrors the CLI's JSON output file.
type whisperDocument struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Recognize invokes the CLI, pointing its output at a private directory so
// concurrent recognitions never clobber each other's JSON.
func (w *WhisperCLI) Recognize(ctx context.Context, audioPath, language string) (*RecognizedSpeech, error) {
	outDir, err := os.MkdirTemp("", "vox_whisper_")
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindTranscriptionFailed, err, "allocating recognizer output directory")
	}
	defer os.RemoveAll(outDir)

	args := []string{
		audioPath,
		"--model", w.model,
		"--output_format", "json",
		"--output_dir", outDir,
	}
	if language != "" {
		args = append(args, "--language", language)
	}

	out, err := exec.CommandContext(ctx, w.binary, args...).CombinedOutput()
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindTranscriptionFailed, err, "whisper invocation failed").
			With("detail", lastNonEmptyLine(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindTranscriptionFailed, err, "reading whisper output")
	}

	var doc whisperDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, voxerr.Wrap(voxerr.KindTranscriptionFailed, err, "parsing whisper output")
	}

	speech := &RecognizedSpeech{Text: doc.Text, Language: doc.Language}
	for _, s := range doc.Segments {
		speech.Segments = append(speech.Segments, RecognizedSegment{
			Text:       s.Text,
			StartTime:  s.Start,
			EndTime:    s.End,
			Confidence: math.Exp(s.AvgLogprob),
		})
	}
	return speech, nil
}

// lastNonEmptyLine pulls the most informative line from subprocess output
// for error context.
func lastNonEmptyLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
