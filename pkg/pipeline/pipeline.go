// Package pipeline drives one media file end to end: extract audio,
// transcribe it, render and write the requested outputs. Phase progress maps
// onto a single [0,1] scale so consumers see one monotone bar instead of
// three independent ones.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/audio"
	"github.com/jsonify/vox/pkg/engine"
	"github.com/jsonify/vox/pkg/extract"
	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/output"
	"github.com/jsonify/vox/pkg/progress"
	"github.com/jsonify/vox/pkg/tempfile"
	"github.com/jsonify/vox/pkg/voxerr"
)

// Phase boundaries on the unified progress scale.
const (
	extractEnd    = 0.4
	transcribeEnd = 0.9
)

// Transcriber is the engine-selection layer the pipeline delegates to.
type Transcriber interface {
	Transcribe(ctx context.Context, file *models.AudioFile, onProgress engine.ProgressFunc) (*models.TranscriptionResult, error)
}

// ProgressSink receives progress snapshots. Sinks are observers only: a slow
// or absent sink never stalls or fails the run.
type ProgressSink func(models.TranscriptionProgress)

// Request describes one pipeline run.
type Request struct {
	InputPath  string
	OutputPath string          // base output path; the extension is replaced per format
	Formats    []output.Format // defaults to plain text when empty
	Language   string          // spoken-language hint handed to the engines; empty means auto-detect
	Options    output.Options
}

// Result is the outcome of a successful run.
type Result struct {
	Transcription *models.TranscriptionResult
	OutputPaths   map[output.Format]string
	Reports       map[output.Format]*output.ValidationReport
	Memory        models.MemoryUsage
	Elapsed       time.Duration
}

// Processor runs requests. One processor handles one run at a time; its
// scratch manager is swept at the end of every run, success or failure.
type Processor struct {
	extractors []extract.Extractor
	trans      Transcriber
	temps      *tempfile.Manager
	memory     *progress.MemoryMonitor
	logger     hclog.Logger
}

// NewProcessor assembles a pipeline. Extractors are tried in order; the
// first one that can handle the input wins. The memory monitor is optional.
func NewProcessor(extractors []extract.Extractor, trans Transcriber, temps *tempfile.Manager, memory *progress.MemoryMonitor, logger hclog.Logger) *Processor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Processor{
		extractors: extractors,
		trans:      trans,
		temps:      temps,
		memory:     memory,
		logger:     logger,
	}
}

// Process runs one request end to end. Scratch files are released on every
// exit path. Progress delivered to sink is monotone non-decreasing.
func (p *Processor) Process(ctx context.Context, req Request, sink ProgressSink) (*Result, error) {
	started := time.Now()
	defer p.temps.CleanupAll()

	formats := req.Formats
	if len(formats) == 0 {
		formats = []output.Format{output.FormatText}
	}

	emit := newMonotoneEmitter(sink, started)
	emit(models.PhaseInitializing, 0)

	audioFile, err := p.extractAudio(ctx, req.InputPath, emit)
	if err != nil {
		return nil, err
	}
	audioFile.Language = req.Language
	if rec, conf := audio.RecommendEngine(audioFile.Format); rec != models.EngineNone {
		p.logger.Debug("engine recommendation for extracted audio",
			"engine", rec, "confidence", conf)
	}
	emit(models.PhaseExtracting, extractEnd)

	result, err := p.trans.Transcribe(ctx, audioFile, func(fraction float64) {
		emit(models.PhaseTranscribing, extractEnd+fraction*(transcribeEnd-extractEnd))
	})
	if err != nil {
		return nil, err
	}
	emit(models.PhaseTranscribing, transcribeEnd)

	res := &Result{
		Transcription: result,
		OutputPaths:   make(map[output.Format]string, len(formats)),
		Reports:       make(map[output.Format]*output.ValidationReport, len(formats)),
	}

	for i, format := range formats {
		path := outputPathFor(req, format)
		if err := p.writeOutput(result, format, path, req.Options, res); err != nil {
			return nil, err
		}
		emit(models.PhaseFormatting,
			transcribeEnd+(float64(i+1)/float64(len(formats)))*(1-transcribeEnd))
	}

	if p.memory != nil {
		if usage, err := p.memory.CurrentUsage(); err == nil {
			res.Memory = usage
		}
	}

	res.Elapsed = time.Since(started)
	emit(models.PhaseComplete, 1)

	p.logger.Info("pipeline run complete",
		"input", req.InputPath,
		"engine", result.Engine,
		"segments", len(result.Segments),
		"formats", len(formats),
		"elapsed", res.Elapsed)
	return res, nil
}

// extractAudio walks the backend list. A backend that reports it cannot
// handle the input at all falls through to the next; a backend that tried
// and failed ends the run with its error.
func (p *Processor) extractAudio(ctx context.Context, inputPath string, emit emitFunc) (*models.AudioFile, error) {
	var lastUnavailable error
	for _, ex := range p.extractors {
		if !ex.Available() {
			continue
		}
		audioFile, err := ex.Extract(ctx, inputPath, func(phase models.Phase, fraction float64) {
			emit(phase, fraction*extractEnd)
		})
		if err == nil {
			p.logger.Debug("audio extracted", "backend", ex.Name(), "scratch", audioFile.TemporaryPath)
			return audioFile, nil
		}
		if errors.Is(err, extract.ErrBackendUnavailable) {
			lastUnavailable = err
			continue
		}
		return nil, err
	}
	if lastUnavailable != nil {
		return nil, voxerr.Wrap(voxerr.KindAudioExtractionFailed, lastUnavailable,
			"no extraction backend can handle %s", inputPath)
	}
	return nil, voxerr.New(voxerr.KindAudioExtractionFailed, "no extraction backend is available")
}

// writeOutput renders one format, writes it atomically and verifies the
// written file. A failed post-write validation is a write failure even
// though bytes landed on disk.
func (p *Processor) writeOutput(result *models.TranscriptionResult, format output.Format, path string, opts output.Options, res *Result) error {
	var content string
	var err error
	switch format {
	case output.FormatSRT:
		content = output.RenderSRT(result)
	case output.FormatVTT:
		content = output.RenderVTT(result)
	case output.FormatJSON:
		content, err = output.RenderJSON(result, opts)
		if err != nil {
			return voxerr.Wrap(voxerr.KindOutputWriteFailed, err, "rendering JSON output")
		}
	default:
		content = output.RenderText(result, opts)
	}

	if err := output.WriteFileSafely(content, path); err != nil {
		return err
	}

	report, err := output.ValidateOutput(path, format, validationText(result, format))
	if err != nil {
		return voxerr.Wrap(voxerr.KindOutputWriteFailed, err, "verifying written output %s", path)
	}
	if report.Overall == output.StatusFailed {
		return voxerr.New(voxerr.KindOutputWriteFailed,
			"written output failed validation: %s", path).With("format", format)
	}
	if report.Overall == output.StatusWarning {
		p.logger.Warn("output validation raised warnings", "path", path, "issues", len(report.Issues))
	}

	res.OutputPaths[format] = path
	res.Reports[format] = report
	return nil
}

// validationText picks the text the integrity check should look for in the
// written file. Structured formats interleave timing lines with the words,
// so only plain text is held to the full-transcript test.
func validationText(result *models.TranscriptionResult, format output.Format) string {
	if format == output.FormatText {
		return result.Text
	}
	return ""
}

// outputPathFor derives the concrete output path for a format from the
// request's base path, falling back to the input path's base name.
func outputPathFor(req Request, format output.Format) string {
	base := req.OutputPath
	if base == "" {
		base = req.InputPath
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + format.Extension()
}

// emitFunc delivers one progress point on the unified scale.
type emitFunc func(phase models.Phase, fraction float64)

// newMonotoneEmitter wraps the sink with a high-water mark so out-of-order
// backend callbacks can never move the bar backwards.
func newMonotoneEmitter(sink ProgressSink, started time.Time) emitFunc {
	var high float64
	return func(phase models.Phase, fraction float64) {
		if sink == nil {
			return
		}
		if fraction < high {
			fraction = high
		}
		if fraction > 1 {
			fraction = 1
		}
		high = fraction

		speed := 0.0
		if elapsed := time.Since(started).Seconds(); elapsed > 0 {
			speed = fraction / elapsed
		}
		sink(models.TranscriptionProgress{
			Progress:        fraction,
			Status:          string(phase),
			Phase:           phase,
			StartTime:       started,
			ProcessingSpeed: speed,
		})
	}
}
