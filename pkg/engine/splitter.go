package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/extract"
	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/tempfile"
	"github.com/jsonify/vox/pkg/voxerr"
)

// Segmentation defaults. Ten-minute chunks keep uploads under provider
// payload limits while leaving enough context for coherent recognition.
const (
	DefaultSegmentDuration = 600 // seconds per chunk
	DefaultConcurrency     = 3   // chunks in flight at once
)

// Chunk is one time-bounded slice of the source audio.
type Chunk struct {
	Index int
	Path  string
	Start float64
	End   float64
}

// Splitter cuts long audio into chunks with ffmpeg stream copy. Chunk files
// are registered with the scratch manager, so pipeline cleanup sweeps them
// with everything else.
type Splitter struct {
	segmentDuration int
	temps           *tempfile.Manager
	runner          extract.CommandRunner
	ffmpegPath      string
	logger          hclog.Logger
}

// NewSplitter builds a splitter. A non-positive segmentDuration falls back
// to the default.
func NewSplitter(segmentDuration int, temps *tempfile.Manager, runner extract.CommandRunner, logger hclog.Logger) *Splitter {
	if segmentDuration <= 0 {
		segmentDuration = DefaultSegmentDuration
	}
	if runner == nil {
		runner = extract.ExecRunner{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Splitter{
		segmentDuration: segmentDuration,
		temps:           temps,
		runner:          runner,
		ffmpegPath:      "ffmpeg",
		logger:          logger,
	}
}

// Split cuts the audio into sequential chunks. Audio at or under one segment
// duration comes back as a single chunk pointing at the original file, with
// no copy made.
func (s *Splitter) Split(ctx context.Context, audioPath string, duration float64) ([]Chunk, error) {
	if duration <= float64(s.segmentDuration) {
		return []Chunk{{Index: 0, Path: audioPath, Start: 0, End: duration}}, nil
	}

	count := int(duration)/s.segmentDuration + 1
	s.logger.Debug("splitting audio for chunked transcription",
		"duration", duration, "chunks", count)

	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i * s.segmentDuration)
		end := start + float64(s.segmentDuration)
		if end > duration {
			end = duration
		}
		if end <= start {
			break
		}

		chunkPath, err := s.temps.CreateFile(".m4a")
		if err != nil {
			return nil, voxerr.Wrap(voxerr.KindAudioExtractionFailed, err, "allocating chunk file")
		}

		// Stream copy avoids a re-encode; cut points land on the nearest
		// keyframe, which is close enough for speech.
		out, err := s.runner.Run(ctx, s.ffmpegPath,
			"-i", audioPath,
			"-ss", fmt.Sprintf("%.2f", start),
			"-t", fmt.Sprintf("%.2f", float64(s.segmentDuration)),
			"-acodec", "copy",
			"-y", chunkPath,
		)
		if err != nil {
			return nil, voxerr.Wrap(voxerr.KindAudioExtractionFailed, err,
				"cutting chunk %d failed", i).With("detail", lastNonEmptyLine(string(out)))
		}

		chunks = append(chunks, Chunk{Index: i, Path: chunkPath, Start: start, End: end})
	}
	return chunks, nil
}

// ChunkedEngine decorates a cloud engine with long-input segmentation: audio
// over one segment duration is split, transcribed concurrently, and merged
// back with chunk-offset timestamps.
type ChunkedEngine struct {
	inner       Engine
	splitter    *Splitter
	concurrency int
	logger      hclog.Logger
}

// NewChunkedEngine wraps inner with segmentation. Non-positive concurrency
// falls back to the default.
func NewChunkedEngine(inner Engine, splitter *Splitter, concurrency int, logger hclog.Logger) *ChunkedEngine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ChunkedEngine{inner: inner, splitter: splitter, concurrency: concurrency, logger: logger}
}

func (e *ChunkedEngine) Name() models.Engine { return e.inner.Name() }
func (e *ChunkedEngine) Available() bool     { return e.inner.Available() }

// chunkResult carries one chunk's outcome over the collection channel.
type chunkResult struct {
	index  int
	result *models.TranscriptionResult
	err    error
}

// Transcribe splits, fans out over a bounded worker pool, and merges. Short
// audio passes straight through to the inner engine.
func (e *ChunkedEngine) Transcribe(ctx context.Context, file *models.AudioFile, onProgress ProgressFunc) (*models.TranscriptionResult, error) {
	chunks, err := e.splitter.Split(ctx, file.AudioPath(), file.Format.Duration)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 1 && chunks[0].Path == file.AudioPath() {
		return e.inner.Transcribe(ctx, file, onProgress)
	}

	started := time.Now()
	total := len(chunks)
	taskCh := make(chan Chunk, total)
	resultCh := make(chan chunkResult, total)

	var wg sync.WaitGroup
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range taskCh {
				if ctx.Err() != nil {
					resultCh <- chunkResult{index: chunk.Index, err: ctx.Err()}
					continue
				}
				chunkFile := &models.AudioFile{
					Path:          file.Path,
					Format:        file.Format,
					TemporaryPath: chunk.Path,
					Language:      file.Language,
				}
				chunkFile.Format.Duration = chunk.End - chunk.Start
				res, err := e.inner.Transcribe(ctx, chunkFile, nil)
				resultCh <- chunkResult{index: chunk.Index, result: res, err: err}
			}
		}()
	}

	for _, c := range chunks {
		taskCh <- c
	}
	close(taskCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make(map[int]*models.TranscriptionResult, total)
	var firstErr error
	completed := 0
	for r := range resultCh {
		completed++
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		results[r.index] = r.result
		if onProgress != nil {
			onProgress(float64(completed) / float64(total))
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	merged := mergeChunks(chunks, results, file)
	merged.ProcessingTime = time.Since(started).Seconds()
	canonicalize(merged)

	e.logger.Debug("chunked transcription merged",
		"chunks", total, "segments", len(merged.Segments))
	return merged, nil
}

// mergeChunks stitches per-chunk results into one timeline. Segment and word
// timestamps shift by the chunk's start offset; confidence is the
// duration-weighted blend of the chunk confidences.
func mergeChunks(chunks []Chunk, results map[int]*models.TranscriptionResult, file *models.AudioFile) *models.TranscriptionResult {
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	merged := &models.TranscriptionResult{
		Engine:      models.EngineNone,
		Duration:    file.Format.Duration,
		AudioFormat: file.Format,
	}

	var parts []string
	var weightedConfidence, totalWeight float64
	for _, c := range chunks {
		res, ok := results[c.Index]
		if !ok {
			continue
		}
		if merged.Engine == models.EngineNone {
			merged.Engine = res.Engine
			merged.Language = res.Language
		}
		if text := strings.TrimSpace(res.Text); text != "" {
			parts = append(parts, text)
		}

		weight := c.End - c.Start
		weightedConfidence += res.Confidence * weight
		totalWeight += weight

		for _, seg := range res.Segments {
			seg.StartTime += c.Start
			seg.EndTime += c.Start
			for i := range seg.Words {
				seg.Words[i].StartTime += c.Start
				seg.Words[i].EndTime += c.Start
			}
			merged.Segments = append(merged.Segments, seg)
		}
	}

	merged.Text = strings.Join(parts, " ")
	if totalWeight > 0 {
		merged.Confidence = weightedConfidence / totalWeight
	}
	return merged
}
