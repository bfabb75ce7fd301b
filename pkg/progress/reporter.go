// Package progress provides the observability layer: per-run transcription
// progress accounting and process memory sampling. Consumers are passive;
// nothing here alters pipeline control flow.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jsonify/vox/pkg/models"
)

// Reporter accumulates per-segment transcription progress for one pipeline
// run. Safe for concurrent updates from pooled segment workers.
type Reporter struct {
	mu sync.Mutex

	totalAudioDuration float64
	startTime          time.Time

	segmentIndex  int
	totalSegments int
	currentText   string
	cumulative    strings.Builder
	confidenceSum float64

	stats models.ProcessingStats
}

// NewReporter creates a reporter for a run over the given audio duration.
func NewReporter(totalAudioDuration float64) *Reporter {
	return &Reporter{
		totalAudioDuration: totalAudioDuration,
		startTime:          time.Now(),
	}
}

// UpdateProgress records a completed segment and recomputes the rolling
// stats. Word counting collapses whitespace runs so repeated spaces never
// inflate the count.
func (r *Reporter) UpdateProgress(segmentIndex, totalSegments int, segmentText string, segmentConfidence, audioProcessed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.segmentIndex = segmentIndex
	r.totalSegments = totalSegments
	r.currentText = segmentText

	if r.cumulative.Len() > 0 {
		r.cumulative.WriteString(" ")
	}
	r.cumulative.WriteString(segmentText)
	r.confidenceSum += segmentConfidence

	processed := segmentIndex + 1
	remaining := r.totalAudioDuration - audioProcessed
	if remaining < 0 {
		remaining = 0
	}

	rate := 0.0
	if elapsed := time.Since(r.startTime).Seconds(); elapsed > 0 {
		rate = audioProcessed / elapsed
	}

	r.stats = models.ProcessingStats{
		SegmentsProcessed: processed,
		WordsProcessed:    models.CountWords(r.cumulative.String()),
		AverageConfidence: r.confidenceSum / float64(processed),
		ProcessingRate:    rate,
		AudioProcessed:    audioProcessed,
		AudioRemaining:    remaining,
	}
}

// Stats returns a copy of the current rolling stats.
func (r *Reporter) Stats() models.ProcessingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Report derives the current progress snapshot. Progress is the fraction of
// segments completed, zero when nothing is scheduled yet; the phase reports
// in-flight work until every segment lands.
func (r *Reporter) Report() models.TranscriptionProgress {
	r.mu.Lock()
	defer r.mu.Unlock()

	progress := 0.0
	if r.totalSegments > 0 {
		progress = float64(r.segmentIndex) / float64(r.totalSegments)
	}

	phase := models.PhaseExtracting
	if r.totalSegments > 0 && r.stats.SegmentsProcessed >= r.totalSegments {
		phase = models.PhaseComplete
	}

	speed := 0.0
	if elapsed := time.Since(r.startTime).Seconds(); elapsed > 0 {
		speed = progress / elapsed
	}

	return models.TranscriptionProgress{
		Progress:        progress,
		Status:          fmt.Sprintf("segment %d of %d", r.stats.SegmentsProcessed, r.totalSegments),
		Phase:           phase,
		StartTime:       r.startTime,
		ProcessingSpeed: speed,
	}
}
