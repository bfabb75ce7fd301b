// Package engine hosts the speech-to-text backends. Every backend maps its
// provider's response into the same canonical result shape; selection,
// fallback and retry live one layer up.
package engine

import (
	"context"
	"sort"

	"github.com/jsonify/vox/pkg/models"
)

// ProgressFunc receives fractional transcription progress in [0,1].
type ProgressFunc func(progress float64)

// Engine is the contract every speech backend implements. Transcribe blocks
// until the provider answers; cancellation flows through the context.
type Engine interface {
	Name() models.Engine
	Available() bool
	Transcribe(ctx context.Context, file *models.AudioFile, onProgress ProgressFunc) (*models.TranscriptionResult, error)
}

// languageHint resolves the effective language for one file: the per-run
// hint carried on the audio wins over the engine's configured default.
func languageHint(file *models.AudioFile, configured string) string {
	if file.Language != "" {
		return file.Language
	}
	return configured
}

// canonicalize normalizes a provider result in place: segments sorted by
// start time, times non-negative with end never before start, confidences
// clamped to [0,1]. Providers occasionally emit slightly negative timestamps
// or confidences above one; those never escape this package.
func canonicalize(result *models.TranscriptionResult) {
	sort.SliceStable(result.Segments, func(i, j int) bool {
		return result.Segments[i].StartTime < result.Segments[j].StartTime
	})
	for i := range result.Segments {
		s := &result.Segments[i]
		if s.StartTime < 0 {
			s.StartTime = 0
		}
		if s.EndTime < s.StartTime {
			s.EndTime = s.StartTime
		}
		s.Confidence = clampConfidence(s.Confidence)
		if s.Type == "" {
			s.Type = models.SegmentSpeech
		}
		for j := range s.Words {
			w := &s.Words[j]
			if w.StartTime < 0 {
				w.StartTime = 0
			}
			if w.EndTime < w.StartTime {
				w.EndTime = w.StartTime
			}
			w.Confidence = clampConfidence(w.Confidence)
		}
	}
	result.Confidence = clampConfidence(result.Confidence)
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
