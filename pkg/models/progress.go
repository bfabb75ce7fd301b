package models

import (
	"strings"
	"time"
)

// Phase names a pipeline stage for progress reporting.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseExtracting   Phase = "extracting"
	PhaseTranscribing Phase = "transcribing"
	PhaseFormatting   Phase = "formatting"
	PhaseComplete     Phase = "complete"
)

// TranscriptionProgress is a point-in-time snapshot delivered to progress
// sinks. Progress is non-decreasing within one pipeline run; that is a
// contract kept by the producers, not enforced here.
type TranscriptionProgress struct {
	Progress        float64   `json:"progress"` // [0,1]
	Status          string    `json:"status"`
	Phase           Phase     `json:"phase"`
	StartTime       time.Time `json:"start_time"`
	ProcessingSpeed float64   `json:"processing_speed,omitempty"` // progress units per second
}

// ElapsedTime returns seconds since the run started.
func (p TranscriptionProgress) ElapsedTime() float64 {
	return time.Since(p.StartTime).Seconds()
}

// EstimatedTimeRemaining derives an ETA from the processing speed.
// Returns 0 when no speed estimate is available.
func (p TranscriptionProgress) EstimatedTimeRemaining() float64 {
	if p.ProcessingSpeed <= 0 {
		return 0
	}
	remaining := (1.0 - p.Progress) / p.ProcessingSpeed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MemoryUsage is a sample of process and system memory.
type MemoryUsage struct {
	CurrentBytes   uint64 `json:"current_bytes"`
	PeakBytes      uint64 `json:"peak_bytes"` // never below CurrentBytes
	AvailableBytes uint64 `json:"available_bytes"`
	TotalBytes     uint64 `json:"total_bytes"`
}

// CurrentMB returns resident memory in megabytes.
func (m MemoryUsage) CurrentMB() float64 { return float64(m.CurrentBytes) / (1024 * 1024) }

// PeakMB returns the high-water mark in megabytes.
func (m MemoryUsage) PeakMB() float64 { return float64(m.PeakBytes) / (1024 * 1024) }

// AvailableMB returns available system memory in megabytes.
func (m MemoryUsage) AvailableMB() float64 { return float64(m.AvailableBytes) / (1024 * 1024) }

// UsagePercentage returns current usage as a share of total system memory,
// clamped to [0,100].
func (m MemoryUsage) UsagePercentage() float64 {
	if m.TotalBytes == 0 {
		return 0
	}
	pct := float64(m.CurrentBytes) / float64(m.TotalBytes) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ProcessingStats is the rolling transcription throughput view.
type ProcessingStats struct {
	SegmentsProcessed int     `json:"segments_processed"`
	WordsProcessed    int     `json:"words_processed"`
	AverageConfidence float64 `json:"average_confidence"`
	ProcessingRate    float64 `json:"processing_rate"` // multiples of real time
	AudioProcessed    float64 `json:"audio_processed"` // seconds
	AudioRemaining    float64 `json:"audio_remaining"` // seconds, clamped >= 0
}

// EstimatedCompletion returns the projected seconds until the remaining
// audio is processed, or 0 when the rate is unknown.
func (s ProcessingStats) EstimatedCompletion() float64 {
	if s.ProcessingRate <= 0 {
		return 0
	}
	return s.AudioRemaining / s.ProcessingRate
}

// CountWords counts whitespace-delimited words. Runs of whitespace collapse
// so repeated spaces never inflate the count.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
