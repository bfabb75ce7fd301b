package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAudioFormatQuality(t *testing.T) {
	tests := []struct {
		name   string
		format AudioFormat
		want   AudioQuality
	}{
		{"flac is lossless", AudioFormat{Codec: "flac", SampleRate: 44100}, QualityLossless},
		{"wav is lossless", AudioFormat{Codec: "wav", SampleRate: 8000}, QualityLossless},
		{"cd-grade aac is high", AudioFormat{Codec: "aac", SampleRate: 44100, BitRate: 256000}, QualityHigh},
		{"high rate unknown bitrate is high", AudioFormat{Codec: "aac", SampleRate: 48000}, QualityHigh},
		{"mid tier is medium", AudioFormat{Codec: "mp3", SampleRate: 22050, BitRate: 128000}, QualityMedium},
		{"phone audio is low", AudioFormat{Codec: "aac", SampleRate: 8000, BitRate: 32000}, QualityLow},
		{"rich rate but thin bitrate is low", AudioFormat{Codec: "mp3", SampleRate: 44100, BitRate: 48000}, QualityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.format.Quality())
		})
	}
}

func TestAudioPathPrefersScratchFile(t *testing.T) {
	file := AudioFile{Path: "/media/talk.mp4", TemporaryPath: "/tmp/vox_audio_1.m4a"}
	assert.Equal(t, "/tmp/vox_audio_1.m4a", file.AudioPath())

	direct := AudioFile{Path: "/media/talk.wav"}
	assert.Equal(t, "/media/talk.wav", direct.AudioPath())
}

func TestSegmentHelpers(t *testing.T) {
	seg := TranscriptionSegment{StartTime: 1.5, EndTime: 4.0, Type: SegmentParagraphBoundary}
	assert.InDelta(t, 2.5, seg.Duration(), 1e-9)
	assert.True(t, seg.IsSentenceBoundary())
	assert.True(t, seg.IsParagraphBoundary())
	assert.False(t, seg.HasSpeakerChange())

	pause := TranscriptionSegment{PauseDuration: 0.8}
	assert.True(t, pause.HasSilenceGap())
	assert.False(t, TranscriptionSegment{Type: SegmentSpeech}.HasSilenceGap())
}

func TestMemoryUsagePercentageClamped(t *testing.T) {
	usage := MemoryUsage{CurrentBytes: 512, TotalBytes: 1024}
	assert.InDelta(t, 50.0, usage.UsagePercentage(), 0.1)

	over := MemoryUsage{CurrentBytes: 2048, TotalBytes: 1024}
	assert.InDelta(t, 100.0, over.UsagePercentage(), 0.1)

	zero := MemoryUsage{CurrentBytes: 100, TotalBytes: 0}
	assert.Zero(t, zero.UsagePercentage())
}

func TestCountWordsCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, 5, CountWords("Hello    world   with    multiple     spaces"))
	assert.Equal(t, 0, CountWords("   \t\n  "))
	assert.Equal(t, 0, CountWords(""))
}

func TestProcessingStatsEstimatedCompletion(t *testing.T) {
	stats := ProcessingStats{AudioRemaining: 120, ProcessingRate: 4}
	assert.InDelta(t, 30.0, stats.EstimatedCompletion(), 1e-9)

	unknown := ProcessingStats{AudioRemaining: 120}
	assert.Zero(t, unknown.EstimatedCompletion())
}

func TestProgressEstimatedTimeRemaining(t *testing.T) {
	p := TranscriptionProgress{
		Progress:        0.25,
		StartTime:       time.Now().Add(-time.Minute),
		ProcessingSpeed: 0.005,
	}
	assert.InDelta(t, 150.0, p.EstimatedTimeRemaining(), 1e-9)
	assert.Zero(t, TranscriptionProgress{Progress: 0.5}.EstimatedTimeRemaining())
}
