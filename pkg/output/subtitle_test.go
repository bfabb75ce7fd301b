package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsonify/vox/pkg/models"
)

func TestRenderSRT(t *testing.T) {
	got := RenderSRT(sampleResult())

	blocks := strings.Split(strings.TrimSpace(got), "\n\n")
	require.Len(t, blocks, 2, "empty segment is skipped")

	// Numbering stays contiguous across the skipped segment.
	assert.True(t, strings.HasPrefix(blocks[0], "1\n"))
	assert.True(t, strings.HasPrefix(blocks[1], "2\n"))

	assert.Contains(t, blocks[0], "00:00:00,500 --> 00:00:02,000")
	assert.Contains(t, blocks[0], "good morning everyone")
	assert.Contains(t, blocks[1], "00:01:05,500 --> 00:01:07,000")
}

func TestRenderSRTEmptyResult(t *testing.T) {
	assert.Empty(t, RenderSRT(&models.TranscriptionResult{}))
}

func TestFormatSRTTime(t *testing.T) {
	assert.Equal(t, "00:01:05,500", formatSRTTime(65.5))
	assert.Equal(t, "01:00:00,000", formatSRTTime(3600))
	assert.Equal(t, "00:00:00,000", formatSRTTime(-2))
}

func TestRenderVTT(t *testing.T) {
	got := RenderVTT(sampleResult())

	require.True(t, strings.HasPrefix(got, "WEBVTT\n\n"))
	assert.Contains(t, got, "00:00:00.500 --> 00:00:02.000")
	assert.Contains(t, got, "00:01:05.500 --> 00:01:07.000")
	assert.NotContains(t, got, ",500", "VTT uses dot-separated milliseconds")

	blocks := strings.Split(strings.TrimSpace(got), "\n\n")
	require.Len(t, blocks, 3, "header plus two cues")
}

func TestRenderVTTEmptyResultKeepsHeader(t *testing.T) {
	assert.Equal(t, "WEBVTT\n\n", RenderVTT(&models.TranscriptionResult{}))
}
