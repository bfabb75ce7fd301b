package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsonify/vox/pkg/models"
)

func TestRenderJSONDocument(t *testing.T) {
	result := sampleResult()
	result.Segments[0].Words = []models.WordTiming{
		{Word: "good", StartTime: 0.5, EndTime: 0.8, Confidence: 0.99},
	}
	result.Segments[2].PauseDuration = 1.2

	rendered, err := RenderJSON(result, Options{})
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(rendered), &doc))
	for _, key := range []string{"transcription", "metadata", "audioInformation", "processingStats", "segments"} {
		assert.Contains(t, doc, key)
	}

	var transcription struct {
		Text       string  `json:"text"`
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal(doc["transcription"], &transcription))
	assert.Equal(t, "good morning everyone welcome back", transcription.Text)
	assert.Equal(t, "en", transcription.Language)
	assert.InDelta(t, 0.92, transcription.Confidence, 1e-9)

	var segments []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["segments"], &segments))
	require.Len(t, segments, 3)
	assert.Contains(t, segments[0], "words")
	assert.NotContains(t, segments[1], "words", "absent words are omitted")
	assert.Contains(t, segments[2], "pauseDuration")
	assert.NotContains(t, segments[0], "pauseDuration")

	var meta struct {
		Engine       string  `json:"engine"`
		QualityScore float64 `json:"qualityScore"`
	}
	require.NoError(t, json.Unmarshal(doc["metadata"], &meta))
	assert.Equal(t, "local", meta.Engine)
	assert.Greater(t, meta.QualityScore, 0.0)
	assert.LessOrEqual(t, meta.QualityScore, 1.0)
}

func TestRenderJSONEmptySegmentsIsArray(t *testing.T) {
	rendered, err := RenderJSON(&models.TranscriptionResult{Text: "bare"}, Options{})
	require.NoError(t, err)
	assert.Contains(t, rendered, `"segments": []`)
	assert.NotContains(t, rendered, `"segments": null`)
}

func TestRenderJSONOmitsUnknownAudioFields(t *testing.T) {
	result := &models.TranscriptionResult{
		AudioFormat: models.AudioFormat{Codec: "aac", SampleRate: 16000, Channels: 1},
	}
	rendered, err := RenderJSON(result, Options{})
	require.NoError(t, err)

	assert.NotContains(t, rendered, `"bitRate"`)
	assert.NotContains(t, rendered, `"fileSize"`)
	assert.True(t, strings.HasSuffix(rendered, "\n"))
}

func TestLowConfidenceCount(t *testing.T) {
	segments := []models.TranscriptionSegment{
		{Confidence: 0.3}, {Confidence: 0.5}, {Confidence: 0.9},
	}
	assert.Equal(t, 1, lowConfidenceCount(segments))
}

func TestQualityScoreCompleteness(t *testing.T) {
	full := sampleResult()
	sparse := sampleResult()
	sparse.Segments = sparse.Segments[:1]

	assert.Greater(t, qualityScore(full), qualityScore(sparse))

	// Text with no duration still counts as complete.
	textOnly := &models.TranscriptionResult{Text: "something", Confidence: 1}
	assert.Greater(t, qualityScore(textOnly), 0.0)
}
