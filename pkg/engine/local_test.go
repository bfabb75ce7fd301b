package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/voxerr"
)

// fakeRecognizer is a scripted on-device recognizer.
type fakeRecognizer struct {
	available bool
	speech    *RecognizedSpeech
	err       error
	audioPath string
	language  string
}

func (f *fakeRecognizer) Available() bool { return f.available }

func (f *fakeRecognizer) Recognize(_ context.Context, audioPath, language string) (*RecognizedSpeech, error) {
	f.audioPath = audioPath
	f.language = language
	return f.speech, f.err
}

func TestLocalEngineTranscribe(t *testing.T) {
	rec := &fakeRecognizer{
		available: true,
		speech: &RecognizedSpeech{
			Text:     "  hello world  ",
			Language: "en",
			Segments: []RecognizedSegment{
				{Text: " hello ", StartTime: 0, EndTime: 1.2, Confidence: 0.9},
				{Text: "world", StartTime: 1.2, EndTime: 2.4, Confidence: 0.7},
			},
		},
	}
	eng := NewLocalEngine(rec, "", nil)
	assert.Equal(t, models.EngineLocal, eng.Name())
	assert.True(t, eng.Available())

	file := &models.AudioFile{
		Path:          "/media/talk.mp4",
		TemporaryPath: "/tmp/vox_audio_x.m4a",
		Format:        models.AudioFormat{Duration: 2.4},
	}

	var progress []float64
	result, err := eng.Transcribe(context.Background(), file, func(p float64) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	// The recognizer sees the scratch file, not the source media.
	assert.Equal(t, "/tmp/vox_audio_x.m4a", rec.audioPath)

	assert.Equal(t, "hello world", result.Text)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, models.EngineLocal, result.Engine)
	assert.InDelta(t, 2.4, result.Duration, 1e-9)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)

	require.Len(t, result.Segments, 2)
	assert.Equal(t, "hello", result.Segments[0].Text)
	assert.Equal(t, models.SegmentSpeech, result.Segments[0].Type)

	assert.Equal(t, []float64{0, 1}, progress)
}

func TestLocalEngineForwardsLanguageHint(t *testing.T) {
	rec := &fakeRecognizer{available: true, speech: &RecognizedSpeech{}}
	eng := NewLocalEngine(rec, "en", nil)

	// The configured hint reaches the recognizer.
	_, err := eng.Transcribe(context.Background(), &models.AudioFile{Path: "/a.wav"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "en", rec.language)

	// A per-file hint takes precedence over the configured one.
	_, err = eng.Transcribe(context.Background(), &models.AudioFile{Path: "/a.wav", Language: "de"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "de", rec.language)
}

func TestLocalEnginePassesThroughKindedErrors(t *testing.T) {
	kinded := voxerr.New(voxerr.KindUnsupportedFormat, "recognizer cannot decode this codec")
	eng := NewLocalEngine(&fakeRecognizer{available: true, err: kinded}, "", nil)

	_, err := eng.Transcribe(context.Background(), &models.AudioFile{Path: "/a.wav"}, nil)
	require.Error(t, err)
	assert.Equal(t, kinded, err)
}

func TestLocalEngineWrapsPlainErrors(t *testing.T) {
	plain := errors.New("model file missing")
	eng := NewLocalEngine(&fakeRecognizer{available: true, err: plain}, "", nil)

	_, err := eng.Transcribe(context.Background(), &models.AudioFile{Path: "/a.wav"}, nil)
	require.Error(t, err)
	assert.Equal(t, voxerr.KindTranscriptionFailed, voxerr.KindOf(err))
	assert.True(t, errors.Is(err, plain))
}

func TestLocalEngineEmptySpeech(t *testing.T) {
	eng := NewLocalEngine(&fakeRecognizer{available: true, speech: &RecognizedSpeech{}}, "", nil)

	result, err := eng.Transcribe(context.Background(), &models.AudioFile{Path: "/a.wav"}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Text)
	assert.Empty(t, result.Segments)
	assert.Zero(t, result.Confidence)
}
