package transcriber

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsonify/vox/pkg/engine"
	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/voxerr"
)

// stubEngine fails a scripted number of times before succeeding.
type stubEngine struct {
	name      models.Engine
	available bool
	errs      []error
	calls     int
	language  string
	result    *models.TranscriptionResult
}

func (s *stubEngine) Name() models.Engine { return s.name }
func (s *stubEngine) Available() bool     { return s.available }

func (s *stubEngine) Transcribe(_ context.Context, file *models.AudioFile, _ engine.ProgressFunc) (*models.TranscriptionResult, error) {
	s.calls++
	s.language = file.Language
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	if s.result != nil {
		return s.result, nil
	}
	return &models.TranscriptionResult{Text: "ok", Engine: s.name}, nil
}

// readyAudio passes the on-device readiness gate.
func readyAudio() *models.AudioFile {
	return &models.AudioFile{
		Path: "/media/talk.mp4",
		Format: models.AudioFormat{
			Codec: "aac", SampleRate: 44100, Channels: 2, BitRate: 192000,
			Duration: 30, IsValid: true,
		},
	}
}

func fastOpts() Options {
	return Options{Fallback: models.EngineOpenAI, MaxRetries: 3, RetryDelay: time.Millisecond}
}

func TestTranscribePrefersLocalEngine(t *testing.T) {
	local := &stubEngine{name: models.EngineLocal, available: true}
	cloud := &stubEngine{name: models.EngineOpenAI, available: true}
	m := NewManager([]engine.Engine{local, cloud}, fastOpts(), nil)

	result, err := m.Transcribe(context.Background(), readyAudio(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.EngineLocal, result.Engine)
	assert.Equal(t, 1, local.calls)
	assert.Zero(t, cloud.calls)
	assert.Equal(t, StateSucceeded, m.CurrentState())
}

func TestTranscribeForceCloudSkipsLocal(t *testing.T) {
	local := &stubEngine{name: models.EngineLocal, available: true}
	cloud := &stubEngine{name: models.EngineOpenAI, available: true}
	opts := fastOpts()
	opts.ForceCloud = true
	m := NewManager([]engine.Engine{local, cloud}, opts, nil)

	result, err := m.Transcribe(context.Background(), readyAudio(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.EngineOpenAI, result.Engine)
	assert.Zero(t, local.calls)
}

func TestTranscribePermanentErrorFallsBackImmediately(t *testing.T) {
	local := &stubEngine{
		name: models.EngineLocal, available: true,
		errs: []error{voxerr.New(voxerr.KindTranscriptionFailed, "model crashed")},
	}
	cloud := &stubEngine{name: models.EngineOpenAI, available: true}
	m := NewManager([]engine.Engine{local, cloud}, fastOpts(), nil)

	result, err := m.Transcribe(context.Background(), readyAudio(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.EngineOpenAI, result.Engine)
	// Permanent failures never burn the retry budget.
	assert.Equal(t, 1, local.calls)
}

func TestTranscribeRetriesTransientFailures(t *testing.T) {
	cloud := &stubEngine{
		name: models.EngineOpenAI, available: true,
		errs: []error{
			voxerr.New(voxerr.KindNetworkError, "connection reset"),
			voxerr.RateLimited(time.Millisecond, "throttled"),
		},
	}
	opts := fastOpts()
	opts.ForceCloud = true
	m := NewManager([]engine.Engine{cloud}, opts, nil)

	result, err := m.Transcribe(context.Background(), readyAudio(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, 3, cloud.calls)
}

func TestTranscribeExhaustedRetriesSurfaceLastError(t *testing.T) {
	last := voxerr.New(voxerr.KindNetworkError, "still unreachable")
	cloud := &stubEngine{
		name: models.EngineOpenAI, available: true,
		errs: []error{
			voxerr.New(voxerr.KindNetworkError, "first failure"),
			voxerr.New(voxerr.KindNetworkError, "second failure"),
			last,
		},
	}
	opts := fastOpts()
	opts.ForceCloud = true
	opts.MaxRetries = 3
	m := NewManager([]engine.Engine{cloud}, opts, nil)

	_, err := m.Transcribe(context.Background(), readyAudio(), nil)
	require.Error(t, err)
	// The concrete last error comes back unmodified.
	assert.Same(t, last, err.(*voxerr.Error))
	assert.Equal(t, 3, cloud.calls)
	assert.Equal(t, StateFailed, m.CurrentState())
}

func TestTranscribeSkipsUnavailableFallback(t *testing.T) {
	local := &stubEngine{
		name: models.EngineLocal, available: true,
		errs: []error{voxerr.New(voxerr.KindTranscriptionFailed, "model crashed")},
	}
	cloud := &stubEngine{name: models.EngineOpenAI, available: false}
	m := NewManager([]engine.Engine{local, cloud}, fastOpts(), nil)

	_, err := m.Transcribe(context.Background(), readyAudio(), nil)
	require.Error(t, err)
	assert.Zero(t, cloud.calls)
	assert.Equal(t, voxerr.KindTranscriptionFailed, voxerr.KindOf(err))
}

func TestTranscribeNoEngineAvailable(t *testing.T) {
	m := NewManager(nil, fastOpts(), nil)

	_, err := m.Transcribe(context.Background(), readyAudio(), nil)
	require.Error(t, err)
	assert.Equal(t, voxerr.KindTranscriptionFailed, voxerr.KindOf(err))
	assert.Contains(t, err.Error(), "no transcription engine")
	assert.Equal(t, StateFailed, m.CurrentState())
}

func TestTranscribeNeverUsesUnconfiguredCloudEngine(t *testing.T) {
	// Forcing cloud with no fallback configured fails instead of silently
	// running a provider the caller never named.
	cloud := &stubEngine{name: models.EngineOpenAI, available: true}
	m := NewManager([]engine.Engine{cloud},
		Options{ForceCloud: true, MaxRetries: 1, RetryDelay: time.Millisecond}, nil)

	_, err := m.Transcribe(context.Background(), readyAudio(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transcription engine")
	assert.Zero(t, cloud.calls)
	assert.Equal(t, StateFailed, m.CurrentState())
}

func TestTranscribeAppliesDefaultLanguageHint(t *testing.T) {
	local := &stubEngine{name: models.EngineLocal, available: true}
	opts := fastOpts()
	opts.Language = "en"
	m := NewManager([]engine.Engine{local}, opts, nil)

	_, err := m.Transcribe(context.Background(), readyAudio(), nil)
	require.NoError(t, err)
	assert.Equal(t, "en", local.language)

	// An explicit per-run hint is left alone.
	file := readyAudio()
	file.Language = "de"
	_, err = m.Transcribe(context.Background(), file, nil)
	require.NoError(t, err)
	assert.Equal(t, "de", local.language)
}

func TestTranscribeCanceledDuringBackoff(t *testing.T) {
	cloud := &stubEngine{
		name: models.EngineOpenAI, available: true,
		errs: []error{voxerr.RateLimited(time.Hour, "long throttle")},
	}
	opts := fastOpts()
	opts.ForceCloud = true
	m := NewManager([]engine.Engine{cloud}, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Transcribe(ctx, readyAudio(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled during backoff")
	assert.Equal(t, 1, cloud.calls)
}
