// Package transcriber selects among speech engines and owns the fallback
// and retry policy. Engines stay policy-free; this layer decides which one
// runs, how often to retry, and when to give up.
package transcriber

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/audio"
	"github.com/jsonify/vox/pkg/engine"
	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/voxerr"
)

// Retry defaults. Transient failures back off exponentially from RetryDelay
// unless the provider suggests its own delay.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// State tracks where the manager is in one transcription run. Exposed for
// progress reporting and logging only; callers never branch on it.
type State string

const (
	StateIdle       State = "idle"
	StateAttempting State = "attempting"
	StateRetrying   State = "retrying"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Options steers engine selection for one manager.
type Options struct {
	// ForceCloud skips the on-device engine even for audio it could handle.
	ForceCloud bool
	// Language is the default spoken-language hint, applied when the audio
	// carries none of its own; empty means auto-detect.
	Language string
	// Fallback names the cloud engine to try when the preferred engine
	// fails or is unavailable. Only this one is tried; the manager never
	// walks the whole engine list.
	Fallback models.Engine
	// MaxRetries bounds attempts per engine for transient failures.
	MaxRetries int
	// RetryDelay is the base backoff between transient retries.
	RetryDelay time.Duration
}

// Manager runs one transcription through the configured engines.
type Manager struct {
	mu      sync.Mutex
	state   State
	engines map[models.Engine]engine.Engine
	opts    Options
	logger  hclog.Logger
}

// NewManager builds a manager over the given engines. Zero retry options
// take the defaults.
func NewManager(engines []engine.Engine, opts Options, logger hclog.Logger) *Manager {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	byName := make(map[models.Engine]engine.Engine, len(engines))
	for _, e := range engines {
		byName[e.Name()] = e
	}
	return &Manager{
		state:   StateIdle,
		engines: byName,
		opts:    opts,
		logger:  logger,
	}
}

// CurrentState returns the manager's position in the current run.
func (m *Manager) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Transcribe picks an engine order for the audio and runs it, falling back
// once and retrying transient failures. The error returned on exhaustion is
// the last attempt's error, unmodified, so callers see the concrete failure
// rather than a generic wrapper.
func (m *Manager) Transcribe(ctx context.Context, file *models.AudioFile, onProgress engine.ProgressFunc) (*models.TranscriptionResult, error) {
	if file.Language == "" {
		file.Language = m.opts.Language
	}

	candidates := m.selectEngines(file)
	if len(candidates) == 0 {
		m.setState(StateFailed)
		return nil, voxerr.New(voxerr.KindTranscriptionFailed,
			"no transcription engine is available for this audio")
	}

	var lastErr error
	for _, eng := range candidates {
		m.setState(StateAttempting)
		result, err := m.attemptWithRetry(ctx, eng, file, onProgress)
		if err == nil {
			m.setState(StateSucceeded)
			return result, nil
		}
		lastErr = err
		m.logger.Warn("engine failed, considering fallback",
			"engine", eng.Name(), "error", err)
	}

	m.setState(StateFailed)
	return nil, lastErr
}

// selectEngines builds the attempt order: the on-device engine first when
// the audio is recognition-ready and cloud is not forced, then the single
// configured fallback. Unavailable engines are skipped up front so a missing
// credential never burns a retry budget.
func (m *Manager) selectEngines(file *models.AudioFile) []engine.Engine {
	var order []engine.Engine

	if !m.opts.ForceCloud && audio.IsTranscriptionReady(file.Format) {
		if local, ok := m.engines[models.EngineLocal]; ok && local.Available() {
			order = append(order, local)
		}
	}
	if m.opts.Fallback != "" && m.opts.Fallback != models.EngineNone {
		if fb, ok := m.engines[m.opts.Fallback]; ok && fb.Available() && fb.Name() != models.EngineLocal {
			order = append(order, fb)
		}
	}

	// An empty order stays empty. The manager only ever runs the on-device
	// engine and the one configured fallback; it does not improvise a cloud
	// provider the caller never authorized.
	return order
}

// attemptWithRetry runs one engine with the transient-retry policy.
// Permanent errors end the attempt immediately; transient ones back off and
// retry until the budget is spent.
func (m *Manager) attemptWithRetry(ctx context.Context, eng engine.Engine, file *models.AudioFile, onProgress engine.ProgressFunc) (*models.TranscriptionResult, error) {
	var lastErr error
	delay := m.opts.RetryDelay

	for attempt := 1; attempt <= m.opts.MaxRetries; attempt++ {
		result, err := eng.Transcribe(ctx, file, onProgress)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !voxerr.Transient(err) {
			return nil, err
		}
		if attempt == m.opts.MaxRetries {
			break
		}

		wait := delay
		if suggested, ok := voxerr.SuggestedDelay(err); ok {
			wait = suggested
		}
		m.setState(StateRetrying)
		m.logger.Info("transient failure, retrying",
			"engine", eng.Name(), "attempt", attempt, "wait", wait, "error", err)

		select {
		case <-ctx.Done():
			return nil, voxerr.Wrap(voxerr.KindTranscriptionFailed, ctx.Err(), "transcription canceled during backoff")
		case <-time.After(wait):
		}
		delay *= 2
		m.setState(StateAttempting)
	}
	return nil, lastErr
}
