package engine

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/voxerr"
)

// rateLimitBackoff is used when the provider rate-limits without naming a
// retry delay.
const rateLimitBackoff = 5 * time.Second

// OpenAIEngine transcribes through the hosted whisper API.
type OpenAIEngine struct {
	client   *openai.Client
	apiKey   string
	language string
	logger   hclog.Logger
}

// NewOpenAIEngine builds the engine. The client is created eagerly but no
// network traffic happens until Transcribe.
func NewOpenAIEngine(apiKey, language string, logger hclog.Logger) *OpenAIEngine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &OpenAIEngine{
		client:   openai.NewClient(apiKey),
		apiKey:   apiKey,
		language: language,
		logger:   logger,
	}
}

func (e *OpenAIEngine) Name() models.Engine { return models.EngineOpenAI }

// Available reports whether a plausible credential is configured. The
// key-shape check catches placeholder values before any upload happens.
func (e *OpenAIEngine) Available() bool {
	return strings.HasPrefix(e.apiKey, "sk-")
}

// Transcribe uploads the scratch audio and maps the verbose response into
// the canonical result. Segment confidence derives from the model's average
// log probability.
func (e *OpenAIEngine) Transcribe(ctx context.Context, file *models.AudioFile, onProgress ProgressFunc) (*models.TranscriptionResult, error) {
	if !e.Available() {
		return nil, voxerr.New(voxerr.KindAPIKeyMissing, "openai API key is missing or malformed")
	}

	started := time.Now()
	if onProgress != nil {
		onProgress(0)
	}

	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: file.AudioPath(),
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: languageHint(file, e.language),
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
			openai.TranscriptionTimestampGranularityWord,
		},
	}

	resp, err := e.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, e.mapError(err)
	}

	segments := make([]models.TranscriptionSegment, 0, len(resp.Segments))
	var confidenceSum float64
	for _, s := range resp.Segments {
		confidence := math.Exp(s.AvgLogprob)
		segments = append(segments, models.TranscriptionSegment{
			Text:       strings.TrimSpace(s.Text),
			StartTime:  s.Start,
			EndTime:    s.End,
			Confidence: confidence,
			Type:       models.SegmentSpeech,
		})
		confidenceSum += confidence
	}
	// Word timings arrive as a flat list; distribute each word onto the
	// segment whose span contains its start.
	for _, w := range resp.Words {
		for i := range segments {
			if w.Start >= segments[i].StartTime && w.Start < segments[i].EndTime {
				segments[i].Words = append(segments[i].Words, models.WordTiming{
					Word:      strings.TrimSpace(w.Word),
					StartTime: w.Start,
					EndTime:   w.End,
				})
				break
			}
		}
	}

	confidence := 0.0
	if len(segments) > 0 {
		confidence = confidenceSum / float64(len(segments))
	}

	duration := float64(resp.Duration)
	if duration == 0 {
		duration = file.Format.Duration
	}

	result := &models.TranscriptionResult{
		Text:           strings.TrimSpace(resp.Text),
		Language:       resp.Language,
		Confidence:     confidence,
		Duration:       duration,
		Segments:       segments,
		Engine:         models.EngineOpenAI,
		ProcessingTime: time.Since(started).Seconds(),
		AudioFormat:    file.Format,
	}
	canonicalize(result)

	if onProgress != nil {
		onProgress(1)
	}
	e.logger.Debug("openai transcription complete",
		"segments", len(result.Segments), "language", result.Language)
	return result, nil
}

// mapError folds provider errors into the pipeline taxonomy. Auth failures
// become credential errors, throttling becomes a rate-limit error carrying a
// backoff hint, and everything transport-level becomes a network error.
func (e *OpenAIEngine) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return voxerr.Wrap(voxerr.KindAPIKeyMissing, err, "openai rejected the API key")
		case http.StatusTooManyRequests:
			rl := voxerr.RateLimited(rateLimitBackoff, "openai rate limit reached")
			rl.Cause = err
			return rl
		default:
			return voxerr.Wrap(voxerr.KindTranscriptionFailed, err,
				"openai transcription failed with status %d", apiErr.HTTPStatusCode)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return voxerr.Wrap(voxerr.KindTranscriptionFailed, err, "openai transcription canceled")
	}
	return voxerr.Wrap(voxerr.KindNetworkError, err, "openai request failed before a response arrived")
}
