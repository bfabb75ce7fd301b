package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/voxerr"
)

const defaultDeepgramBaseURL = "https://api.deepgram.com"

// deepgramModel is the hosted model used for all requests.
const deepgramModel = "nova-2"

// DeepgramEngine transcribes through Deepgram's pre-recorded audio API.
// The provider has no official Go SDK pinned here, so the engine speaks the
// HTTP API directly.
type DeepgramEngine struct {
	apiKey   string
	language string
	baseURL  string
	client   *http.Client
	logger   hclog.Logger
}

// NewDeepgramEngine builds the engine. DEEPGRAM_BASE_URL overrides the
// endpoint, which tests use to point at a local server.
func NewDeepgramEngine(apiKey, language string, logger hclog.Logger) *DeepgramEngine {
	baseURL := defaultDeepgramBaseURL
	if u := os.Getenv("DEEPGRAM_BASE_URL"); u != "" {
		baseURL = u
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &DeepgramEngine{
		apiKey:   apiKey,
		language: language,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 10 * time.Minute},
		logger:   logger,
	}
}

func (e *DeepgramEngine) Name() models.Engine { return models.EngineDeepgram }

// Available reports whether a plausible credential is configured. Deepgram
// issues hex tokens, so the shape check catches placeholder values before
// any upload happens, mirroring the OpenAI prefix gate.
func (e *DeepgramEngine) Available() bool { return plausibleDeepgramKey(e.apiKey) }

func plausibleDeepgramKey(key string) bool {
	if len(key) < 32 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// deepgramResponse mirrors the subset of the provider response the engine
// consumes.
type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Confidence float64 `json:"confidence"`
			Transcript string  `json:"transcript"`
			Speaker    *int    `json:"speaker"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"utterances"`
	} `json:"results"`
}

// Transcribe streams the scratch audio to the provider and maps utterances
// onto canonical segments.
func (e *DeepgramEngine) Transcribe(ctx context.Context, file *models.AudioFile, onProgress ProgressFunc) (*models.TranscriptionResult, error) {
	if !e.Available() {
		return nil, voxerr.New(voxerr.KindAPIKeyMissing, "deepgram API key is missing or malformed")
	}

	started := time.Now()
	if onProgress != nil {
		onProgress(0)
	}

	audio, err := os.Open(file.AudioPath())
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindTranscriptionFailed, err, "opening audio for upload")
	}
	defer audio.Close()

	language := languageHint(file, e.language)
	params := url.Values{}
	params.Set("model", deepgramModel)
	params.Set("punctuate", "true")
	params.Set("utterances", "true")
	if language != "" {
		params.Set("language", language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/v1/listen?"+params.Encode(), audio)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindTranscriptionFailed, err, "building deepgram request")
	}
	req.Header.Set("Authorization", "Token "+e.apiKey)
	req.Header.Set("Content-Type", contentTypeForAudio(file.AudioPath()))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindNetworkError, err, "deepgram request failed before a response arrived")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.KindNetworkError, err, "reading deepgram response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, e.mapStatus(resp, body)
	}

	var parsed deepgramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, voxerr.Wrap(voxerr.KindTranscriptionFailed, err, "parsing deepgram response")
	}

	result := e.mapResponse(&parsed, file, language)
	result.ProcessingTime = time.Since(started).Seconds()
	canonicalize(result)

	if onProgress != nil {
		onProgress(1)
	}
	e.logger.Debug("deepgram transcription complete",
		"segments", len(result.Segments), "confidence", result.Confidence)
	return result, nil
}

func (e *DeepgramEngine) mapResponse(parsed *deepgramResponse, file *models.AudioFile, language string) *models.TranscriptionResult {
	result := &models.TranscriptionResult{
		Language:    language,
		Duration:    parsed.Metadata.Duration,
		Engine:      models.EngineDeepgram,
		AudioFormat: file.Format,
	}
	if result.Duration == 0 {
		result.Duration = file.Format.Duration
	}

	if len(parsed.Results.Channels) > 0 && len(parsed.Results.Channels[0].Alternatives) > 0 {
		alt := parsed.Results.Channels[0].Alternatives[0]
		result.Text = strings.TrimSpace(alt.Transcript)
		result.Confidence = alt.Confidence
	}

	lastSpeaker := -1
	for _, u := range parsed.Results.Utterances {
		seg := models.TranscriptionSegment{
			Text:       strings.TrimSpace(u.Transcript),
			StartTime:  u.Start,
			EndTime:    u.End,
			Confidence: u.Confidence,
			Type:       models.SegmentSpeech,
		}
		if u.Speaker != nil {
			seg.SpeakerID = fmt.Sprintf("speaker_%d", *u.Speaker)
			if lastSpeaker >= 0 && *u.Speaker != lastSpeaker {
				seg.Type = models.SegmentSpeakerChange
			}
			lastSpeaker = *u.Speaker
		}
		for _, w := range u.Words {
			seg.Words = append(seg.Words, models.WordTiming{
				Word:       w.Word,
				StartTime:  w.Start,
				EndTime:    w.End,
				Confidence: w.Confidence,
			})
		}
		result.Segments = append(result.Segments, seg)
	}

	// Some responses carry a transcript but no utterances; synthesize one
	// segment so downstream rendering always has timing to work with.
	if len(result.Segments) == 0 && result.Text != "" {
		result.Segments = append(result.Segments, models.TranscriptionSegment{
			Text:       result.Text,
			StartTime:  0,
			EndTime:    result.Duration,
			Confidence: result.Confidence,
			Type:       models.SegmentSpeech,
		})
	}
	return result
}

// mapStatus folds non-200 provider responses into the pipeline taxonomy.
func (e *DeepgramEngine) mapStatus(resp *http.Response, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return voxerr.New(voxerr.KindAPIKeyMissing, "deepgram rejected the API key").With("detail", detail)
	case http.StatusTooManyRequests:
		backoff := rateLimitBackoff
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				backoff = time.Duration(secs) * time.Second
			}
		}
		return voxerr.RateLimited(backoff, "deepgram rate limit reached")
	default:
		// Non-success responses beyond auth and throttling, 5xx included,
		// are permanent for this attempt: the provider answered, so the
		// retry budget stays reserved for transport failures.
		return voxerr.New(voxerr.KindTranscriptionFailed, "deepgram returned status %d", resp.StatusCode).
			With("detail", detail)
	}
}

// contentTypeForAudio maps the scratch-file extension to an upload MIME type.
func contentTypeForAudio(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/mp4"
	}
}
