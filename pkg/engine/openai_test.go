package engine

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/voxerr"
)

func TestOpenAIAvailableRequiresPlausibleKey(t *testing.T) {
	assert.True(t, NewOpenAIEngine("sk-real-key", "", nil).Available())
	assert.False(t, NewOpenAIEngine("", "", nil).Available())
	assert.False(t, NewOpenAIEngine("your-key-here", "", nil).Available())
}

func TestOpenAIMissingKeyFailsFast(t *testing.T) {
	eng := NewOpenAIEngine("placeholder", "", nil)
	_, err := eng.Transcribe(context.Background(), &models.AudioFile{Path: "/a.m4a"}, nil)
	require.Error(t, err)
	assert.Equal(t, voxerr.KindAPIKeyMissing, voxerr.KindOf(err))
}

func TestOpenAIMapError(t *testing.T) {
	eng := NewOpenAIEngine("sk-key", "", nil)

	tests := []struct {
		name          string
		err           error
		wantKind      voxerr.Kind
		wantTransient bool
	}{
		{
			"unauthorized",
			&openai.APIError{HTTPStatusCode: http.StatusUnauthorized},
			voxerr.KindAPIKeyMissing, false,
		},
		{
			"forbidden",
			&openai.APIError{HTTPStatusCode: http.StatusForbidden},
			voxerr.KindAPIKeyMissing, false,
		},
		{
			"rate limited",
			&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests},
			voxerr.KindRateLimitError, true,
		},
		{
			"server error",
			&openai.APIError{HTTPStatusCode: http.StatusInternalServerError},
			voxerr.KindTranscriptionFailed, false,
		},
		{
			"context canceled",
			context.Canceled,
			voxerr.KindTranscriptionFailed, false,
		},
		{
			"transport failure",
			errors.New("dial tcp: connection refused"),
			voxerr.KindNetworkError, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := eng.mapError(tt.err)
			assert.Equal(t, tt.wantKind, voxerr.KindOf(mapped))
			assert.Equal(t, tt.wantTransient, voxerr.Transient(mapped))
		})
	}
}

func TestOpenAIRateLimitCarriesBackoff(t *testing.T) {
	eng := NewOpenAIEngine("sk-key", "", nil)
	mapped := eng.mapError(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests})

	delay, ok := voxerr.SuggestedDelay(mapped)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, delay)
	assert.True(t, errors.As(mapped, new(*openai.APIError)), "provider error stays unwrappable")
}
