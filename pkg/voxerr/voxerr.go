package voxerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind classifies a pipeline failure. Every error produced by the core
// carries exactly one kind so callers can branch on the failure mode
// without string matching.
type Kind string

const (
	KindInvalidInputFile            Kind = "invalid_input_file"
	KindInvalidOutputPath           Kind = "invalid_output_path"
	KindUnsupportedFormat           Kind = "unsupported_format"
	KindAudioExtractionFailed       Kind = "audio_extraction_failed"
	KindAudioFormatValidationFailed Kind = "audio_format_validation_failed"
	KindIncompatibleAudioProperties Kind = "incompatible_audio_properties"
	KindTranscriptionFailed         Kind = "transcription_failed"
	KindAPIKeyMissing               Kind = "api_key_missing"
	KindNetworkError                Kind = "network_error"
	KindRateLimitError              Kind = "rate_limit_error"
	KindOutputWriteFailed           Kind = "output_write_failed"
)

// Error is the structured error used across the pipeline. Terminal for the
// attempt that raised it; higher layers decide whether to fall back.
type Error struct {
	Kind       Kind
	Message    string
	Context    map[string]any
	Cause      error
	RetryAfter time.Duration // set only for rate-limit errors
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Context) > 0 {
		b.WriteString(" (")
		first := true
		for _, k := range sortedKeys(e.Context) {
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
			first = false
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// With attaches a context value and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New constructs an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an error of the given kind around a cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// RateLimited constructs a rate-limit error carrying the provider's
// suggested backoff.
func RateLimited(retryAfter time.Duration, format string, args ...any) *Error {
	return &Error{Kind: KindRateLimitError, Message: fmt.Sprintf(format, args...), RetryAfter: retryAfter}
}

// KindOf returns the kind of err, or "" when err carries no kind.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Transient reports whether err is worth retrying: network failures and
// rate limits are transient, everything else is permanent for the attempt.
func Transient(err error) bool {
	switch KindOf(err) {
	case KindNetworkError, KindRateLimitError:
		return true
	}
	return false
}

// SuggestedDelay returns the provider-suggested backoff when present.
func SuggestedDelay(err error) (time.Duration, bool) {
	var ve *Error
	if errors.As(err, &ve) && ve.RetryAfter > 0 {
		return ve.RetryAfter, true
	}
	return 0, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
