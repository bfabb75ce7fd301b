package models

// Engine identifies a speech-to-text backend.
type Engine string

const (
	EngineNone     Engine = "none"
	EngineLocal    Engine = "local"
	EngineOpenAI   Engine = "openai"
	EngineDeepgram Engine = "deepgram"
)

// SegmentType classifies what a transcription segment represents.
type SegmentType string

const (
	SegmentSpeech            SegmentType = "speech"
	SegmentSilence           SegmentType = "silence"
	SegmentSentenceBoundary  SegmentType = "sentence_boundary"
	SegmentParagraphBoundary SegmentType = "paragraph_boundary"
	SegmentSpeakerChange     SegmentType = "speaker_change"
	SegmentBackgroundNoise   SegmentType = "background_noise"
)

// WordTiming is a word-level timestamp within a segment.
type WordTiming struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the word span in seconds.
func (w WordTiming) Duration() float64 { return w.EndTime - w.StartTime }

// TranscriptionSegment is a time-bounded span of transcribed text.
// End time is never before start time; segments are chronological within a
// result by convention, enforced by engine canonicalization.
type TranscriptionSegment struct {
	Text          string       `json:"text"`
	StartTime     float64      `json:"start_time"`
	EndTime       float64      `json:"end_time"`
	Confidence    float64      `json:"confidence"`
	SpeakerID     string       `json:"speaker_id,omitempty"`
	Words         []WordTiming `json:"words,omitempty"`
	Type          SegmentType  `json:"segment_type"`
	PauseDuration float64      `json:"pause_duration,omitempty"` // seconds of leading silence
}

// Duration returns the segment span in seconds.
func (s TranscriptionSegment) Duration() float64 { return s.EndTime - s.StartTime }

// IsSentenceBoundary is true for sentence and paragraph boundary segments.
func (s TranscriptionSegment) IsSentenceBoundary() bool {
	return s.Type == SegmentSentenceBoundary || s.Type == SegmentParagraphBoundary
}

// IsParagraphBoundary is true only for paragraph boundary segments.
func (s TranscriptionSegment) IsParagraphBoundary() bool {
	return s.Type == SegmentParagraphBoundary
}

// HasSpeakerChange is true when the segment marks a speaker transition.
func (s TranscriptionSegment) HasSpeakerChange() bool {
	return s.Type == SegmentSpeakerChange
}

// HasSilenceGap is true when a leading pause was detected.
func (s TranscriptionSegment) HasSilenceGap() bool {
	return s.PauseDuration > 0 || s.Type == SegmentSilence
}

// TranscriptionResult is the canonical output of one successful
// transcription attempt. Immutable after the engine returns it.
type TranscriptionResult struct {
	Text           string                 `json:"text"`
	Language       string                 `json:"language"`
	Confidence     float64                `json:"confidence"`
	Duration       float64                `json:"duration"` // seconds of audio
	Segments       []TranscriptionSegment `json:"segments"`
	Engine         Engine                 `json:"engine"`
	ProcessingTime float64                `json:"processing_time"` // seconds of wall clock
	AudioFormat    AudioFormat            `json:"audio_format"`
}

// WordCount returns the whitespace-delimited word count of the transcript.
func (r TranscriptionResult) WordCount() int {
	return CountWords(r.Text)
}
