package models

// AudioQuality is a coarse tier derived from the raw format properties.
type AudioQuality string

const (
	QualityLow      AudioQuality = "low"
	QualityMedium   AudioQuality = "medium"
	QualityHigh     AudioQuality = "high"
	QualityLossless AudioQuality = "lossless"
)

// AudioFormat describes a decoded audio stream. Immutable once constructed;
// validation outcome is recorded at construction time by the extraction layer.
type AudioFormat struct {
	Codec           string  `json:"codec"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	BitRate         int     `json:"bit_rate,omitempty"` // bits/sec, 0 when unknown
	Duration        float64 `json:"duration"`           // seconds
	FileSize        int64   `json:"file_size,omitempty"`
	IsValid         bool    `json:"is_valid"`
	ValidationError string  `json:"validation_error,omitempty"`
}

// Quality derives the coarse tier from sample rate, bit rate and channels.
// Lossless codecs report by codec name, everything else by rate thresholds.
func (f AudioFormat) Quality() AudioQuality {
	switch f.Codec {
	case "flac", "alac", "wav", "pcm", "pcm_s16le", "pcm_s24le":
		return QualityLossless
	}
	switch {
	case f.SampleRate >= 44100 && (f.BitRate == 0 || f.BitRate >= 256000):
		return QualityHigh
	case f.SampleRate >= 22050 && (f.BitRate == 0 || f.BitRate >= 96000):
		return QualityMedium
	default:
		return QualityLow
	}
}

// AudioFile is the product of the extraction layer. TemporaryPath is set only
// when extraction produced a scratch file; that path is owned by the
// temporary resource manager until released.
type AudioFile struct {
	Path          string      `json:"path"`
	Format        AudioFormat `json:"format"`
	TemporaryPath string      `json:"temporary_path,omitempty"`
	// Language is the caller-supplied spoken-language hint for this run;
	// empty means auto-detect. Engines prefer it over their configured hint.
	Language string `json:"language,omitempty"`
}

// AudioPath returns the path transcription engines should read: the scratch
// file when extraction produced one, else the source itself.
func (a AudioFile) AudioPath() string {
	if a.TemporaryPath != "" {
		return a.TemporaryPath
	}
	return a.Path
}
