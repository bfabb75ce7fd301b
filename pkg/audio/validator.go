// Package audio holds the format validation policy: pure functions with no
// I/O and no mutable state.
package audio

import (
	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/voxerr"
)

// Policy constants. Documented defaults inferred from the supported provider
// matrix; adjust here rather than inline.
const (
	MinBitRate = 32000  // bits/sec floor below which speech is unusable
	MaxBitRate = 512000 // bits/sec ceiling beyond which input is suspect
	MinChannels = 1
	MaxChannels = 8
)

// Engine recommendation tiers.
const (
	highTierSampleRate = 44100
	highTierBitRate    = 128000
	midTierSampleRate  = 16000

	confidenceHigh = 0.95
	confidenceMid  = 0.85
	confidenceLow  = 0.75
)

// supportedCodecs is the full allow-list of codecs the pipeline accepts.
var supportedCodecs = map[string]bool{
	"aac":       true,
	"m4a":       true,
	"mp3":       true,
	"wav":       true,
	"pcm":       true,
	"pcm_s16le": true,
	"pcm_s24le": true,
	"flac":      true,
	"alac":      true,
	"opus":      true,
	"vorbis":    true,
}

// transcriptionCodecs is the stricter allow-list of codecs the speech
// engines accept. Opus and vorbis decode fine but their low-bitrate speech
// fidelity is too poor for recognition, so they are excluded.
var transcriptionCodecs = map[string]bool{
	"aac":       true,
	"m4a":       true,
	"mp3":       true,
	"wav":       true,
	"pcm":       true,
	"pcm_s16le": true,
	"pcm_s24le": true,
	"flac":      true,
	"alac":      true,
}

// standardSampleRates is the discrete set of accepted rates.
var standardSampleRates = map[int]bool{
	8000:   true,
	11025:  true,
	16000:  true,
	22050:  true,
	24000:  true,
	32000:  true,
	44100:  true,
	48000:  true,
	88200:  true,
	96000:  true,
	176400: true,
	192000: true,
}

// IsSupported reports whether the codec, sample rate and channel count all
// fall inside the accepted policy sets.
func IsSupported(codec string, sampleRate, channels int) bool {
	return supportedCodecs[codec] &&
		standardSampleRates[sampleRate] &&
		channels >= MinChannels && channels <= MaxChannels
}

// IsTranscriptionCompatible reports whether the codec is acceptable input
// for the speech engines.
func IsTranscriptionCompatible(codec string) bool {
	return transcriptionCodecs[codec]
}

// losslessCodecs carry raw PCM rates far above the compressed-codec ceiling,
// so the bit-rate window does not apply to them.
var losslessCodecs = map[string]bool{
	"wav":       true,
	"pcm":       true,
	"pcm_s16le": true,
	"pcm_s24le": true,
	"flac":      true,
	"alac":      true,
}

// Validate combines the support check with bit-rate bounds. A zero bit rate
// means unknown and passes; known rates on compressed codecs must sit inside
// the policy window. Each rejection names the failing dimension.
func Validate(codec string, sampleRate, channels, bitRate int) error {
	if !supportedCodecs[codec] {
		return voxerr.New(voxerr.KindAudioFormatValidationFailed, "unsupported codec %q", codec)
	}
	if !standardSampleRates[sampleRate] {
		return voxerr.New(voxerr.KindAudioFormatValidationFailed, "non-standard sample rate %d Hz", sampleRate)
	}
	if channels < MinChannels || channels > MaxChannels {
		return voxerr.New(voxerr.KindAudioFormatValidationFailed, "channel count %d outside supported range", channels)
	}
	if bitRate != 0 && !losslessCodecs[codec] {
		if bitRate < MinBitRate {
			return voxerr.New(voxerr.KindAudioFormatValidationFailed, "bit rate %d bps too low for reliable speech recognition", bitRate)
		}
		if bitRate > MaxBitRate {
			return voxerr.New(voxerr.KindAudioFormatValidationFailed, "bit rate %d bps too high", bitRate)
		}
	}
	return nil
}

// QualityScore returns a heuristic [0,1] blend of sample rate, bit rate and
// channel count. A missing bit rate contributes a neutral 0.5. This feeds
// engine selection only; it is never a correctness gate.
func QualityScore(sampleRate, bitRate, channels int) float64 {
	rateScore := clamp01(float64(sampleRate) / 48000.0)

	bitScore := 0.5
	if bitRate > 0 {
		bitScore = clamp01(float64(bitRate) / 320000.0)
	}

	chanScore := 0.5
	if channels > 0 {
		chanScore = clamp01(float64(channels) / 2.0)
	}

	return clamp01(0.5*rateScore + 0.3*bitScore + 0.2*chanScore)
}

// RecommendEngine applies the tiered selection heuristic: rich audio favors
// the on-device recognizer, mid-grade audio the primary cloud provider, and
// everything else the secondary provider. Incompatible codecs recommend
// nothing.
func RecommendEngine(format models.AudioFormat) (models.Engine, float64) {
	if !IsTranscriptionCompatible(format.Codec) {
		return models.EngineNone, 0.0
	}
	switch {
	case format.SampleRate >= highTierSampleRate &&
		(format.BitRate == 0 || format.BitRate >= highTierBitRate) &&
		format.Channels >= MinChannels:
		return models.EngineLocal, confidenceHigh
	case format.SampleRate >= midTierSampleRate:
		return models.EngineOpenAI, confidenceMid
	default:
		return models.EngineDeepgram, confidenceLow
	}
}

// IsCompatible reports whether a validated format is inside the general
// codec allow-list.
func IsCompatible(format models.AudioFormat) bool {
	return format.IsValid && supportedCodecs[format.Codec]
}

// IsTranscriptionReady reports whether a validated format can go straight to
// a speech engine.
func IsTranscriptionReady(format models.AudioFormat) bool {
	return format.IsValid && transcriptionCodecs[format.Codec]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
