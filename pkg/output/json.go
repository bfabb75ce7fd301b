package output

import (
	"encoding/json"
	"fmt"

	"github.com/jsonify/vox/pkg/audio"
	"github.com/jsonify/vox/pkg/models"
)

// Quality score blend weights and the confidence floor below which a
// segment counts as low-confidence.
const (
	qualityWeightConfidence   = 0.4
	qualityWeightAudio        = 0.3
	qualityWeightCompleteness = 0.3
	lowConfidenceFloor        = 0.5
)

type jsonDocument struct {
	Transcription    jsonTranscription `json:"transcription"`
	Metadata         jsonMetadata      `json:"metadata"`
	AudioInformation jsonAudioInfo     `json:"audioInformation"`
	ProcessingStats  jsonStats         `json:"processingStats"`
	Segments         []jsonSegment     `json:"segments"`
}

type jsonTranscription struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Duration   float64 `json:"duration"`
}

type jsonMetadata struct {
	Engine                    string  `json:"engine"`
	ProcessingTime            float64 `json:"processingTime"`
	QualityScore              float64 `json:"qualityScore"`
	LowConfidenceSegmentCount int     `json:"lowConfidenceSegmentCount"`
}

type jsonAudioInfo struct {
	Codec      string  `json:"codec"`
	SampleRate int     `json:"sampleRate"`
	Channels   int     `json:"channels"`
	BitRate    *int    `json:"bitRate,omitempty"`
	Duration   float64 `json:"duration"`
	FileSize   *int64  `json:"fileSize,omitempty"`
	Quality    string  `json:"quality"`
}

type jsonStats struct {
	TotalSegments     int     `json:"totalSegments"`
	TotalWords        int     `json:"totalWords"`
	AverageConfidence float64 `json:"averageConfidence"`
}

type jsonSegment struct {
	Text          string           `json:"text"`
	StartTime     float64          `json:"startTime"`
	EndTime       float64          `json:"endTime"`
	Confidence    float64          `json:"confidence"`
	SpeakerID     string           `json:"speakerId,omitempty"`
	Type          string           `json:"type"`
	PauseDuration *float64         `json:"pauseDuration,omitempty"`
	Words         []jsonWordTiming `json:"words,omitempty"`
}

type jsonWordTiming struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
}

// RenderJSON renders the full structured document. Optional source fields
// (bit rate, file size, speaker, words, pause) are omitted cleanly when
// absent; an empty-segment result renders segments as [] rather than null.
func RenderJSON(result *models.TranscriptionResult, opts Options) (string, error) {
	doc := jsonDocument{
		Transcription: jsonTranscription{
			Text:       result.Text,
			Language:   result.Language,
			Confidence: result.Confidence,
			Duration:   result.Duration,
		},
		Metadata: jsonMetadata{
			Engine:                    string(result.Engine),
			ProcessingTime:            result.ProcessingTime,
			QualityScore:              qualityScore(result),
			LowConfidenceSegmentCount: lowConfidenceCount(result.Segments),
		},
		AudioInformation: audioInfo(result.AudioFormat),
		ProcessingStats: jsonStats{
			TotalSegments:     len(result.Segments),
			TotalWords:        result.WordCount(),
			AverageConfidence: averageConfidence(result.Segments),
		},
		Segments: make([]jsonSegment, 0, len(result.Segments)),
	}

	for _, seg := range result.Segments {
		js := jsonSegment{
			Text:       seg.Text,
			StartTime:  seg.StartTime,
			EndTime:    seg.EndTime,
			Confidence: seg.Confidence,
			SpeakerID:  seg.SpeakerID,
			Type:       string(seg.Type),
		}
		if seg.PauseDuration > 0 {
			pause := seg.PauseDuration
			js.PauseDuration = &pause
		}
		for _, w := range seg.Words {
			js.Words = append(js.Words, jsonWordTiming{
				Word:       w.Word,
				StartTime:  w.StartTime,
				EndTime:    w.EndTime,
				Confidence: w.Confidence,
			})
		}
		doc.Segments = append(doc.Segments, js)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding transcription document: %w", err)
	}
	return string(data) + "\n", nil
}

func audioInfo(format models.AudioFormat) jsonAudioInfo {
	info := jsonAudioInfo{
		Codec:      format.Codec,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Duration:   format.Duration,
		Quality:    string(format.Quality()),
	}
	if format.BitRate > 0 {
		br := format.BitRate
		info.BitRate = &br
	}
	if format.FileSize > 0 {
		fs := format.FileSize
		info.FileSize = &fs
	}
	return info
}

// qualityScore blends transcription confidence, audio quality and
// completeness into one [0,1] heuristic.
func qualityScore(result *models.TranscriptionResult) float64 {
	audioScore := audio.QualityScore(result.AudioFormat.SampleRate, result.AudioFormat.BitRate, result.AudioFormat.Channels)

	completeness := 0.0
	if result.Duration > 0 {
		var covered float64
		for _, seg := range result.Segments {
			covered += seg.Duration()
		}
		completeness = covered / result.Duration
		if completeness > 1 {
			completeness = 1
		}
	} else if result.Text != "" {
		completeness = 1
	}

	score := qualityWeightConfidence*result.Confidence +
		qualityWeightAudio*audioScore +
		qualityWeightCompleteness*completeness
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func lowConfidenceCount(segments []models.TranscriptionSegment) int {
	count := 0
	for _, seg := range segments {
		if seg.Confidence < lowConfidenceFloor {
			count++
		}
	}
	return count
}

func averageConfidence(segments []models.TranscriptionSegment) float64 {
	if len(segments) == 0 {
		return 0
	}
	var sum float64
	for _, seg := range segments {
		sum += seg.Confidence
	}
	return sum / float64(len(segments))
}
