package output

import (
	"fmt"
	"strings"

	"github.com/jsonify/vox/pkg/models"
)

// RenderText renders the transcript as plain paragraphs, one per segment,
// with optional timestamp prefix, speaker label and confidence annotation.
func RenderText(result *models.TranscriptionResult, opts Options) string {
	var paragraphs []string

	for _, seg := range result.Segments {
		text := collapseSpaces(seg.Text)
		if text == "" {
			continue
		}

		var b strings.Builder
		if opts.IncludeTimestamps {
			b.WriteString(formatClock(seg.StartTime))
			b.WriteString(" ")
		}
		if opts.IncludeSpeakers && seg.SpeakerID != "" {
			b.WriteString(seg.SpeakerID)
			b.WriteString(": ")
		}
		b.WriteString(text)
		if opts.IncludeConfidence {
			fmt.Fprintf(&b, " [confidence: %.1f%%]", seg.Confidence*100)
		}

		paragraphs = append(paragraphs, wrapLine(b.String(), opts.LineWidth))
	}

	if len(paragraphs) == 0 {
		return collapseSpaces(result.Text) + "\n"
	}
	return strings.Join(paragraphs, "\n\n") + "\n"
}

// formatClock renders seconds as a [MM:SS] prefix.
func formatClock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("[%02d:%02d]", total/60, total%60)
}

// wrapLine word-wraps text to width columns. Words longer than the width
// stay on their own line rather than being split.
func wrapLine(text string, width int) string {
	if width <= 0 {
		return text
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	lineLen := 0
	for i, w := range words {
		if i == 0 {
			b.WriteString(w)
			lineLen = len(w)
			continue
		}
		if lineLen+1+len(w) > width {
			b.WriteString("\n")
			b.WriteString(w)
			lineLen = len(w)
		} else {
			b.WriteString(" ")
			b.WriteString(w)
			lineLen += 1 + len(w)
		}
	}
	return b.String()
}
