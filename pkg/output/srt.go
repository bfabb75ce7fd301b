package output

import (
	"fmt"
	"strings"

	"github.com/jsonify/vox/pkg/models"
)

// RenderSRT renders sequence-numbered subtitle blocks, one per non-empty
// segment. Numbering starts at 1 and stays contiguous regardless of skipped
// empty segments.
func RenderSRT(result *models.TranscriptionResult) string {
	var b strings.Builder
	index := 1

	for _, seg := range result.Segments {
		text := collapseSpaces(seg.Text)
		if text == "" {
			continue
		}

		b.WriteString(fmt.Sprintf("%d\n", index))
		b.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTTime(seg.StartTime), formatSRTTime(seg.EndTime)))
		b.WriteString(text)
		b.WriteString("\n\n")
		index++
	}

	return b.String()
}

// formatSRTTime renders seconds as the SRT timestamp form, comma-separated
// milliseconds: 65.5 -> 00:01:05,500.
func formatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
