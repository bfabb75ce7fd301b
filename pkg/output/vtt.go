package output

import (
	"fmt"
	"strings"

	"github.com/jsonify/vox/pkg/models"
)

// RenderVTT renders WebVTT cues for HTML5 playback. Same block structure as
// SRT but with the mandatory WEBVTT header and dot-separated milliseconds.
func RenderVTT(result *models.TranscriptionResult) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	index := 1
	for _, seg := range result.Segments {
		text := collapseSpaces(seg.Text)
		if text == "" {
			continue
		}

		b.WriteString(fmt.Sprintf("%d\n", index))
		b.WriteString(fmt.Sprintf("%s --> %s\n", formatVTTTime(seg.StartTime), formatVTTTime(seg.EndTime)))
		b.WriteString(text)
		b.WriteString("\n\n")
		index++
	}

	return b.String()
}

func formatVTTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
