// Package output renders transcription results into their delivery formats
// and persists them durably. Renderers are pure; only the writer and the
// post-write validator touch the filesystem.
package output

import (
	"fmt"
	"strings"
)

// Format names a rendered output format.
type Format string

const (
	FormatText Format = "txt"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
	FormatJSON Format = "json"
)

// Options control rendering. Zero value renders plain unadorned text.
type Options struct {
	IncludeTimestamps bool
	IncludeSpeakers   bool
	IncludeConfidence bool
	LineWidth         int // 0 disables wrapping
}

// ParseFormat maps a user-supplied name (with or without a leading dot) to a
// Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "txt", "text":
		return FormatText, nil
	case "srt":
		return FormatSRT, nil
	case "vtt":
		return FormatVTT, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q", name)
}

// Extension returns the file extension for the format, dot included.
func (f Format) Extension() string { return "." + string(f) }

// collapseSpaces collapses interior whitespace runs to single spaces and
// trims the ends. Rendering never introduces doubled whitespace.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
