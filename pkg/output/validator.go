package output

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CheckStatus classifies one validation dimension.
type CheckStatus string

const (
	StatusPassed  CheckStatus = "passed"
	StatusWarning CheckStatus = "warning"
	StatusFailed  CheckStatus = "failed"
)

// minPlausibleSize is the byte count below which a written transcript is
// suspicious but not necessarily broken.
const minPlausibleSize = 64

// maxTextLineLength flags runaway lines in plain-text output.
const maxTextLineLength = 2000

// Issue is one finding from post-write validation.
type Issue struct {
	Dimension string      `json:"dimension"`
	Status    CheckStatus `json:"status"`
	Message   string      `json:"message"`
}

// ValidationReport aggregates the three post-write dimensions. Overall is
// the worst individual status; a failed overall means the write must not be
// reported as success even though bytes landed on disk.
type ValidationReport struct {
	FormatCompliance CheckStatus `json:"format_compliance"`
	Encoding         CheckStatus `json:"encoding"`
	Integrity        CheckStatus `json:"integrity"`
	Overall          CheckStatus `json:"overall"`
	Issues           []Issue     `json:"issues,omitempty"`
}

var srtTimingPattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2},\d{3} --> \d{2}:\d{2}:\d{2},\d{3}$`)

// ValidateOutput re-reads a written file and checks format compliance,
// encoding and integrity against the original transcript text. It returns
// an error only when the file cannot be read at all.
func ValidateOutput(path string, format Format, originalText string) (*ValidationReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading written output %s: %w", path, err)
	}
	content := string(data)

	report := &ValidationReport{
		FormatCompliance: StatusPassed,
		Encoding:         StatusPassed,
		Integrity:        StatusPassed,
	}

	checkIntegrity(report, content, originalText)
	checkEncoding(report, content)
	if len(content) > 0 {
		checkFormat(report, content, format)
	}

	report.Overall = worst(report.FormatCompliance, report.Encoding, report.Integrity)
	return report, nil
}

func (r *ValidationReport) add(dimension string, status CheckStatus, message string) {
	r.Issues = append(r.Issues, Issue{Dimension: dimension, Status: status, Message: message})
}

func checkIntegrity(r *ValidationReport, content, originalText string) {
	if len(content) == 0 {
		r.Integrity = StatusFailed
		r.add("integrity", StatusFailed, "output file is empty")
		return
	}
	if len(content) < minPlausibleSize {
		r.Integrity = StatusWarning
		r.add("integrity", StatusWarning, "output file is suspiciously small")
	}
	if originalText != "" {
		// Renderers may re-wrap lines, so compare with whitespace collapsed.
		if !strings.Contains(collapseSpaces(content), collapseSpaces(originalText)) {
			r.Integrity = StatusFailed
			r.add("integrity", StatusFailed, "output appears corrupted: transcript text missing from written content")
		}
	}
}

func checkEncoding(r *ValidationReport, content string) {
	if !utf8.ValidString(content) {
		r.Encoding = StatusFailed
		r.add("encoding", StatusFailed, "content is not valid UTF-8")
		return
	}
	for _, c := range content {
		if unicode.IsControl(c) && c != '\n' && c != '\r' && c != '\t' {
			r.Encoding = StatusWarning
			r.add("encoding", StatusWarning, "content contains control characters")
			break
		}
	}
}

func checkFormat(r *ValidationReport, content string, format Format) {
	switch format {
	case FormatText:
		for _, line := range strings.Split(content, "\n") {
			if len(line) > maxTextLineLength {
				r.FormatCompliance = StatusWarning
				r.add("format", StatusWarning, "text output contains excessively long lines")
				break
			}
		}
	case FormatSRT:
		validateSRT(r, content)
	case FormatVTT:
		if !strings.HasPrefix(content, "WEBVTT") {
			r.FormatCompliance = StatusFailed
			r.add("format", StatusFailed, "VTT output missing WEBVTT header")
		}
	case FormatJSON:
		validateJSON(r, content)
	}
}

func validateSRT(r *ValidationReport, content string) {
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")
	expected := 1
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			r.FormatCompliance = StatusFailed
			r.add("format", StatusFailed, "SRT block is missing its index, timing or text line")
			return
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil || index != expected {
			r.FormatCompliance = StatusFailed
			r.add("format", StatusFailed, fmt.Sprintf("SRT block numbering broken at block %d", expected))
			return
		}
		if !srtTimingPattern.MatchString(strings.TrimSpace(lines[1])) {
			r.FormatCompliance = StatusFailed
			r.add("format", StatusFailed, fmt.Sprintf("SRT block %d has a malformed timing line", index))
			return
		}
		expected++
	}
}

func validateJSON(r *ValidationReport, content string) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		r.FormatCompliance = StatusFailed
		r.add("format", StatusFailed, "JSON output does not parse")
		return
	}
	for _, key := range []string{"transcription", "metadata", "audioInformation", "processingStats", "segments"} {
		if _, ok := doc[key]; !ok {
			r.FormatCompliance = StatusFailed
			r.add("format", StatusFailed, fmt.Sprintf("JSON output missing %q key", key))
			return
		}
	}
}

func worst(statuses ...CheckStatus) CheckStatus {
	overall := StatusPassed
	for _, s := range statuses {
		switch {
		case s == StatusFailed:
			return StatusFailed
		case s == StatusWarning && overall == StatusPassed:
			overall = StatusWarning
		}
	}
	return overall
}
