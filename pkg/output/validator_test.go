package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOutput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateOutputPasses(t *testing.T) {
	transcript := "thank you all for joining today we have a full agenda to get through"
	path := writeOutput(t, "out.txt", transcript+"\n")

	report, err := ValidateOutput(path, FormatText, transcript)
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, report.Overall)
	assert.Empty(t, report.Issues)
}

func TestValidateOutputEmptyFileFails(t *testing.T) {
	path := writeOutput(t, "out.txt", "")

	report, err := ValidateOutput(path, FormatText, "anything")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, report.Integrity)
	assert.Equal(t, StatusFailed, report.Overall)
}

func TestValidateOutputSmallFileWarns(t *testing.T) {
	path := writeOutput(t, "out.txt", "tiny\n")

	report, err := ValidateOutput(path, FormatText, "tiny")
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, report.Integrity)
	assert.Equal(t, StatusWarning, report.Overall)
}

func TestValidateOutputMissingTranscriptFails(t *testing.T) {
	content := strings.Repeat("unrelated filler text ", 10)
	path := writeOutput(t, "out.txt", content)

	report, err := ValidateOutput(path, FormatText, "the real transcript")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, report.Integrity)
	require.NotEmpty(t, report.Issues)
	assert.Contains(t, report.Issues[len(report.Issues)-1].Message, "output appears corrupted")
}

func TestValidateOutputRewrappedTextStillPasses(t *testing.T) {
	// The renderer may wrap lines; integrity compares whitespace-collapsed.
	content := "good morning\neveryone welcome\nback and some more padding to clear the size floor\n"
	path := writeOutput(t, "out.txt", content)

	report, err := ValidateOutput(path, FormatText, "good morning everyone welcome back")
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, report.Integrity)
}

func TestValidateOutputSRTNumberingBreak(t *testing.T) {
	content := "1\n00:00:00,000 --> 00:00:02,000\nfirst block padded for the size floor\n\n" +
		"3\n00:00:02,000 --> 00:00:04,000\nthird block\n"
	path := writeOutput(t, "out.srt", content)

	report, err := ValidateOutput(path, FormatSRT, "")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, report.FormatCompliance)
	require.NotEmpty(t, report.Issues)
	assert.Contains(t, report.Issues[len(report.Issues)-1].Message, "numbering broken")
}

func TestValidateOutputSRTMalformedTiming(t *testing.T) {
	content := "1\n00:00:00.000 --> 00:00:02.000\ndots instead of commas in the timing line\n"
	path := writeOutput(t, "out.srt", content)

	report, err := ValidateOutput(path, FormatSRT, "")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, report.FormatCompliance)
}

func TestValidateOutputSRTWellFormed(t *testing.T) {
	path := writeOutput(t, "out.srt", RenderSRT(sampleResult()))

	report, err := ValidateOutput(path, FormatSRT, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, report.FormatCompliance)
}

func TestValidateOutputVTTMissingHeader(t *testing.T) {
	content := "1\n00:00:00.000 --> 00:00:02.000\na cue without the mandatory header line\n"
	path := writeOutput(t, "out.vtt", content)

	report, err := ValidateOutput(path, FormatVTT, "")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, report.FormatCompliance)
}

func TestValidateOutputJSONMissingKey(t *testing.T) {
	content := `{"transcription": {}, "metadata": {}, "audioInformation": {}, "processingStats": {}}`
	path := writeOutput(t, "out.json", content)

	report, err := ValidateOutput(path, FormatJSON, "")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, report.FormatCompliance)
	require.NotEmpty(t, report.Issues)
	assert.Contains(t, report.Issues[len(report.Issues)-1].Message, `"segments"`)
}

func TestValidateOutputJSONWellFormed(t *testing.T) {
	rendered, err := RenderJSON(sampleResult(), Options{})
	require.NoError(t, err)
	path := writeOutput(t, "out.json", rendered)

	report, verr := ValidateOutput(path, FormatJSON, "good morning everyone welcome back")
	require.NoError(t, verr)
	assert.Equal(t, StatusPassed, report.Overall)
}

func TestValidateOutputUnreadableFile(t *testing.T) {
	_, err := ValidateOutput(filepath.Join(t.TempDir(), "missing.txt"), FormatText, "")
	assert.Error(t, err)
}

func TestWorstAggregation(t *testing.T) {
	assert.Equal(t, StatusPassed, worst(StatusPassed, StatusPassed))
	assert.Equal(t, StatusWarning, worst(StatusPassed, StatusWarning, StatusPassed))
	assert.Equal(t, StatusFailed, worst(StatusWarning, StatusFailed, StatusPassed))
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{
		"txt": FormatText, "text": FormatText, ".srt": FormatSRT,
		"VTT": FormatVTT, "json": FormatJSON,
	} {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("docx")
	assert.Error(t, err)
}
