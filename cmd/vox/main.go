// Command vox transcribes one media file from the command line, without the
// HTTP service, queue or store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/engine"
	"github.com/jsonify/vox/pkg/extract"
	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/output"
	"github.com/jsonify/vox/pkg/pipeline"
	"github.com/jsonify/vox/pkg/progress"
	"github.com/jsonify/vox/pkg/tempfile"
	"github.com/jsonify/vox/pkg/transcriber"
	"github.com/jsonify/vox/pkg/voxerr"
)

func main() {
	var (
		inputPath  = flag.String("i", "", "input media file (required)")
		outputPath = flag.String("o", "", "output base path (defaults next to the input)")
		formatsArg = flag.String("formats", "txt", "comma-separated output formats: txt,srt,vtt,json")
		language   = flag.String("language", "", "language hint, empty for auto-detect")
		forceCloud = flag.Bool("force-cloud", false, "skip the on-device engine")
		fallback   = flag.String("fallback", "openai", "cloud engine to fall back to: openai or deepgram")
		timestamps = flag.Bool("timestamps", false, "include timestamps in text output")
		confidence = flag.Bool("confidence", false, "include confidence markers in text output")
		lineWidth  = flag.Int("line-width", 0, "wrap text output at this width, 0 disables")
		quiet      = flag.Bool("q", false, "suppress progress output")
		logLevel   = flag.String("log-level", "warn", "log level: trace, debug, info, warn, error")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: vox -i <media file> [-o <output base>] [-formats txt,srt,vtt,json]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "vox",
		Level:  hclog.LevelFromString(*logLevel),
		Output: os.Stderr,
	})

	formats, err := parseFormats(*formatsArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	processor := buildProcessor(*language, *forceCloud, models.Engine(*fallback), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sink pipeline.ProgressSink
	if !*quiet {
		sink = func(p models.TranscriptionProgress) {
			fmt.Fprintf(os.Stderr, "\r%-13s %5.1f%%", p.Phase, p.Progress*100)
		}
	}

	started := time.Now()
	result, err := processor.Process(ctx, pipeline.Request{
		InputPath:  *inputPath,
		OutputPath: *outputPath,
		Formats:    formats,
		Language:   *language,
		Options: output.Options{
			IncludeTimestamps: *timestamps,
			IncludeConfidence: *confidence,
			LineWidth:         *lineWidth,
		},
	}, sink)
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if kind := voxerr.KindOf(err); kind != "" {
			fmt.Fprintf(os.Stderr, "kind: %s\n", kind)
		}
		os.Exit(1)
	}

	fmt.Printf("engine:     %s\n", result.Transcription.Engine)
	fmt.Printf("duration:   %.1fs audio, %.1fs wall\n",
		result.Transcription.Duration, time.Since(started).Seconds())
	fmt.Printf("confidence: %.1f%%\n", result.Transcription.Confidence*100)
	fmt.Printf("words:      %d\n", result.Transcription.WordCount())
	for _, f := range formats {
		fmt.Printf("wrote:      %s\n", result.OutputPaths[f])
	}
	if result.Memory.PeakBytes > 0 {
		fmt.Printf("peak rss:   %.1f MB\n", result.Memory.PeakMB())
	}
}

// buildProcessor assembles the one-shot pipeline. Credentials come from
// OPENAI_API_KEY and DEEPGRAM_API_KEY.
func buildProcessor(language string, forceCloud bool, fallback models.Engine, logger hclog.Logger) *pipeline.Processor {
	temps := tempfile.NewManager("", logger)
	splitter := engine.NewSplitter(engine.DefaultSegmentDuration, temps, nil, logger)

	engines := []engine.Engine{
		engine.NewLocalEngine(engine.NewWhisperCLI(), language, logger),
		engine.NewChunkedEngine(
			engine.NewOpenAIEngine(os.Getenv("OPENAI_API_KEY"), language, logger),
			splitter, engine.DefaultConcurrency, logger),
		engine.NewChunkedEngine(
			engine.NewDeepgramEngine(os.Getenv("DEEPGRAM_API_KEY"), language, logger),
			splitter, engine.DefaultConcurrency, logger),
	}

	manager := transcriber.NewManager(engines, transcriber.Options{
		ForceCloud: forceCloud,
		Language:   language,
		Fallback:   fallback,
	}, logger)

	extractors := []extract.Extractor{
		extract.NewNativeExtractor(temps, logger),
		extract.NewFFmpegExtractor(temps, logger),
	}

	var monitor *progress.MemoryMonitor
	if m, err := progress.NewMemoryMonitor(); err == nil {
		monitor = m
	}

	return pipeline.NewProcessor(extractors, manager, temps, monitor, logger)
}

func parseFormats(arg string) ([]output.Format, error) {
	var formats []output.Format
	for _, name := range strings.Split(arg, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f, err := output.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		formats = []output.Format{output.FormatText}
	}
	return formats, nil
}
