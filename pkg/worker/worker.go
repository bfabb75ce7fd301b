// Package worker consumes transcription jobs from the queue and drives each
// one through the pipeline, recording progress and outcomes in the store.
package worker

import (
	"context"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/output"
	"github.com/jsonify/vox/pkg/pipeline"
	"github.com/jsonify/vox/pkg/queue"
	"github.com/jsonify/vox/pkg/storage"
	"github.com/jsonify/vox/pkg/voxerr"
)

// jobTimeout bounds one job end to end.
const jobTimeout = 30 * time.Minute

// Worker processes jobs one at a time. Run several workers for parallel
// jobs; each owns its own pipeline processor and scratch space.
type Worker struct {
	id        int
	queue     queue.Queue
	store     storage.Store
	processor *pipeline.Processor
	outputDir string
	opts      output.Options
	logger    hclog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorker wires a worker to its queue, store and processor.
func NewWorker(id int, q queue.Queue, store storage.Store, processor *pipeline.Processor, outputDir string, opts output.Options, logger hclog.Logger) *Worker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		id:        id,
		queue:     q,
		store:     store,
		processor: processor,
		outputDir: outputDir,
		opts:      opts,
		logger:    logger.With("worker", id),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the consume loop in its own goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Stop signals the loop to exit after the current job.
func (w *Worker) Stop() {
	w.cancel()
}

func (w *Worker) run() {
	w.logger.Info("worker started")
	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("worker stopped")
			return
		default:
		}

		job, err := w.queue.Dequeue()
		if err != nil {
			select {
			case <-w.ctx.Done():
				w.logger.Info("worker stopped")
				return
			default:
			}
			w.logger.Error("dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		w.processJob(job)
	}
}

// processJob runs one job through the pipeline and records the outcome. The
// queue message is acked on success and on permanent failure; only a timeout
// or cancellation requeues, since those can succeed on another attempt.
func (w *Worker) processJob(job *models.TranscriptionJob) {
	w.logger.Info("processing job", "job", job.JobID, "file", job.Filename)

	w.store.Update(job.JobID, func(j *models.TranscriptionJob) {
		j.Status = models.StatusProcessing
		j.Progress = 0
	})

	ctx, cancel := context.WithTimeout(w.ctx, jobTimeout)
	defer cancel()

	req := buildRequest(job, w.outputDir, w.opts)

	sink := func(p models.TranscriptionProgress) {
		percent := int(p.Progress * 100)
		w.store.Update(job.JobID, func(j *models.TranscriptionJob) {
			if percent > j.Progress {
				j.Progress = percent
			}
		})
	}

	result, err := w.processor.Process(ctx, req, sink)
	if err != nil {
		w.logger.Error("job failed", "job", job.JobID, "error", err)
		w.store.Update(job.JobID, func(j *models.TranscriptionJob) {
			j.Status = models.StatusFailed
			j.Error = err.Error()
			j.ErrorKind = string(voxerr.KindOf(err))
			j.CompletedAt = time.Now()
		})
		if ctx.Err() != nil {
			w.queue.Nack(job, true)
		} else {
			w.queue.Ack(job)
		}
		return
	}

	outputs := make(map[string]string, len(result.OutputPaths))
	for format, path := range result.OutputPaths {
		outputs[string(format)] = path
	}

	w.store.Update(job.JobID, func(j *models.TranscriptionJob) {
		j.Status = models.StatusCompleted
		j.Progress = 100
		j.ResultText = result.Transcription.Text
		j.OutputPaths = outputs
		j.Engine = result.Transcription.Engine
		j.Duration = result.Transcription.Duration
		j.Confidence = result.Transcription.Confidence
		j.CompletedAt = time.Now()
	})
	w.queue.Ack(job)

	w.logger.Info("job complete",
		"job", job.JobID,
		"engine", result.Transcription.Engine,
		"elapsed", result.Elapsed,
		"outputs", len(outputs))
}

// buildRequest maps one queued job onto a pipeline request, carrying the
// job's language hint and requested formats through to the run.
func buildRequest(job *models.TranscriptionJob, outputDir string, opts output.Options) pipeline.Request {
	return pipeline.Request{
		InputPath:  job.FilePath,
		OutputPath: filepath.Join(outputDir, job.JobID),
		Formats:    parseFormats(job.Formats),
		Language:   job.Language,
		Options:    opts,
	}
}

// parseFormats maps requested format names onto known formats, dropping
// anything unrecognized. An empty or fully-invalid request falls back to
// plain text.
func parseFormats(names []string) []output.Format {
	formats := make([]output.Format, 0, len(names))
	for _, name := range names {
		if f, err := output.ParseFormat(name); err == nil {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		formats = []output.Format{output.FormatText}
	}
	return formats
}
