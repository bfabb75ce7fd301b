package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/config"
	"github.com/jsonify/vox/pkg/engine"
	"github.com/jsonify/vox/pkg/extract"
	"github.com/jsonify/vox/pkg/models"
	"github.com/jsonify/vox/pkg/output"
	"github.com/jsonify/vox/pkg/pipeline"
	"github.com/jsonify/vox/pkg/progress"
	"github.com/jsonify/vox/pkg/queue"
	"github.com/jsonify/vox/pkg/storage"
	"github.com/jsonify/vox/pkg/tempfile"
	"github.com/jsonify/vox/pkg/transcriber"
	"github.com/jsonify/vox/pkg/worker"
)

// App holds the wired service components.
type App struct {
	config  *config.Config
	queue   queue.Queue
	store   storage.Store
	workers []*worker.Worker
	logger  hclog.Logger
}

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "vox",
		Level: hclog.LevelFromString(envOr("VOX_LOG_LEVEL", "info")),
	})

	cfgPath := envOr("VOX_CONFIG", "config/config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("loading configuration failed", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		logger.Error("creating upload directory failed", "dir", cfg.Server.UploadDir, "error", err)
		os.Exit(1)
	}
	outputDir := cfg.Output.Dir
	if outputDir == "" {
		outputDir = "outputs"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		logger.Error("creating output directory failed", "dir", outputDir, "error", err)
		os.Exit(1)
	}

	app := &App{config: cfg, logger: logger}

	app.store, err = buildStore(cfg, logger)
	if err != nil {
		logger.Error("initializing storage failed", "error", err)
		os.Exit(1)
	}
	app.queue, err = buildQueue(cfg, logger)
	if err != nil {
		logger.Error("initializing queue failed", "error", err)
		os.Exit(1)
	}

	opts := output.Options{
		IncludeTimestamps: cfg.Output.IncludeTimestamps,
		IncludeSpeakers:   cfg.Output.IncludeSpeakers,
		IncludeConfidence: cfg.Output.IncludeConfidence,
		LineWidth:         cfg.Output.LineWidth,
	}

	for i := 0; i < cfg.Transcriber.WorkerPoolSize; i++ {
		processor := buildProcessor(cfg, logger.Named(fmt.Sprintf("pipeline-%d", i)))
		w := worker.NewWorker(i, app.queue, app.store, processor, outputDir, opts, logger)
		w.Start()
		app.workers = append(app.workers, w)
	}
	logger.Info("workers started", "count", len(app.workers))

	router := app.setupRouter()
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", "port", cfg.Server.Port,
			"queue", cfg.Queue.Type, "storage", cfg.Storage.Type)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown did not finish cleanly", "error", err)
	}
	for _, w := range app.workers {
		w.Stop()
	}
	app.queue.Close()
	app.store.Close()
	logger.Info("shutdown complete")
}

// buildQueue selects the queue implementation from configuration.
func buildQueue(cfg *config.Config, logger hclog.Logger) (queue.Queue, error) {
	switch cfg.Queue.Type {
	case "rabbitmq":
		return queue.NewRabbitMQQueue(
			cfg.Queue.RabbitMQ.URL,
			cfg.Queue.RabbitMQ.QueueName,
			cfg.Queue.RabbitMQ.Prefetch,
			logger.Named("queue"))
	default:
		return queue.NewMemoryQueue(cfg.Queue.BufferSize), nil
	}
}

// buildStore selects the persistence tier from configuration.
func buildStore(cfg *config.Config, logger hclog.Logger) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "redis":
		return storage.NewRedisJobStore(
			cfg.Storage.Redis.Addr,
			cfg.Storage.Redis.Password,
			cfg.Storage.Redis.DB,
			time.Duration(cfg.Storage.Redis.TTLHours)*time.Hour)
	case "postgres":
		return storage.NewPostgresJobStore(cfg.Storage.Postgres.ConnString)
	case "hybrid":
		hot, err := storage.NewRedisJobStore(
			cfg.Storage.Redis.Addr,
			cfg.Storage.Redis.Password,
			cfg.Storage.Redis.DB,
			time.Duration(cfg.Storage.Redis.TTLHours)*time.Hour)
		if err != nil {
			return nil, err
		}
		cold, err := storage.NewPostgresJobStore(cfg.Storage.Postgres.ConnString)
		if err != nil {
			hot.Close()
			return nil, err
		}
		return storage.NewHybridJobStore(hot, cold, logger.Named("storage")), nil
	default:
		return storage.NewJobStore(), nil
	}
}

// buildProcessor assembles a full pipeline for one worker: both extraction
// backends, all three engines with chunking on the cloud ones, and the
// selection manager.
func buildProcessor(cfg *config.Config, logger hclog.Logger) *pipeline.Processor {
	temps := tempfile.NewManager(cfg.Transcriber.ScratchDir, logger)
	splitter := engine.NewSplitter(cfg.Transcriber.SegmentDuration, temps, nil, logger)

	engines := []engine.Engine{
		engine.NewLocalEngine(engine.NewWhisperCLI(), cfg.Transcriber.Language, logger),
		engine.NewChunkedEngine(
			engine.NewOpenAIEngine(cfg.OpenAI.APIKey, cfg.Transcriber.Language, logger),
			splitter, cfg.Transcriber.ChunkWorkers, logger),
		engine.NewChunkedEngine(
			engine.NewDeepgramEngine(cfg.Deepgram.APIKey, cfg.Transcriber.Language, logger),
			splitter, cfg.Transcriber.ChunkWorkers, logger),
	}

	manager := transcriber.NewManager(engines, transcriber.Options{
		ForceCloud: cfg.Transcriber.ForceCloud,
		Language:   cfg.Transcriber.Language,
		Fallback:   models.Engine(cfg.Transcriber.Fallback),
		MaxRetries: cfg.Transcriber.MaxRetries,
		RetryDelay: time.Duration(cfg.Transcriber.RetryDelaySecs) * time.Second,
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

// setupRouter registers the HTTP API.
func (app *App) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/ping", app.handlePing)
		api.POST("/upload", app.handleUpload)
		api.GET("/jobs", app.handleListJobs)
		api.GET("/jobs/:job_id", app.handleGetJob)
		api.GET("/jobs/:job_id/download", app.handleDownload)
	}
	return r
}

func (app *App) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// handleUpload accepts a media file, stores it under a fresh job ID and
// enqueues the job. Validation is cheap and synchronous; everything
// expensive happens in the workers.
func (app *App) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	if file.Size > app.config.Server.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file too large, limit is %d MB",
				app.config.Server.MaxUploadSize>>20),
		})
		return
	}

	jobID := uuid.New().String()
	dst := filepath.Join(app.config.Server.UploadDir, jobID+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storing upload failed"})
		return
	}

	if err := extract.ValidateInput(dst); err != nil {
		os.Remove(dst)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	formats := c.PostFormArray("formats")
	if len(formats) == 0 {
		formats = app.config.Output.Formats
	}

	job := &models.TranscriptionJob{
		JobID:     jobID,
		Filename:  file.Filename,
		FilePath:  dst,
		Status:    models.StatusPending,
		Language:  c.PostForm("language"),
		Formats:   formats,
		CreatedAt: time.Now(),
	}

	if err := app.store.Save(job); err != nil {
		os.Remove(dst)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persisting job failed"})
		return
	}
	if err := app.queue.Enqueue(job); err != nil {
		app.store.Update(jobID, func(j *models.TranscriptionJob) {
			j.Status = models.StatusFailed
			j.Error = "queueing failed: " + err.Error()
			j.CompletedAt = time.Now()
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue is not accepting jobs"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"status":  models.StatusPending,
		"formats": formats,
	})
}

func (app *App) handleGetJob(c *gin.Context) {
	job, err := app.store.Get(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (app *App) handleListJobs(c *gin.Context) {
	jobs, err := app.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing jobs failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// handleDownload serves one rendered output of a completed job.
func (app *App) handleDownload(c *gin.Context) {
	job, err := app.store.Get(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.Status != models.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not complete", "status": job.Status})
		return
	}

	format, err := output.ParseFormat(c.DefaultQuery("format", "txt"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	path, ok := job.OutputPaths[string(format)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no %s output for this job", format)})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
