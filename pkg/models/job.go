package models

import "time"

// JobStatus is the lifecycle state of a queued transcription job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// TranscriptionJob tracks one media file through the service pipeline.
type TranscriptionJob struct {
	JobID       string            `json:"job_id"`
	Filename    string            `json:"filename"`
	FilePath    string            `json:"file_path"`
	Status      JobStatus         `json:"status"`
	Progress    int               `json:"progress"` // percent, 0-100
	Language    string            `json:"language,omitempty"`
	Formats     []string          `json:"formats,omitempty"`
	ResultText  string            `json:"result_text,omitempty"`
	OutputPaths map[string]string `json:"output_paths,omitempty"` // format -> written file
	Engine      Engine            `json:"engine,omitempty"`
	Duration    float64           `json:"duration,omitempty"` // seconds of audio
	Confidence  float64           `json:"confidence,omitempty"`
	Error       string            `json:"error,omitempty"`
	ErrorKind   string            `json:"error_kind,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt time.Time         `json:"completed_at,omitempty"`

	// Broker bookkeeping, never serialized.
	DeliveryTag uint64 `json:"-"`
	Delivery    any    `json:"-"`
}
