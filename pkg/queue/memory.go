package queue

import (
	"errors"

	"github.com/jsonify/vox/pkg/models"
)

// ErrQueueFull is returned by Enqueue when the buffer has no room.
var ErrQueueFull = errors.New("queue is full")

// ErrQueueClosed is returned by Dequeue after Close.
var ErrQueueClosed = errors.New("queue is closed")

// MemoryQueue is a buffered-channel queue for single-process deployments.
// Delivery is at-most-once: a job lost to a crash is gone.
type MemoryQueue struct {
	jobs chan *models.TranscriptionJob
}

// NewMemoryQueue creates a queue buffering up to bufferSize jobs.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &MemoryQueue{jobs: make(chan *models.TranscriptionJob, bufferSize)}
}

// Enqueue submits without blocking; a full buffer is an error so the API can
// push back instead of hanging a request.
func (q *MemoryQueue) Enqueue(job *models.TranscriptionJob) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until a job arrives or the queue closes.
func (q *MemoryQueue) Dequeue() (*models.TranscriptionJob, error) {
	job, ok := <-q.jobs
	if !ok {
		return nil, ErrQueueClosed
	}
	return job, nil
}

// Ack is a no-op: channel delivery has no confirmation step.
func (q *MemoryQueue) Ack(*models.TranscriptionJob) error { return nil }

// Nack is a no-op; in-memory jobs are never redelivered.
func (q *MemoryQueue) Nack(*models.TranscriptionJob, bool) error { return nil }

// Close shuts the queue. Pending jobs still drain to Dequeue callers.
func (q *MemoryQueue) Close() error {
	close(q.jobs)
	return nil
}
