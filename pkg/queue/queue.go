// Package queue abstracts job delivery between the API and the workers.
// Two implementations exist: an in-process channel queue for single-node
// runs, and RabbitMQ for durable multi-node deployments.
package queue

import "github.com/jsonify/vox/pkg/models"

// Queue delivers transcription jobs to workers. Implementations with broker
// semantics use Ack/Nack for delivery guarantees; the in-memory queue treats
// them as no-ops.
type Queue interface {
	// Enqueue submits a job. Returns an error when the queue is full or
	// the broker is unreachable.
	Enqueue(job *models.TranscriptionJob) error

	// Dequeue blocks until a job is available or the queue closes.
	Dequeue() (*models.TranscriptionJob, error)

	// Ack confirms a successfully processed job.
	Ack(job *models.TranscriptionJob) error

	// Nack rejects a failed job; requeue controls redelivery.
	Nack(job *models.TranscriptionJob, requeue bool) error

	// Close shuts the queue down. Blocked Dequeue calls return an error.
	Close() error
}
