// Package storage persists transcription jobs. The memory store backs
// single-node runs, Redis and PostgreSQL back distributed ones, and the
// hybrid store layers Redis over PostgreSQL as hot and cold tiers.
package storage

import (
	"errors"

	"github.com/jsonify/vox/pkg/models"
)

// ErrJobNotFound is returned when a job ID has no record.
var ErrJobNotFound = errors.New("job not found")

// Store is the job persistence contract.
type Store interface {
	// Save writes or replaces the job record.
	Save(job *models.TranscriptionJob) error

	// Get returns the job or ErrJobNotFound.
	Get(jobID string) (*models.TranscriptionJob, error)

	// Update applies fn to the stored job under the store's own locking
	// and persists the result.
	Update(jobID string, fn func(*models.TranscriptionJob)) error

	// List returns recent jobs, newest first.
	List() ([]*models.TranscriptionJob, error)

	// Delete removes the job or returns ErrJobNotFound.
	Delete(jobID string) error

	// Close releases backing connections.
	Close() error
}
