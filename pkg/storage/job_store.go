package storage

import (
	"sort"
	"sync"

	"github.com/jsonify/vox/pkg/models"
)

// JobStore is the in-memory store. Reads take the shared lock so status
// polls never contend with the workers' updates.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.TranscriptionJob
}

// NewJobStore creates an empty in-memory store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*models.TranscriptionJob)}
}

// Save writes or replaces the job record.
func (s *JobStore) Save(job *models.TranscriptionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
	return nil
}

// Get returns a copy of the job so callers can't mutate stored state.
func (s *JobStore) Get(jobID string) (*models.TranscriptionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

// Update applies fn under the write lock.
func (s *JobStore) Update(jobID string, fn func(*models.TranscriptionJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	fn(job)
	return nil
}

// List returns all jobs, newest first.
func (s *JobStore) List() ([]*models.TranscriptionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.TranscriptionJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		copied := *job
		jobs = append(jobs, &copied)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Delete removes the job.
func (s *JobStore) Delete(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return ErrJobNotFound
	}
	delete(s.jobs, jobID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *JobStore) Close() error { return nil }
