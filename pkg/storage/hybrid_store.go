package storage

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jsonify/vox/pkg/models"
)

// Hybrid sync tuning: terminal jobs flush to the database in batches of
// syncBatchSize or every syncInterval, whichever comes first.
const (
	syncBatchSize = 50
	syncInterval  = 5 * time.Second
	syncQueueSize = 100
	drainTimeout  = 5 * time.Second
)

// HybridJobStore layers Redis (hot, fast, TTL-bound) over PostgreSQL (cold,
// durable). Reads prefer Redis and fall back to the database with a cache
// refill; terminal writes flow to the database through a background batcher.
type HybridJobStore struct {
	hot    Store
	cold   Store
	sync   chan *models.TranscriptionJob
	stop   chan struct{}
	logger hclog.Logger
}

// NewHybridJobStore wires the two tiers and starts the sync worker.
func NewHybridJobStore(hot, cold Store, logger hclog.Logger) *HybridJobStore {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &HybridJobStore{
		hot:    hot,
		cold:   cold,
		sync:   make(chan *models.TranscriptionJob, syncQueueSize),
		stop:   make(chan struct{}),
		logger: logger,
	}
	go s.syncWorker()
	return s
}

// Save writes the hot tier immediately; terminal jobs also queue for the
// cold tier. A hot-tier failure is logged, not fatal, because the cold tier
// still gets the record.
func (s *HybridJobStore) Save(job *models.TranscriptionJob) error {
	if err := s.hot.Save(job); err != nil {
		s.logger.Warn("hot tier save failed", "job", job.JobID, "error", err)
	}
	if isTerminal(job.Status) {
		s.queueSync(job)
	}
	return nil
}

// Get prefers the hot tier and refills it on a cold-tier hit.
func (s *HybridJobStore) Get(jobID string) (*models.TranscriptionJob, error) {
	job, err := s.hot.Get(jobID)
	if err == nil {
		return job, nil
	}

	job, err = s.cold.Get(jobID)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.hot.Save(job); err != nil {
			s.logger.Warn("cache refill failed", "job", job.JobID, "error", err)
		}
	}()
	return job, nil
}

// Update applies to the hot tier, falling back to the cold tier when Redis
// is down. Terminal transitions queue for durable sync.
func (s *HybridJobStore) Update(jobID string, fn func(*models.TranscriptionJob)) error {
	if err := s.hot.Update(jobID, fn); err != nil {
		s.logger.Warn("hot tier update failed, using cold tier", "job", jobID, "error", err)
		return s.cold.Update(jobID, fn)
	}

	if job, err := s.hot.Get(jobID); err == nil && isTerminal(job.Status) {
		s.queueSync(job)
	}
	return nil
}

// List serves from the hot tier, degrading to the cold tier on failure.
func (s *HybridJobStore) List() ([]*models.TranscriptionJob, error) {
	jobs, err := s.hot.List()
	if err != nil {
		s.logger.Warn("hot tier list failed, using cold tier", "error", err)
		return s.cold.List()
	}
	return jobs, nil
}

// Delete removes from both tiers; the durable tier's result wins.
func (s *HybridJobStore) Delete(jobID string) error {
	if err := s.hot.Delete(jobID); err != nil {
		s.logger.Warn("hot tier delete failed", "job", jobID, "error", err)
	}
	return s.cold.Delete(jobID)
}

// Close drains the sync queue, bounded by drainTimeout, then closes both
// tiers.
func (s *HybridJobStore) Close() error {
	close(s.stop)

	deadline := time.After(drainTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

drain:
	for {
		select {
		case <-deadline:
			s.logger.Warn("sync queue drain timed out", "pending", len(s.sync))
			break drain
		case <-ticker.C:
			if len(s.sync) == 0 {
				break drain
			}
		}
	}

	s.hot.Close()
	return s.cold.Close()
}

func isTerminal(status models.JobStatus) bool {
	return status == models.StatusCompleted || status == models.StatusFailed
}

// queueSync hands a job to the batcher, writing synchronously when the
// queue is full so terminal records are never dropped.
func (s *HybridJobStore) queueSync(job *models.TranscriptionJob) {
	select {
	case s.sync <- job:
	default:
		if err := s.cold.Save(job); err != nil {
			s.logger.Error("synchronous cold tier save failed", "job", job.JobID, "error", err)
		}
	}
}

// syncWorker batches terminal jobs into the cold tier.
func (s *HybridJobStore) syncWorker() {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	batch := make([]*models.TranscriptionJob, 0, syncBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		saved := 0
		for _, job := range batch {
			if err := s.cold.Save(job); err != nil {
				s.logger.Error("cold tier sync failed", "job", job.JobID, "error", err)
				continue
			}
			saved++
		}
		s.logger.Debug("synced batch to cold tier", "saved", saved, "of", len(batch))
		batch = batch[:0]
	}

	for {
		select {
		case job := <-s.sync:
			batch = append(batch, job)
			if len(batch) >= syncBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stop:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case job := <-s.sync:
					batch = append(batch, job)
				default:
					flush()
					return
				}
			}
		}
	}
}
