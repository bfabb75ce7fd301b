package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsonify/vox/pkg/models"
)

// flakyStore wraps the in-memory store and can be forced to fail.
type flakyStore struct {
	*JobStore
	mu   sync.Mutex
	down bool
}

func newFlakyStore() *flakyStore { return &flakyStore{JobStore: NewJobStore()} }

func (f *flakyStore) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *flakyStore) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.down
}

func (f *flakyStore) Save(job *models.TranscriptionJob) error {
	if f.failing() {
		return errors.New("store unavailable")
	}
	return f.JobStore.Save(job)
}

func (f *flakyStore) Get(jobID string) (*models.TranscriptionJob, error) {
	if f.failing() {
		return nil, errors.New("store unavailable")
	}
	return f.JobStore.Get(jobID)
}

func (f *flakyStore) Update(jobID string, fn func(*models.TranscriptionJob)) error {
	if f.failing() {
		return errors.New("store unavailable")
	}
	return f.JobStore.Update(jobID, fn)
}

func (f *flakyStore) List() ([]*models.TranscriptionJob, error) {
	if f.failing() {
		return nil, errors.New("store unavailable")
	}
	return f.JobStore.List()
}

func TestHybridStoreTerminalJobsReachColdTier(t *testing.T) {
	hot := newFlakyStore()
	cold := newFlakyStore()
	s := NewHybridJobStore(hot, cold, nil)

	running := newJob("running", time.Now())
	running.Status = models.StatusProcessing
	require.NoError(t, s.Save(running))

	finished := newJob("finished", time.Now())
	finished.Status = models.StatusCompleted
	require.NoError(t, s.Save(finished))

	require.NoError(t, s.Close())

	// Only the terminal job is synced durably.
	_, err := cold.JobStore.Get("finished")
	assert.NoError(t, err)
	_, err = cold.JobStore.Get("running")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestHybridStoreGetFallsBackAndRefills(t *testing.T) {
	hot := newFlakyStore()
	cold := newFlakyStore()
	s := NewHybridJobStore(hot, cold, nil)
	defer s.Close()

	job := newJob("cold-only", time.Now())
	require.NoError(t, cold.JobStore.Save(job))

	got, err := s.Get("cold-only")
	require.NoError(t, err)
	assert.Equal(t, "cold-only", got.JobID)

	// The refill goroutine repopulates the hot tier.
	assert.Eventually(t, func() bool {
		_, err := hot.JobStore.Get("cold-only")
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestHybridStoreUpdateFallsBackWhenHotTierDown(t *testing.T) {
	hot := newFlakyStore()
	cold := newFlakyStore()
	s := NewHybridJobStore(hot, cold, nil)
	defer s.Close()

	job := newJob("j1", time.Now())
	require.NoError(t, cold.JobStore.Save(job))
	hot.setDown(true)

	require.NoError(t, s.Update("j1", func(j *models.TranscriptionJob) {
		j.Status = models.StatusCompleted
	}))

	got, err := cold.JobStore.Get("j1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestHybridStoreListDegradesToColdTier(t *testing.T) {
	hot := newFlakyStore()
	cold := newFlakyStore()
	s := NewHybridJobStore(hot, cold, nil)
	defer s.Close()

	require.NoError(t, cold.JobStore.Save(newJob("j1", time.Now())))
	hot.setDown(true)

	jobs, err := s.List()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "j1", jobs[0].JobID)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, isTerminal(models.StatusCompleted))
	assert.True(t, isTerminal(models.StatusFailed))
	assert.False(t, isTerminal(models.StatusPending))
	assert.False(t, isTerminal(models.StatusProcessing))
}
