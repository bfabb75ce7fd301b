package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jsonify/vox/pkg/models"
)

const (
	redisKeyPrefix = "vox:job:"
	redisIndexKey  = "vox:jobs:index"
)

// RedisJobStore keeps jobs in Redis with a TTL. A sorted set indexed by
// creation time backs List; index entries for expired jobs are pruned
// lazily.
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
	ctx    context.Context
}

// NewRedisJobStore connects and verifies the server is reachable.
func NewRedisJobStore(addr, password string, db int, ttl time.Duration) (*RedisJobStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisJobStore{client: client, ttl: ttl, ctx: ctx}, nil
}

func redisKey(jobID string) string { return redisKeyPrefix + jobID }

// Save writes the job JSON with the configured TTL and indexes it.
func (s *RedisJobStore) Save(job *models.TranscriptionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.JobID, err)
	}
	if err := s.client.Set(s.ctx, redisKey(job.JobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing job %s to redis: %w", job.JobID, err)
	}
	err = s.client.ZAdd(s.ctx, redisIndexKey, redis.Z{
		Score:  float64(job.CreatedAt.Unix()),
		Member: job.JobID,
	}).Err()
	if err != nil {
		return fmt.Errorf("indexing job %s: %w", job.JobID, err)
	}
	return nil
}

// Get fetches and decodes one job.
func (s *RedisJobStore) Get(jobID string) (*models.TranscriptionJob, error) {
	data, err := s.client.Get(s.ctx, redisKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading job %s from redis: %w", jobID, err)
	}
	var job models.TranscriptionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", jobID, err)
	}
	return &job, nil
}

// Update is read-modify-write. Job records have a single writer (the worker
// owning the job), so the non-atomic cycle is safe here.
func (s *RedisJobStore) Update(jobID string, fn func(*models.TranscriptionJob)) error {
	job, err := s.Get(jobID)
	if err != nil {
		return err
	}
	fn(job)
	return s.Save(job)
}

// List walks the index newest-first, pruning entries whose records expired.
func (s *RedisJobStore) List() ([]*models.TranscriptionJob, error) {
	jobIDs, err := s.client.ZRevRange(s.ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading job index: %w", err)
	}

	jobs := make([]*models.TranscriptionJob, 0, len(jobIDs))
	for _, id := range jobIDs {
		job, err := s.Get(id)
		if err != nil {
			s.client.ZRem(s.ctx, redisIndexKey, id)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Delete removes the record and its index entry.
func (s *RedisJobStore) Delete(jobID string) error {
	deleted, err := s.client.Del(s.ctx, redisKey(jobID)).Result()
	if err != nil {
		return fmt.Errorf("deleting job %s: %w", jobID, err)
	}
	if deleted == 0 {
		return ErrJobNotFound
	}
	s.client.ZRem(s.ctx, redisIndexKey, jobID)
	return nil
}

// Close releases the client connection pool.
func (s *RedisJobStore) Close() error {
	return s.client.Close()
}
