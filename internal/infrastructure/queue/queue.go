// Package queue is a small Redis-backed job queue.
//
// Each queue owns these keys:
//
//	<prefix>:<name>:ready       list of encoded jobs waiting for a worker
//	<prefix>:<name>:processing  list of jobs a worker has taken
//	<prefix>:<name>:claimed     sorted set of taken jobs, scored by claim time (unix ms)
//	<prefix>:<name>:delayed     sorted set of jobs waiting for a retry, scored by due time (unix ms)
//	<prefix>:<name>:completed   last completed jobs, trimmed
//	<prefix>:<name>:failed      last jobs that exhausted their attempts, trimmed
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"partscatalog/internal/core/id"
	"partscatalog/pkg/logger"
)

const (
	keyPrefix = "jobs"

	// Retention of finished jobs, for inspection only.
	keepCompleted = 10
	keepFailed    = 5
)

// Job is the unit of work stored in Redis.
type Job struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"maxAttempts"`
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
	LastError   string          `json:"lastError,omitempty"`
}

// Decode unmarshals the payload into dst.
func (j *Job) Decode(dst any) error {
	if err := json.Unmarshal(j.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Name, err)
	}
	return nil
}

// Config tunes retries and workers.
type Config struct {
	// Name selects the key set, default "default"
	Name        string
	MaxAttempts int
	// BackoffBase is the delay before the first retry; it doubles per attempt
	BackoffBase  time.Duration
	Concurrency  int
	PollInterval time.Duration
	// JobTimeout is how long a job may stay taken before it counts as a
	// failed attempt and is retried, default 5m
	JobTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 5 * time.Minute
	}
	return c
}

type keys struct {
	ready, processing, claimed, delayed, completed, failed string
}

func newKeys(name string) keys {
	base := keyPrefix + ":" + name
	return keys{
		ready:      base + ":ready",
		processing: base + ":processing",
		claimed:    base + ":claimed",
		delayed:    base + ":delayed",
		completed:  base + ":completed",
		failed:     base + ":failed",
	}
}

// Queue enqueues jobs. Workers are created with NewWorker.
type Queue struct {
	rdb  redis.Cmdable
	cfg  Config
	keys keys
}

// New creates a queue on top of an existing Redis client.
func New(rdb redis.Cmdable, cfg Config) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{rdb: rdb, cfg: cfg, keys: newKeys(cfg.Name)}
}

// Enqueue pushes a job to the ready list and returns its id.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	job, err := q.newJob(name, payload)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.keys.ready, raw).Err(); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", name, err)
	}

	logger.Info(ctx, "job enqueued", "job_id", job.ID, "job", name, "queue", q.cfg.Name)
	return job.ID, nil
}

func (q *Queue) newJob(name string, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return &Job{
		ID:          id.New().String(),
		Name:        name,
		Payload:     body,
		Attempt:     1,
		MaxAttempts: q.cfg.MaxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}, nil
}

// Stats reports the length of each list, for health and debugging.
type Stats struct {
	Ready      int64 `json:"ready"`
	Processing int64 `json:"processing"`
	Delayed    int64 `json:"delayed"`
	Failed     int64 `json:"failed"`
}

// Stats reads the queue sizes in one round trip.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var ready, processing, delayed, failed *redis.IntCmd
	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		ready = p.LLen(ctx, q.keys.ready)
		processing = p.LLen(ctx, q.keys.processing)
		delayed = p.ZCard(ctx, q.keys.delayed)
		failed = p.LLen(ctx, q.keys.failed)
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{
		Ready:      ready.Val(),
		Processing: processing.Val(),
		Delayed:    delayed.Val(),
		Failed:     failed.Val(),
	}, nil
}

// Backoff is the delay before retrying after the given failed attempt:
// base, 2*base, 4*base ...
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 20 {
		attempt = 20
	}
	return base << (attempt - 1)
}
