package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisQueue(t *testing.T, cfg Config) (*Queue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), rdb
}

func decodeJobs(t *testing.T, raws []string) []Job {
	t.Helper()
	jobs := make([]Job, 0, len(raws))
	for _, raw := range raws {
		var job Job
		require.NoError(t, json.Unmarshal([]byte(raw), &job))
		jobs = append(jobs, job)
	}
	return jobs
}

func listJobs(t *testing.T, rdb *redis.Client, key string) []Job {
	t.Helper()
	raws, err := rdb.LRange(context.Background(), key, 0, -1).Result()
	require.NoError(t, err)
	return decodeJobs(t, raws)
}

func delayedJobs(t *testing.T, rdb *redis.Client, key string) []Job {
	t.Helper()
	raws, err := rdb.ZRange(context.Background(), key, 0, -1).Result()
	require.NoError(t, err)
	return decodeJobs(t, raws)
}

func claimOne(t *testing.T, w *Worker) (string, Job) {
	t.Helper()
	raw, err := w.claim(t.Context())
	require.NoError(t, err)
	jobs := decodeJobs(t, []string{raw})
	return raw, jobs[0]
}

func TestQueue_EnqueueClaimComplete(t *testing.T) {
	q, rdb := newRedisQueue(t, Config{Name: "mail"})
	w := NewWorker(q)

	jobID, err := q.Enqueue(t.Context(), "send-welcome-email", map[string]string{"userId": "u-1"})
	require.NoError(t, err)

	raw, job := claimOne(t, w)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, 1, job.Attempt)

	stats, err := q.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Stats{Processing: 1}, stats)
	claimedAt, err := rdb.ZScore(t.Context(), q.keys.claimed, raw).Result()
	require.NoError(t, err)
	assert.InDelta(t, float64(time.Now().UnixMilli()), claimedAt, float64(time.Minute.Milliseconds()))

	filed, err := w.finish(t.Context(), raw, settle(job, nil, time.Now(), q.cfg.BackoffBase))
	require.NoError(t, err)
	assert.True(t, filed)

	stats, err = q.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Zero(t, rdb.ZCard(t.Context(), q.keys.claimed).Val())
	completed := listJobs(t, rdb, q.keys.completed)
	require.Len(t, completed, 1)
	assert.Equal(t, jobID, completed[0].ID)
}

func TestWorker_ClaimEmptyQueue(t *testing.T) {
	q, _ := newRedisQueue(t, Config{PollInterval: time.Second})

	_, err := NewWorker(q).claim(t.Context())
	assert.ErrorIs(t, err, redis.Nil)
}

func TestWorker_RetryIsPromotedWhenDue(t *testing.T) {
	q, rdb := newRedisQueue(t, Config{BackoffBase: 2 * time.Second})
	w := NewWorker(q)

	_, err := q.Enqueue(t.Context(), "send-welcome-email", map[string]string{"userId": "u-1"})
	require.NoError(t, err)
	raw, job := claimOne(t, w)

	now := time.Now()
	out := settle(job, errors.New("smtp down"), now, q.cfg.BackoffBase)
	filed, err := w.finish(t.Context(), raw, out)
	require.NoError(t, err)
	assert.True(t, filed)

	delayed := delayedJobs(t, rdb, q.keys.delayed)
	require.Len(t, delayed, 1)
	assert.Equal(t, 2, delayed[0].Attempt)
	assert.Equal(t, "smtp down", delayed[0].LastError)

	n, err := w.promote(t.Context(), now)
	require.NoError(t, err)
	assert.Zero(t, n, "not due yet")

	n, err = w.promote(t.Context(), out.retryAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ready := listJobs(t, rdb, q.keys.ready)
	require.Len(t, ready, 1)
	assert.Equal(t, job.ID, ready[0].ID)
	assert.Equal(t, 2, ready[0].Attempt)
}

func TestWorker_ReclaimTimedOutJob(t *testing.T) {
	q, rdb := newRedisQueue(t, Config{JobTimeout: time.Minute, BackoffBase: 2 * time.Second})
	w := NewWorker(q)

	_, err := q.Enqueue(t.Context(), "send-welcome-email", map[string]string{"userId": "u-1"})
	require.NoError(t, err)
	raw, job := claimOne(t, w)

	n, err := w.reclaim(t.Context(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n, "still within the timeout")

	n, err = w.reclaim(t.Context(), time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := q.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Stats{Delayed: 1}, stats)
	assert.Zero(t, rdb.ZCard(t.Context(), q.keys.claimed).Val())

	delayed := delayedJobs(t, rdb, q.keys.delayed)
	require.Len(t, delayed, 1)
	assert.Equal(t, job.ID, delayed[0].ID)
	assert.Equal(t, 2, delayed[0].Attempt)
	assert.Equal(t, errJobTimeout.Error(), delayed[0].LastError)

	// the original worker finishing late must not file the job a second time
	filed, err := w.finish(t.Context(), raw, settle(job, nil, time.Now(), q.cfg.BackoffBase))
	require.NoError(t, err)
	assert.False(t, filed)
	assert.Empty(t, listJobs(t, rdb, q.keys.completed))
}

func TestWorker_ReclaimDeadLettersLastAttempt(t *testing.T) {
	q, rdb := newRedisQueue(t, Config{JobTimeout: time.Minute, MaxAttempts: 1})
	w := NewWorker(q)

	_, err := q.Enqueue(t.Context(), "send-welcome-email", map[string]string{"userId": "u-1"})
	require.NoError(t, err)
	claimOne(t, w)

	n, err := w.reclaim(t.Context(), time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	failed := listJobs(t, rdb, q.keys.failed)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Attempt)
	assert.Zero(t, rdb.ZCard(t.Context(), q.keys.delayed).Val())
}

func TestWorker_ReclaimStampsUnrecordedClaims(t *testing.T) {
	q, rdb := newRedisQueue(t, Config{JobTimeout: time.Minute})
	w := NewWorker(q)

	// a worker that died between taking the job and recording the claim
	job, err := q.newJob("send-welcome-email", map[string]string{"userId": "u-1"})
	require.NoError(t, err)
	raw, err := json.Marshal(job)
	require.NoError(t, err)
	require.NoError(t, rdb.LPush(t.Context(), q.keys.processing, raw).Err())

	now := time.Now()
	n, err := w.reclaim(t.Context(), now)
	require.NoError(t, err)
	assert.Zero(t, n)
	stamped, err := rdb.ZScore(t.Context(), q.keys.claimed, string(raw)).Result()
	require.NoError(t, err)
	assert.Equal(t, float64(now.UnixMilli()), stamped)

	n, err = w.reclaim(t.Context(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, rdb.LLen(t.Context(), q.keys.processing).Val())
}

func TestWorker_ReclaimPrunesOrphanedClaims(t *testing.T) {
	q, rdb := newRedisQueue(t, Config{JobTimeout: time.Minute})
	w := NewWorker(q)

	require.NoError(t, rdb.ZAdd(t.Context(), q.keys.claimed, redis.Z{Score: 1, Member: `{"id":"gone"}`}).Err())

	n, err := w.reclaim(t.Context(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, rdb.ZCard(t.Context(), q.keys.claimed).Val())
}

func TestWorker_DropRemovesUndecodableJob(t *testing.T) {
	q, rdb := newRedisQueue(t, Config{})
	w := NewWorker(q)

	require.NoError(t, rdb.LPush(t.Context(), q.keys.processing, "not json").Err())
	require.NoError(t, rdb.ZAdd(t.Context(), q.keys.claimed, redis.Z{Score: 1, Member: "not json"}).Err())

	w.process(t.Context(), "not json")

	assert.Zero(t, rdb.LLen(t.Context(), q.keys.processing).Val())
	assert.Zero(t, rdb.ZCard(t.Context(), q.keys.claimed).Val())
}

func TestWorker_ProcessRunsHandlerAndFilesOutcome(t *testing.T) {
	q, rdb := newRedisQueue(t, Config{})
	w := NewWorker(q)
	var got string
	w.Handle("send-welcome-email", func(_ context.Context, job *Job) error {
		var p struct {
			UserID string `json:"userId"`
		}
		if err := job.Decode(&p); err != nil {
			return err
		}
		got = p.UserID
		return nil
	})

	_, err := q.Enqueue(t.Context(), "send-welcome-email", map[string]string{"userId": "u-7"})
	require.NoError(t, err)
	raw, _ := claimOne(t, w)

	w.process(t.Context(), raw)

	assert.Equal(t, "u-7", got)
	assert.Len(t, listJobs(t, rdb, q.keys.completed), 1)
	assert.Zero(t, rdb.LLen(t.Context(), q.keys.processing).Val())
	assert.Zero(t, rdb.ZCard(t.Context(), q.keys.claimed).Val())
}
