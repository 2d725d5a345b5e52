package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	appctx "partscatalog/internal/core/context"
	"partscatalog/pkg/logger"
)

// Handler processes one job. A returned error schedules a retry until the
// job runs out of attempts.
type Handler func(ctx context.Context, job *Job) error

// promoteScript moves due jobs from the delayed set back to the ready list.
// Running it as a script keeps ZREM and LPUSH atomic across workers.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, job in ipairs(due) do
	redis.call('ZREM', KEYS[1], job)
	redis.call('LPUSH', KEYS[2], job)
end
return #due
`)

// finishScript files a taken job only if it is still in the processing list,
// so a job is filed once even when a reclaim races the worker running it.
// ARGV: raw job, encoded job, "delay" or "list", score or list length.
var finishScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 0 then
	redis.call('ZREM', KEYS[2], ARGV[1])
	return 0
end
redis.call('ZREM', KEYS[2], ARGV[1])
if ARGV[3] == 'delay' then
	redis.call('ZADD', KEYS[3], ARGV[4], ARGV[2])
else
	redis.call('LPUSH', KEYS[3], ARGV[2])
	redis.call('LTRIM', KEYS[3], 0, tonumber(ARGV[4]) - 1)
end
return 1
`)

// staleScript returns taken jobs claimed at or before the cutoff. Taken jobs
// without a claim time (the worker died between taking and stamping) are
// stamped now; claim entries whose job has left the processing list are pruned.
var staleScript = redis.NewScript(`
local present = {}
for _, job in ipairs(redis.call('LRANGE', KEYS[1], 0, -1)) do
	present[job] = true
	redis.call('ZADD', KEYS[2], 'NX', ARGV[1], job)
end
local stale = {}
for _, job in ipairs(redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[2], 'LIMIT', 0, ARGV[3])) do
	if present[job] then
		table.insert(stale, job)
	else
		redis.call('ZREM', KEYS[2], job)
	end
end
return stale
`)

const (
	promoteBatch = 100
	reclaimBatch = 100
)

// errJobTimeout is recorded on jobs reclaimed after their worker went away.
var errJobTimeout = errors.New("job timed out before its worker finished it")

// Worker pulls jobs from a Queue and dispatches them by name.
type Worker struct {
	q        *Queue
	handlers map[string]Handler
}

// NewWorker creates a worker for q. Register handlers before Run.
func NewWorker(q *Queue) *Worker {
	return &Worker{q: q, handlers: make(map[string]Handler)}
}

// Handle registers the handler for a job name.
func (w *Worker) Handle(name string, h Handler) {
	w.handlers[name] = h
	logger.Info(context.Background(), "registered job handler", "job", name)
}

// Run processes jobs with the configured concurrency until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.q.cfg
	logger.Info(ctx, "job worker started", "queue", cfg.Name, "concurrency", cfg.Concurrency)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.promoteLoop(ctx) })
	for i := 0; i < cfg.Concurrency; i++ {
		g.Go(func() error { return w.fetchLoop(ctx) })
	}

	err := g.Wait()
	logger.Info(context.Background(), "job worker stopped", "queue", cfg.Name)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// promoteLoop moves due retries to the ready list and reclaims timed-out jobs.
func (w *Worker) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		now := time.Now()
		if _, err := w.promote(ctx, now); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "promote delayed jobs failed", "error", err)
		}
		if _, err := w.reclaim(ctx, now); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "reclaim timed-out jobs failed", "error", err)
		}
	}
}

// promote moves jobs whose retry time has passed to the ready list.
func (w *Worker) promote(ctx context.Context, now time.Time) (int64, error) {
	n, err := promoteScript.Run(ctx, w.q.rdb,
		[]string{w.q.keys.delayed, w.q.keys.ready},
		unixMilli(now), promoteBatch,
	).Int64()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// reclaim treats jobs taken longer than JobTimeout ago as failed attempts:
// they are scheduled for retry, or dead-lettered when out of attempts.
// It returns how many jobs were filed.
func (w *Worker) reclaim(ctx context.Context, now time.Time) (int, error) {
	keys := w.q.keys
	cutoff := now.Add(-w.q.cfg.JobTimeout)
	stale, err := staleScript.Run(ctx, w.q.rdb,
		[]string{keys.processing, keys.claimed},
		unixMilli(now), unixMilli(cutoff), reclaimBatch,
	).StringSlice()
	if err != nil {
		return 0, fmt.Errorf("find timed-out jobs: %w", err)
	}

	filed := 0
	for _, raw := range stale {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			w.drop(ctx, raw, err)
			continue
		}
		out := settle(job, errJobTimeout, now, w.q.cfg.BackoffBase)
		ok, err := w.finish(ctx, raw, out)
		if err != nil {
			return filed, err
		}
		if !ok {
			continue
		}
		filed++
		logger.Warn(ctx, "reclaimed timed-out job",
			"job_id", job.ID, "job", job.Name, "attempt", job.Attempt, "dead_lettered", out.state == stateFailed)
	}
	return filed, nil
}

// claim waits up to PollInterval for a ready job, moves it to the processing
// list and records when it was taken. redis.Nil means nothing was ready.
func (w *Worker) claim(ctx context.Context) (string, error) {
	keys := w.q.keys
	raw, err := w.q.rdb.BLMove(ctx, keys.ready, keys.processing, "RIGHT", "LEFT", w.q.cfg.PollInterval).Result()
	if err != nil {
		return "", err
	}
	// A missing stamp is filled in by the next reclaim pass.
	if err := w.q.rdb.ZAdd(ctx, keys.claimed, redis.Z{Score: float64(time.Now().UnixMilli()), Member: raw}).Err(); err != nil {
		logger.Warn(ctx, "recording job claim failed", "error", err)
	}
	return raw, nil
}

func (w *Worker) fetchLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		raw, err := w.claim(ctx)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error(ctx, "fetch job failed", "queue", w.q.cfg.Name, "error", err)
			sleep(ctx, w.q.cfg.PollInterval)
			continue
		}
		w.process(ctx, raw)
	}
}

func (w *Worker) process(ctx context.Context, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.drop(ctx, raw, err)
		return
	}

	jobLog := logger.FromContext(ctx).With("job_id", job.ID, "job", job.Name, "attempt", job.Attempt)
	jobCtx := logger.WithLogger(appctx.WithTrace(ctx, appctx.NewTraceContext()), jobLog)

	logger.Info(jobCtx, "processing job")
	start := time.Now()
	runErr := w.run(jobCtx, &job)

	out := settle(job, runErr, time.Now(), w.q.cfg.BackoffBase)
	// Filing the outcome must survive shutdown, or the job waits for a reclaim.
	filed, err := w.finish(context.WithoutCancel(ctx), raw, out)
	if err != nil {
		logger.Error(jobCtx, "finishing job failed", "error", err)
		return
	}
	if !filed {
		logger.Warn(jobCtx, "job was reclaimed before it finished, result discarded", "error", runErr)
		return
	}

	switch out.state {
	case stateCompleted:
		logger.Info(jobCtx, "job completed", "duration_ms", time.Since(start).Milliseconds())
	case stateRetry:
		logger.Warn(jobCtx, "job failed, retry scheduled", "error", runErr, "retry_at", out.retryAt)
	case stateFailed:
		logger.Error(jobCtx, "job failed permanently", "error", runErr)
	}
}

// drop removes a job that cannot be decoded.
func (w *Worker) drop(ctx context.Context, raw string, cause error) {
	logger.Error(ctx, "dropping undecodable job", "error", cause)
	keys := w.q.keys
	_, err := w.q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, keys.processing, 1, raw)
		p.ZRem(ctx, keys.claimed, raw)
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "removing undecodable job failed", "error", err)
	}
}

// run calls the handler and turns panics into errors.
func (w *Worker) run(ctx context.Context, job *Job) (err error) {
	h, ok := w.handlers[job.Name]
	if !ok {
		return fmt.Errorf("no handler registered for job %q", job.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return h(ctx, job)
}

type state int

const (
	stateCompleted state = iota
	stateRetry
	stateFailed
)

type outcome struct {
	state   state
	job     Job
	retryAt time.Time
}

// settle decides what happens to a job after one attempt.
func settle(job Job, runErr error, now time.Time, base time.Duration) outcome {
	if runErr == nil {
		return outcome{state: stateCompleted, job: job}
	}
	job.LastError = runErr.Error()
	if job.Attempt >= job.MaxAttempts {
		return outcome{state: stateFailed, job: job}
	}
	retryAt := now.Add(Backoff(base, job.Attempt))
	job.Attempt++
	return outcome{state: stateRetry, job: job, retryAt: retryAt}
}

// finish takes the job out of the processing list and files it by outcome.
// It reports false when the job had already left the processing list.
func (w *Worker) finish(ctx context.Context, raw string, out outcome) (bool, error) {
	encoded, err := json.Marshal(out.job)
	if err != nil {
		return false, fmt.Errorf("encode job: %w", err)
	}

	keys := w.q.keys
	var target, mode string
	var arg any
	switch out.state {
	case stateCompleted:
		target, mode, arg = keys.completed, "list", keepCompleted
	case stateRetry:
		target, mode, arg = keys.delayed, "delay", unixMilli(out.retryAt)
	default:
		target, mode, arg = keys.failed, "list", keepFailed
	}

	n, err := finishScript.Run(ctx, w.q.rdb,
		[]string{keys.processing, keys.claimed, target},
		raw, encoded, mode, arg,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("file job: %w", err)
	}
	return n == 1, nil
}

func unixMilli(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
