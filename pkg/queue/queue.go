package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/logging"
)

// ErrJobNotFound is returned when a job record does not exist or its
// retention window has passed.
var ErrJobNotFound = errors.New("job not found")

// recordTTL is how long finished job records remain queryable.
const recordTTL = 24 * time.Hour

// Queue is the Redis-backed job queue. Each category has its own waiting
// list; the atomic list pop is what guarantees a job is claimed by exactly
// one worker.
type Queue struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// Stats summarizes queue depth per category.
type Stats struct {
	Waiting map[Category]int64 `json:"waiting"`
	Active  map[Category]int64 `json:"active"`
}

// NewQueue creates a job queue on an existing Redis client.
func NewQueue(client *redis.Client) *Queue {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &Queue{
		redis:  client,
		logger: logging.NewLogger("queue"),
	}
}

func queueKey(c Category) string  { return "jobs:queue:" + string(c) }
func activeKey(c Category) string { return "jobs:active:" + string(c) }
func recordKey(id string) string  { return "jobs:record:" + id }

// Enqueue adds a job for the request's category and returns its record.
func (q *Queue) Enqueue(ctx context.Context, req Request) (*Job, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	cat := req.Category()
	if !cat.Valid() {
		return nil, fmt.Errorf("unknown job category %q", cat)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Category:  cat,
		Request:   req,
		Status:    StatusWaiting,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.saveRecord(ctx, job); err != nil {
		return nil, err
	}
	if err := q.redis.LPush(ctx, queueKey(cat), job.ID).Err(); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	JobsEnqueued.WithLabelValues(string(cat)).Inc()
	q.logger.Info().
		Str("job_id", job.ID).
		Str("category", string(cat)).
		Msg("Job enqueued")
	return job, nil
}

// Claim blocks up to timeout for the next job in the category and marks it
// active. Returns (nil, nil) when the timeout elapses with no work. The
// blocking pop is atomic, so two workers can never claim the same job.
func (q *Queue) Claim(ctx context.Context, cat Category, timeout time.Duration) (*Job, error) {
	vals, err := q.redis.BRPop(ctx, timeout, queueKey(cat)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	id := vals[1]

	job, err := q.Job(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load claimed job %s: %w", id, err)
	}

	job.Status = StatusActive
	job.StartedAt = time.Now().UTC()
	if err := q.saveRecord(ctx, job); err != nil {
		return nil, err
	}
	if err := q.redis.SAdd(ctx, activeKey(cat), id).Err(); err != nil {
		return nil, fmt.Errorf("mark job active: %w", err)
	}

	q.logger.Debug().
		Str("job_id", id).
		Str("category", string(cat)).
		Msg("Job claimed")
	return job, nil
}

// UpdateProgress advances the job's progress. Progress is clamped to
// 0-100 and never moves backwards.
func (q *Queue) UpdateProgress(ctx context.Context, id string, progress int) error {
	job, err := q.Job(ctx, id)
	if err != nil {
		return err
	}
	if progress > 100 {
		progress = 100
	}
	if progress <= job.Progress {
		return nil
	}
	job.Progress = progress
	return q.saveRecord(ctx, job)
}

// Complete marks the job finished with the given result summary.
func (q *Queue) Complete(ctx context.Context, id string, result any) error {
	job, err := q.Job(ctx, id)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	job.Status = StatusCompleted
	job.Progress = 100
	job.Result = raw
	job.CompletedAt = time.Now().UTC()
	if err := q.finishRecord(ctx, job); err != nil {
		return err
	}

	q.logger.Info().
		Str("job_id", id).
		Str("category", string(job.Category)).
		Dur("duration", job.CompletedAt.Sub(job.StartedAt)).
		Msg("Job completed")
	return nil
}

// Fail marks the job failed with the given reason.
func (q *Queue) Fail(ctx context.Context, id string, reason string) error {
	job, err := q.Job(ctx, id)
	if err != nil {
		return err
	}

	job.Status = StatusFailed
	job.Error = reason
	job.CompletedAt = time.Now().UTC()
	if err := q.finishRecord(ctx, job); err != nil {
		return err
	}

	q.logger.Error().
		Str("job_id", id).
		Str("category", string(job.Category)).
		Str("reason", reason).
		Msg("Job failed")
	return nil
}

// Job returns the stored record for the given job ID.
func (q *Queue) Job(ctx context.Context, id string) (*Job, error) {
	data, err := q.redis.Get(ctx, recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load job record: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job record: %w", err)
	}
	return &job, nil
}

// QueueStats reports waiting and active counts per category.
func (q *Queue) QueueStats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Waiting: make(map[Category]int64),
		Active:  make(map[Category]int64),
	}
	for _, cat := range Categories() {
		waiting, err := q.redis.LLen(ctx, queueKey(cat)).Result()
		if err != nil {
			return stats, fmt.Errorf("queue depth for %s: %w", cat, err)
		}
		active, err := q.redis.SCard(ctx, activeKey(cat)).Result()
		if err != nil {
			return stats, fmt.Errorf("active count for %s: %w", cat, err)
		}
		stats.Waiting[cat] = waiting
		stats.Active[cat] = active
		JobsWaiting.WithLabelValues(string(cat)).Set(float64(waiting))
	}
	return stats, nil
}

// saveRecord writes the job record with its retention TTL.
func (q *Queue) saveRecord(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	if err := q.redis.Set(ctx, recordKey(job.ID), data, recordTTL).Err(); err != nil {
		return fmt.Errorf("save job record: %w", err)
	}
	return nil
}

// finishRecord saves a terminal record, clears the active marker, and
// updates the outcome metrics.
func (q *Queue) finishRecord(ctx context.Context, job *Job) error {
	if err := q.saveRecord(ctx, job); err != nil {
		return err
	}
	if err := q.redis.SRem(ctx, activeKey(job.Category), job.ID).Err(); err != nil {
		return fmt.Errorf("clear active marker: %w", err)
	}

	JobsCompleted.WithLabelValues(string(job.Category), string(job.Status)).Inc()
	if !job.StartedAt.IsZero() {
		JobDuration.WithLabelValues(string(job.Category)).Observe(job.CompletedAt.Sub(job.StartedAt).Seconds())
	}
	return nil
}
