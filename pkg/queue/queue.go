package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dailypoll/backend/internal/models"
)

const (
	// QueueEvents is the Redis list key for poll events waiting to be shipped to the remote log.
	QueueEvents = "dailypoll:events"
	// QueueDLQ is the dead-letter list for events that failed every attempt.
	QueueDLQ = "dailypoll:events:dlq"
	// MaxRetries is the number of attempts before an event is moved to the DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// PollTimeout bounds a single blocking pop so the consumer can observe shutdown.
	PollTimeout = 5 * time.Second
)

// Job is the envelope stored in the list.
type Job struct {
	ID        string       `json:"id"`
	Event     models.Event `json:"event"`
	Attempt   int          `json:"attempt"`
	CreatedAt time.Time    `json:"created_at"`
}

// Queue enqueues and dequeues events via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed event queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// AppendEvent enqueues evt for the worker. It satisfies the event mirror's sink contract.
func (q *Queue) AppendEvent(ctx context.Context, evt models.Event) error {
	job := Job{
		ID:        uuid.New().String(),
		Event:     evt,
		CreatedAt: time.Now(),
	}
	if err := q.push(ctx, QueueEvents, &job); err != nil {
		return err
	}
	q.logger.Debug("enqueued event", zap.String("job_id", job.ID), zap.String("type", string(evt.Type)), zap.Int64("poll_id", evt.PollID))
	return nil
}

// Dequeue waits up to PollTimeout for a job. A nil job with nil error means nothing arrived.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, PollTimeout, QueueEvents).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, QueueEvents, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Len reports how many events are waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueEvents).Result()
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}
