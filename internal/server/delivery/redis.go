// Package delivery hands subscriber notification jobs to the mail delivery
// side through a Redis stream.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultStream = "pubflow:notifications"

// RedisQueue appends notification jobs to a capped Redis stream.
type RedisQueue struct {
	client *redis.Client
	stream string
	maxLen int64
	logger logging.Logger
}

// NewRedisQueue builds a queue writing to stream. A positive maxLen trims the
// stream approximately to that many entries on every append.
func NewRedisQueue(client *redis.Client, stream string, maxLen int64, logger logging.Logger) *RedisQueue {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisQueue{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger.With("module", "delivery"),
	}
}

// Enqueue appends job to the stream and returns once Redis acknowledged it.
func (q *RedisQueue) Enqueue(ctx context.Context, job *models.NotificationJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			"job_id":   job.ID,
			"event":    string(job.Event),
			"entry_id": job.EntryID,
			"job":      string(payload),
		},
	}
	if q.maxLen > 0 {
		args.MaxLen = q.maxLen
		args.Approx = true
	}

	id, err := q.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("publish to stream: %w", err)
	}

	q.logger.Debug(ctx, "notification job enqueued",
		"job_id", job.ID, "entry_id", job.EntryID, "stream_id", id, "recipients", len(job.Recipients))
	return nil
}

// Ping checks connectivity to Redis.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
