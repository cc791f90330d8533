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
)

const (
	// QueueTranscripts is the Redis list key for transcript archive jobs.
	QueueTranscripts = "worker:transcripts"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second

	dequeueWait = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeTranscriptArchive JobType = "transcript_archive"
)

// TranscriptArchivePayload is the payload for transcript archive jobs. Document is the
// JSON transcript uploaded verbatim.
type TranscriptArchivePayload struct {
	RoomCode     string          `json:"room_code"`
	Problem      string          `json:"problem"`
	Language     string          `json:"language"`
	MessageCount int             `json:"message_count"`
	OpenedAt     time.Time       `json:"opened_at"`
	ClosedAt     time.Time       `json:"closed_at"`
	Document     json.RawMessage `json:"document"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJob wraps payload in an envelope.
func NewJob(typ JobType, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		CreatedAt: time.Now(),
	}, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue over the transcript list.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, key: QueueTranscripts, logger: logger}
}

// EnqueueTranscript enqueues a transcript archive job.
func (q *Queue) EnqueueTranscript(ctx context.Context, payload TranscriptArchivePayload) error {
	job, err := NewJob(JobTypeTranscriptArchive, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, q.key, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued transcript job", zap.String("job_id", job.ID), zap.String("code", payload.RoomCode))
	return nil
}

// Dequeue waits briefly for a job. It returns (nil, nil) when none arrived so callers can
// re-check their context.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, dequeueWait, q.key).Result()
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
	if err := q.push(ctx, q.key, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Len returns the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}
