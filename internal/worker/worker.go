package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/models"
	"github.com/pairprep/backend/pkg/queue"
	"github.com/pairprep/backend/pkg/storage"
)

// JobSource is the queue side the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Uploader stores transcript documents.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) (string, error)
	TranscriptsBucket() string
}

// TranscriptStore records archived transcripts.
type TranscriptStore interface {
	ExistsByKey(ctx context.Context, s3Key string) (bool, error)
	Create(ctx context.Context, t *models.Transcript) error
}

// TranscriptProcessor processes transcript archive jobs: upload the document to S3, then record the row.
type TranscriptProcessor struct {
	repo    TranscriptStore
	s3      Uploader
	queue   JobSource
	backoff time.Duration
	logger  *zap.Logger
}

// NewTranscriptProcessor creates a transcript archive processor.
func NewTranscriptProcessor(repo TranscriptStore, s3 Uploader, q JobSource, logger *zap.Logger) *TranscriptProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptProcessor{repo: repo, s3: s3, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one transcript archive job.
func (p *TranscriptProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTranscriptArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TranscriptArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.RoomCode == "" || len(payload.Document) == 0 {
		return fmt.Errorf("incomplete transcript payload for job %s", job.ID)
	}

	key := storage.TranscriptKey(payload.RoomCode, payload.ClosedAt)
	done, err := p.repo.ExistsByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("check transcript: %w", err)
	}
	if done {
		p.logger.Info("transcript already archived", zap.String("s3_key", key))
		return nil
	}

	size := int64(len(payload.Document))
	url, err := p.s3.Upload(ctx, p.s3.TranscriptsBucket(), key, storage.ContentTypeJSON, bytes.NewReader(payload.Document), size)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	t := &models.Transcript{
		RoomCode:     payload.RoomCode,
		Problem:      payload.Problem,
		Language:     payload.Language,
		MessageCount: payload.MessageCount,
		S3Key:        key,
		S3URL:        url,
		SizeBytes:    size,
		OpenedAt:     payload.OpenedAt,
		ClosedAt:     payload.ClosedAt,
	}
	if err := p.repo.Create(ctx, t); err != nil {
		p.logger.Error("record transcript failed", zap.Error(err), zap.String("s3_key", key))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("transcript archived", zap.String("code", payload.RoomCode), zap.String("s3_key", key), zap.Int64("bytes", size))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *TranscriptProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("transcript worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *TranscriptProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}
