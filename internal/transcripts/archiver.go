// Package transcripts archives the final state of closed interview rooms.
package transcripts

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/room"
	"github.com/pairprep/backend/pkg/queue"
)

// Enqueuer accepts transcript archive jobs.
type Enqueuer interface {
	EnqueueTranscript(ctx context.Context, payload queue.TranscriptArchivePayload) error
}

// Archiver turns closed-room lifecycle events into archive jobs. Empty sessions
// (no chat and an untouched buffer) are skipped.
type Archiver struct {
	queue  Enqueuer
	logger *zap.Logger
}

// NewArchiver creates an archiver that enqueues on q.
func NewArchiver(q Enqueuer, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{queue: q, logger: logger}
}

// HandleLifecycle implements lifecycle.Sink.
func (a *Archiver) HandleLifecycle(ctx context.Context, ev room.LifecycleEvent) error {
	if ev.Kind != room.LifecycleClosed || ev.Transcript == nil {
		return nil
	}
	t := ev.Transcript
	if len(t.ChatLog) == 0 && t.CodeContent == "" {
		a.logger.Debug("skipping empty transcript", zap.String("code", t.Code))
		return nil
	}
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	payload := queue.TranscriptArchivePayload{
		RoomCode:     t.Code,
		Problem:      t.Problem,
		Language:     string(t.Language),
		MessageCount: len(t.ChatLog),
		OpenedAt:     t.CreatedAt,
		ClosedAt:     t.ClosedAt,
		Document:     doc,
	}
	if err := a.queue.EnqueueTranscript(ctx, payload); err != nil {
		return fmt.Errorf("enqueue transcript %s: %w", t.Code, err)
	}
	a.logger.Info("transcript queued", zap.String("code", t.Code), zap.Int("messages", payload.MessageCount))
	return nil
}
