package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/room"
)

// EventRecorder stores room lifecycle events published by server instances.
type EventRecorder interface {
	Record(ctx context.Context, instance string, ev room.LifecycleEvent) error
}

// RoomEventConsumer persists events received from the room event feed.
type RoomEventConsumer struct {
	recorder EventRecorder
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRoomEventConsumer creates a consumer that writes through recorder.
func NewRoomEventConsumer(recorder EventRecorder, logger *zap.Logger) *RoomEventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomEventConsumer{recorder: recorder, timeout: 5 * time.Second, logger: logger}
}

// Handle records one event. Its signature matches the room feed subscription callback.
func (c *RoomEventConsumer) Handle(instance string, ev room.LifecycleEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.recorder.Record(ctx, instance, ev); err != nil {
		c.logger.Error("record room event failed",
			zap.String("code", ev.Code), zap.String("kind", string(ev.Kind)), zap.String("instance", instance), zap.Error(err))
		return
	}
	c.logger.Debug("room event recorded", zap.String("code", ev.Code), zap.String("kind", string(ev.Kind)))
}
