package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/room"
)

const (
	// RoomsChannel carries room lifecycle events for other processes (worker, dashboards).
	RoomsChannel = "interview:rooms"
	publishTTL   = 5 * time.Second
)

// redisPayload is the message published to Redis.
type redisPayload struct {
	Event    string              `json:"event"`
	Instance string              `json:"instance,omitempty"`
	Data     room.LifecycleEvent `json:"data"`
	At       int64               `json:"at"`
}

// RedisPubSub publishes room lifecycle events to Redis and lets consumers subscribe to them.
type RedisPubSub struct {
	client   *redis.Client
	instance string
	logger   *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for room events. instance tags every
// published event with the id of the publishing server.
func NewRedisPubSub(client *redis.Client, instance string, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, instance: instance, logger: logger}
}

// HandleLifecycle publishes ev. Transcripts stay out of the feed; they travel through the
// archive queue instead.
func (r *RedisPubSub) HandleLifecycle(ctx context.Context, ev room.LifecycleEvent) error {
	ev.Transcript = nil
	body, err := json.Marshal(redisPayload{Event: string(ev.Kind), Instance: r.instance, Data: ev, At: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("marshal room event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTTL)
	defer cancel()
	if err := r.client.Publish(ctx, RoomsChannel, body).Err(); err != nil {
		return fmt.Errorf("publish room event: %w", err)
	}
	return nil
}

// SubscribeRoomEvents subscribes to the room event channel and calls handler for each
// event until cancel is called or ctx is done.
func (r *RedisPubSub) SubscribeRoomEvents(ctx context.Context, handler func(instance string, ev room.LifecycleEvent)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(ctx)
	pubsub := r.client.Subscribe(ctx, RoomsChannel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Warn("invalid room event payload", zap.Error(err))
					continue
				}
				handler(p.Instance, p.Data)
			}
		}
	}()
	return cancelCtx, nil
}
