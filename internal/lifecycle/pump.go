// Package lifecycle moves room lifecycle events off the engine's hot path and hands them
// to slower sinks (Redis feed, activity log, transcript archive) in order.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/room"
)

const (
	defaultBuffer = 1024
	sinkTimeout   = 10 * time.Second
)

// Sink consumes lifecycle events.
type Sink interface {
	HandleLifecycle(ctx context.Context, ev room.LifecycleEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev room.LifecycleEvent) error

func (f SinkFunc) HandleLifecycle(ctx context.Context, ev room.LifecycleEvent) error {
	return f(ctx, ev)
}

type namedSink struct {
	name string
	sink Sink
}

// Pump is a buffered room.Observer. Observe never blocks: when the buffer is full the
// event is dropped and counted. Events reach every sink in the order they were observed.
type Pump struct {
	events  chan room.LifecycleEvent
	sinks   []namedSink
	logger  *zap.Logger
	mu      sync.Mutex
	dropped int
	done    chan struct{}
}

// NewPump creates a pump with the given buffer size.
func NewPump(buffer int, logger *zap.Logger) *Pump {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pump{
		events: make(chan room.LifecycleEvent, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Add registers a sink. Sinks must be added before Run.
func (p *Pump) Add(name string, sink Sink) {
	p.sinks = append(p.sinks, namedSink{name: name, sink: sink})
}

// Observe implements room.Observer.
func (p *Pump) Observe(ev room.LifecycleEvent) {
	select {
	case p.events <- ev:
	default:
		p.mu.Lock()
		p.dropped++
		n := p.dropped
		p.mu.Unlock()
		p.logger.Warn("lifecycle buffer full, dropping event",
			zap.String("kind", string(ev.Kind)), zap.String("code", ev.Code), zap.Int("dropped_total", n))
	}
}

// Dropped returns the number of events lost to a full buffer.
func (p *Pump) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Run delivers events until ctx is done, then drains what is already buffered.
func (p *Pump) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case ev := <-p.events:
			p.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-p.events:
					p.deliver(ev)
				default:
					p.logger.Info("lifecycle pump stopped")
					return
				}
			}
		}
	}
}

// Done is closed when Run has returned.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

func (p *Pump) deliver(ev room.LifecycleEvent) {
	for _, s := range p.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := s.sink.HandleLifecycle(ctx, ev); err != nil {
			p.logger.Warn("lifecycle sink failed",
				zap.String("sink", s.name), zap.String("kind", string(ev.Kind)), zap.String("code", ev.Code), zap.Error(err))
		}
		cancel()
	}
}
