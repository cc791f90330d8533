package realtime

import (
	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/room"
)

// Dispatcher fans room events out to registered connections. It implements room.Broadcaster.
// Delivery is fire-and-forget: a connection whose send buffer is full loses the frame and
// is eventually dropped by its own ping/read deadlines.
type Dispatcher struct {
	reg    *Registry
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{reg: reg, logger: logger}
}

// ToOne sends ev to a single connection.
func (d *Dispatcher) ToOne(connID string, ev room.Event) {
	msg, ok := d.encode(ev)
	if !ok {
		return
	}
	d.deliver(connID, msg)
}

// ToAll sends ev to every connection bound to code.
func (d *Dispatcher) ToAll(code string, ev room.Event) {
	d.ToAllExcept(code, "", ev)
}

// ToAllExcept sends ev to every connection bound to code except senderID.
func (d *Dispatcher) ToAllExcept(code, senderID string, ev room.Event) {
	msg, ok := d.encode(ev)
	if !ok {
		return
	}
	for _, id := range d.reg.Members(code) {
		if id == senderID {
			continue
		}
		d.deliver(id, msg)
	}
}

func (d *Dispatcher) encode(ev room.Event) (WSMessage, bool) {
	msg, err := newMessage(ev.Name, "", ev.Payload)
	if err != nil {
		d.logger.Error("encode event", zap.String("event", ev.Name), zap.Error(err))
		return WSMessage{}, false
	}
	return msg, true
}

func (d *Dispatcher) deliver(connID string, msg WSMessage) {
	sink, ok := d.reg.Sink(connID)
	if !ok {
		return
	}
	if !sink.Send(msg) {
		d.logger.Warn("send buffer full, dropping frame", zap.String("conn_id", connID), zap.String("event", msg.Event))
	}
}
