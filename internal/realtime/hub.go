package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/room"
)

// Options holds the per-connection transport knobs.
type Options struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string // "*" or empty allows every origin
}

func (o Options) withDefaults() Options {
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 512 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	return o
}

// Hub owns the WebSocket side of the service: it upgrades connections, registers them,
// feeds their frames to the room engine and turns replies into ack frames.
type Hub struct {
	registry *Registry
	engine   *room.Engine
	upgrader websocket.Upgrader
	opts     Options
	logger   *zap.Logger
}

// NewHub creates a WebSocket hub.
func NewHub(reg *Registry, engine *room.Engine, opts Options, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	h := &Hub{
		registry: reg,
		engine:   engine,
		opts:     opts,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// ConnectionCount returns the number of live WebSocket connections.
func (h *Hub) ConnectionCount() int {
	return h.registry.Count()
}

// CloseAll drops every live connection. Each one then leaves its room the usual way,
// so closed rooms still emit their lifecycle events.
func (h *Hub) CloseAll() int {
	n := 0
	for _, s := range h.registry.Sinks() {
		if c, ok := s.(*Client); ok {
			_ = c.conn.Close()
			n++
		}
	}
	return n
}

func (h *Hub) register(c *Client) {
	h.registry.Register(c.ID, c)
	h.logger.Debug("client connected", zap.String("conn_id", c.ID))
}

// disconnect runs the implicit leave for c and forgets the connection.
func (h *Hub) disconnect(c *Client) {
	h.engine.Leave(c.ID)
	h.registry.Unregister(c.ID)
	h.logger.Debug("client disconnected", zap.String("conn_id", c.ID), zap.Duration("connected_for", time.Since(c.ConnectedAt)))
}

// handle processes one inbound frame from c.
func (h *Hub) handle(ctx context.Context, c *Client, msg WSMessage) {
	var reply *room.Reply
	req, err := Decode(msg)
	switch {
	case errors.Is(err, ErrUnknownEvent) && msg.ID == "":
		h.logger.Debug("ignoring unknown event", zap.String("conn_id", c.ID), zap.String("event", msg.Event))
		return
	case err != nil:
		reply = room.Fail(err)
	default:
		reply = h.engine.Handle(ctx, c.ID, req)
	}

	out, ok, err := replyMessage(msg.ID, reply)
	if err != nil {
		h.logger.Error("encode reply", zap.String("conn_id", c.ID), zap.String("event", msg.Event), zap.Error(err))
		return
	}
	if ok && !c.Send(out) {
		h.logger.Warn("send buffer full, dropping reply", zap.String("conn_id", c.ID), zap.String("event", msg.Event))
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			set[o] = true
		}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 || set["*"] {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
