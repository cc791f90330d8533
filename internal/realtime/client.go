package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/room"
)

// Client represents a single WebSocket connection. Its ID is the participant handle
// used by the room engine.
type Client struct {
	ID          string
	ConnectedAt time.Time
	hub         *Hub
	conn        *websocket.Conn
	send        chan WSMessage
	done        chan struct{}
	logger      *zap.Logger
}

// Send queues msg for the write pump without blocking.
func (c *Client) Send(msg WSMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
func ServeWs(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:          uuid.New().String(),
			ConnectedAt: time.Now(),
			hub:         hub,
			conn:        conn,
			send:        make(chan WSMessage, hub.opts.SendBuffer),
			done:        make(chan struct{}),
			logger:      hub.logger,
		}
		hub.register(client)
		go client.writePump()
		client.readPump(c.Request.Context())
	}
}

// readPump processes frames sequentially, so requests from one connection are handled
// in the order they were sent.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.disconnect(c)
		close(c.done)
		_ = c.conn.Close()
	}()

	pongWait := c.hub.opts.PongWait
	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			if out, ok, _ := replyMessage("", room.Fail(room.ErrInvalidInput)); ok {
				c.Send(out)
			}
			continue
		}
		c.hub.handle(ctx, c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	writeWait := c.hub.opts.WriteWait
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
