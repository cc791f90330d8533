// Package status serves process health and room lookups over HTTP.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/room"
	"github.com/pairprep/backend/pkg/response"
)

// Rooms is the read side of the session store.
type Rooms interface {
	Info(code string) (room.Info, error)
	Count() int
}

// Connections reports open WebSocket connections.
type Connections interface {
	ConnectionCount() int
}

// OwnerLookup resolves which instance holds a room code.
type OwnerLookup interface {
	Owner(ctx context.Context, code string) (string, error)
}

// Handler handles GET /health and GET /rooms/:code.
type Handler struct {
	rooms    Rooms
	conns    Connections
	owners   OwnerLookup
	instance string
	started  time.Time
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler creates a status handler. owners may be nil when Redis is disabled.
func NewHandler(rooms Rooms, conns Connections, owners OwnerLookup, instance string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{rooms: rooms, conns: conns, owners: owners, instance: instance, started: time.Now(), now: time.Now, logger: logger}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	now := h.now()
	response.OK(c, gin.H{
		"status":      "ok",
		"instance":    h.instance,
		"uptime":      int64(now.Sub(h.started).Seconds()),
		"timestamp":   now.UTC(),
		"rooms":       h.rooms.Count(),
		"connections": h.conns.ConnectionCount(),
	})
}

// Room handles GET /rooms/:code. Rooms held by another instance answer 404 with the
// owning instance in data so a router can redirect.
func (h *Handler) Room(c *gin.Context) {
	code := room.NormalizeCode(c.Param("code"))
	info, err := h.rooms.Info(code)
	if err == nil {
		response.OK(c, info)
		return
	}
	if !errors.Is(err, room.ErrRoomNotFound) {
		response.Internal(c, err.Error())
		return
	}
	if h.owners != nil {
		owner, lookupErr := h.owners.Owner(c.Request.Context(), code)
		if lookupErr != nil {
			h.logger.Warn("room owner lookup failed", zap.String("code", code), zap.Error(lookupErr))
		} else if owner != "" && owner != h.instance {
			response.Fail(c, http.StatusNotFound, room.ErrRoomNotFound.Error(), gin.H{"instance": owner})
			return
		}
	}
	response.NotFound(c, room.ErrRoomNotFound.Error())
}
