package sessionlog

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/models"
	"github.com/pairprep/backend/internal/room"
	"github.com/pairprep/backend/pkg/response"
)

// Source is the read side of the activity log.
type Source interface {
	ListByRoom(ctx context.Context, code string, limit int) ([]models.RoomEvent, error)
	Activity(ctx context.Context, code string) (*models.RoomActivity, error)
}

// Handler handles GET /rooms/:code/activity.
type Handler struct {
	src    Source
	logger *zap.Logger
}

// NewHandler creates an activity log handler.
func NewHandler(src Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{src: src, logger: logger}
}

// GetActivity handles GET /rooms/:code/activity?limit=N.
func (h *Handler) GetActivity(c *gin.Context) {
	code := room.NormalizeCode(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "invalid room code")
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	ctx := c.Request.Context()
	events, err := h.src.ListByRoom(ctx, code, limit)
	if err != nil {
		h.logger.Error("list room events", zap.String("code", code), zap.Error(err))
		response.Internal(c, "failed to list activity")
		return
	}
	summary, err := h.src.Activity(ctx, code)
	if err != nil {
		h.logger.Error("room activity", zap.String("code", code), zap.Error(err))
		response.Internal(c, "failed to load activity")
		return
	}
	response.OK(c, gin.H{"code": code, "summary": summary, "events": events})
}
