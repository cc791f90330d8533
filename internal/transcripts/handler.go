package transcripts

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/pairprep/backend/internal/models"
	"github.com/pairprep/backend/internal/room"
	"github.com/pairprep/backend/pkg/response"
)

// Lister is the read side of the transcript archive.
type Lister interface {
	ListByRoom(ctx context.Context, code string) ([]models.Transcript, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transcript, error)
}

// Presigner signs download URLs for archived objects.
type Presigner interface {
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	TranscriptsBucket() string
	PresignExpire() time.Duration
}

// urlMargin keeps cached URLs from being served right before they expire.
const urlMargin = time.Minute

// Handler handles transcript HTTP endpoints. Presigned URLs are cached per object key.
type Handler struct {
	repo   Lister
	s3     Presigner
	urls   *cache.Cache
	logger *zap.Logger
}

// NewHandler creates a transcripts handler. s3 may be nil, in which case listings carry
// no download URLs.
func NewHandler(repo Lister, s3 Presigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := 10 * time.Minute
	if s3 != nil && s3.PresignExpire() > 2*urlMargin {
		ttl = s3.PresignExpire() - urlMargin
	}
	return &Handler{repo: repo, s3: s3, urls: cache.New(ttl, 2*ttl), logger: logger}
}

// ListByRoom handles GET /rooms/:code/transcripts.
func (h *Handler) ListByRoom(c *gin.Context) {
	code := room.NormalizeCode(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "invalid room code")
		return
	}
	ctx := c.Request.Context()
	list, err := h.repo.ListByRoom(ctx, code)
	if err != nil {
		h.logger.Error("list transcripts failed", zap.Error(err), zap.String("code", code))
		response.Internal(c, "failed to list transcripts")
		return
	}
	for i := range list {
		url, err := h.downloadURL(ctx, list[i].S3Key)
		if err != nil {
			h.logger.Warn("presign transcript failed", zap.Error(err), zap.String("key", list[i].S3Key))
			continue
		}
		list[i].DownloadURL = url
	}
	response.OK(c, gin.H{"code": code, "transcripts": list})
}

// Get handles GET /transcripts/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid transcript id")
		return
	}
	t, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get transcript failed", zap.Error(err), zap.String("id", id.String()))
		response.Internal(c, "failed to get transcript")
		return
	}
	if t == nil {
		response.NotFound(c, "transcript not found")
		return
	}
	if url, err := h.downloadURL(c.Request.Context(), t.S3Key); err == nil {
		t.DownloadURL = url
	} else {
		h.logger.Warn("presign transcript failed", zap.Error(err), zap.String("key", t.S3Key))
	}
	response.OK(c, t)
}

func (h *Handler) downloadURL(ctx context.Context, key string) (string, error) {
	if h.s3 == nil || key == "" {
		return "", nil
	}
	if x, found := h.urls.Get(key); found {
		return x.(string), nil
	}
	url, err := h.s3.GeneratePresignedDownloadURL(ctx, h.s3.TranscriptsBucket(), key, h.s3.PresignExpire())
	if err != nil {
		return "", err
	}
	h.urls.Set(key, url, cache.DefaultExpiration)
	return url, nil
}
