package transcripts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairprep/backend/internal/models"
	"github.com/pairprep/backend/internal/room"
	"github.com/pairprep/backend/pkg/queue"
)

type fakeQueue struct {
	jobs []queue.TranscriptArchivePayload
	err  error
}

func (f *fakeQueue) EnqueueTranscript(_ context.Context, p queue.TranscriptArchivePayload) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, p)
	return nil
}

var (
	opened = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	closed = opened.Add(45 * time.Minute)
)

func closedEvent(chat []room.ChatMessage, code string) room.LifecycleEvent {
	return room.LifecycleEvent{
		Kind: room.LifecycleClosed,
		Code: "AB12CD",
		At:   closed,
		Transcript: &room.Transcript{
			Code:        "AB12CD",
			Problem:     "two-sum",
			Language:    room.LangPython,
			CodeContent: code,
			ChatLog:     chat,
			CreatedAt:   opened,
			ClosedAt:    closed,
		},
	}
}

func TestArchiverEnqueuesClosedSessions(t *testing.T) {
	q := &fakeQueue{}
	a := NewArchiver(q, nil)
	chat := []room.ChatMessage{{ID: "m1", SenderID: "a", DisplayName: "Alice", Text: "hi", Timestamp: opened}}

	require.NoError(t, a.HandleLifecycle(context.Background(), closedEvent(chat, "pass")))
	require.Len(t, q.jobs, 1)
	job := q.jobs[0]
	assert.Equal(t, "AB12CD", job.RoomCode)
	assert.Equal(t, "python", job.Language)
	assert.Equal(t, 1, job.MessageCount)
	assert.True(t, closed.Equal(job.ClosedAt))

	var doc room.Transcript
	require.NoError(t, json.Unmarshal(job.Document, &doc))
	assert.Equal(t, "pass", doc.CodeContent)
	assert.Equal(t, "hi", doc.ChatLog[0].Text)
}

func TestArchiverIgnoresOtherEvents(t *testing.T) {
	q := &fakeQueue{}
	a := NewArchiver(q, nil)
	ctx := context.Background()

	require.NoError(t, a.HandleLifecycle(ctx, room.LifecycleEvent{Kind: room.LifecycleJoined, Code: "AB12CD"}))
	require.NoError(t, a.HandleLifecycle(ctx, room.LifecycleEvent{Kind: room.LifecycleClosed, Code: "AB12CD"}))
	require.NoError(t, a.HandleLifecycle(ctx, closedEvent(nil, "")))
	assert.Empty(t, q.jobs)
}

func TestArchiverWrapsQueueErrors(t *testing.T) {
	a := NewArchiver(&fakeQueue{err: errors.New("redis down")}, nil)
	err := a.HandleLifecycle(context.Background(), closedEvent(nil, "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AB12CD")
}

type fakeLister struct {
	list []models.Transcript
	err  error
}

func (f *fakeLister) ListByRoom(context.Context, string) ([]models.Transcript, error) {
	out := append([]models.Transcript(nil), f.list...)
	return out, f.err
}

func (f *fakeLister) GetByID(_ context.Context, id uuid.UUID) (*models.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range f.list {
		if t.ID == id {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

type fakePresigner struct{ calls int }

func (f *fakePresigner) GeneratePresignedDownloadURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	f.calls++
	return fmt.Sprintf("https://%s/%s?sig=%d", bucket, key, f.calls), nil
}
func (f *fakePresigner) TranscriptsBucket() string    { return "bucket" }
func (f *fakePresigner) PresignExpire() time.Duration { return 15 * time.Minute }

func get(h *Handler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/rooms/:code/transcripts", h.ListByRoom)
	r.GET("/transcripts/:id", h.Get)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandlerCachesPresignedURLs(t *testing.T) {
	lister := &fakeLister{list: []models.Transcript{{RoomCode: "AB12CD", S3Key: "transcripts/AB12CD/1.json"}}}
	signer := &fakePresigner{}
	h := NewHandler(lister, signer, nil)

	for i := 0; i < 3; i++ {
		w := get(h, "/rooms/ab12cd/transcripts")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"download_url":"https://bucket/transcripts/AB12CD/1.json?sig=1"`)
	}
	assert.Equal(t, 1, signer.calls)
}

func TestHandlerWithoutS3(t *testing.T) {
	lister := &fakeLister{list: []models.Transcript{{RoomCode: "AB12CD", S3Key: "k"}}}
	w := get(NewHandler(lister, nil, nil), "/rooms/AB12CD/transcripts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "download_url")
}

func TestHandlerListError(t *testing.T) {
	w := get(NewHandler(&fakeLister{err: errors.New("db")}, nil, nil), "/rooms/AB12CD/transcripts")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandlerGet(t *testing.T) {
	id := uuid.New()
	lister := &fakeLister{list: []models.Transcript{{ID: id, RoomCode: "AB12CD", S3Key: "transcripts/AB12CD/1.json"}}}
	h := NewHandler(lister, &fakePresigner{}, nil)

	w := get(h, "/transcripts/"+id.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"download_url":"https://bucket/transcripts/AB12CD/1.json?sig=1"`)

	assert.Equal(t, http.StatusNotFound, get(h, "/transcripts/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/transcripts/not-a-uuid").Code)
}
