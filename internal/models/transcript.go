package models

import (
	"time"

	"github.com/google/uuid"
)

// Transcript is an archived closed session (S3 object + metadata row).
type Transcript struct {
	ID           uuid.UUID `json:"id"`
	RoomCode     string    `json:"room_code"`
	Problem      string    `json:"problem"`
	Language     string    `json:"language"`
	MessageCount int       `json:"message_count"`
	S3Key        string    `json:"s3_key"`
	S3URL        string    `json:"s3_url,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	OpenedAt     time.Time `json:"opened_at"`
	ClosedAt     time.Time `json:"closed_at"`
	CreatedAt    time.Time `json:"created_at"`
	DownloadURL  string    `json:"download_url,omitempty"`
}
