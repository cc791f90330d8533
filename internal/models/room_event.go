package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomEvent is one recorded lifecycle transition of an interview room.
type RoomEvent struct {
	ID           uuid.UUID `json:"id"`
	RoomCode     string    `json:"room_code"`
	Kind         string    `json:"kind"`
	ConnID       string    `json:"conn_id,omitempty"`
	Participants int       `json:"participants"`
	Problem      string    `json:"problem,omitempty"`
	Instance     string    `json:"instance,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoomActivity aggregates recorded events for one room code.
type RoomActivity struct {
	Sessions  int        `json:"sessions"`
	Joins     int        `json:"joins"`
	FirstSeen *time.Time `json:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}
