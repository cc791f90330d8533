package sessionlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pairprep/backend/internal/models"
	"github.com/pairprep/backend/internal/room"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Repository handles room_events.
type Repository struct {
	pool     *pgxpool.Pool
	instance string
}

// NewRepository creates an activity log repository. instance is stored with events
// recorded directly through HandleLifecycle.
func NewRepository(pool *pgxpool.Pool, instance string) *Repository {
	return &Repository{pool: pool, instance: instance}
}

// Record inserts one lifecycle event.
func (r *Repository) Record(ctx context.Context, instance string, ev room.LifecycleEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO room_events (room_code, kind, conn_id, participants, problem, instance, occurred_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), $7)`,
		ev.Code, string(ev.Kind), ev.ConnID, ev.Participants, ev.Problem, instance, ev.At)
	if err != nil {
		return fmt.Errorf("insert room event: %w", err)
	}
	return nil
}

// HandleLifecycle records ev under this repository's instance id.
func (r *Repository) HandleLifecycle(ctx context.Context, ev room.LifecycleEvent) error {
	return r.Record(ctx, r.instance, ev)
}

// ListByRoom returns the most recent events for a room code, newest first.
func (r *Repository) ListByRoom(ctx context.Context, code string, limit int) ([]models.RoomEvent, error) {
	limit = clampLimit(limit)
	rows, err := r.pool.Query(ctx,
		`SELECT id, room_code, kind, COALESCE(conn_id, ''), participants, COALESCE(problem, ''), COALESCE(instance, ''), occurred_at, created_at
		 FROM room_events WHERE room_code = $1 ORDER BY occurred_at DESC LIMIT $2`,
		code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.RoomEvent{}
	for rows.Next() {
		var ev models.RoomEvent
		if err := rows.Scan(&ev.ID, &ev.RoomCode, &ev.Kind, &ev.ConnID, &ev.Participants, &ev.Problem, &ev.Instance, &ev.OccurredAt, &ev.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, ev)
	}
	return list, rows.Err()
}

// Activity aggregates the recorded history of a room code.
func (r *Repository) Activity(ctx context.Context, code string) (*models.RoomActivity, error) {
	const q = `SELECT COUNT(*) FILTER (WHERE kind = 'created'), COUNT(*) FILTER (WHERE kind = 'joined'), MIN(occurred_at), MAX(occurred_at)
		FROM room_events WHERE room_code = $1`
	var a models.RoomActivity
	if err := r.pool.QueryRow(ctx, q, code).Scan(&a.Sessions, &a.Joins, &a.FirstSeen, &a.LastSeen); err != nil {
		return nil, err
	}
	return &a, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
