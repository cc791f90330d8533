package transcripts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pairprep/backend/internal/models"
)

const transcriptColumns = `id, room_code, problem, language, message_count, s3_key, COALESCE(s3_url, ''), size_bytes, opened_at, closed_at, created_at`

// Repository handles transcript persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a transcripts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a transcript row. A row with the same s3_key is left untouched.
func (r *Repository) Create(ctx context.Context, t *models.Transcript) error {
	const q = `INSERT INTO transcripts (room_code, problem, language, message_count, s3_key, s3_url, size_bytes, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		ON CONFLICT (s3_key) DO NOTHING
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, t.RoomCode, t.Problem, t.Language, t.MessageCount, t.S3Key, t.S3URL, t.SizeBytes, t.OpenedAt, t.ClosedAt).
		Scan(&t.ID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// ExistsByKey reports whether a transcript with s3Key was already recorded.
func (r *Repository) ExistsByKey(ctx context.Context, s3Key string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transcripts WHERE s3_key = $1)`, s3Key).Scan(&exists)
	return exists, err
}

// GetByID returns a transcript by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transcript, error) {
	q := `SELECT ` + transcriptColumns + ` FROM transcripts WHERE id = $1`
	t, err := scanTranscript(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListByRoom returns all transcripts of a room code, newest first.
func (r *Repository) ListByRoom(ctx context.Context, code string) ([]models.Transcript, error) {
	q := `SELECT ` + transcriptColumns + ` FROM transcripts WHERE room_code = $1 ORDER BY closed_at DESC`
	rows, err := r.pool.Query(ctx, q, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Transcript{}
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

func scanTranscript(row pgx.Row) (*models.Transcript, error) {
	var t models.Transcript
	err := row.Scan(&t.ID, &t.RoomCode, &t.Problem, &t.Language, &t.MessageCount, &t.S3Key, &t.S3URL, &t.SizeBytes, &t.OpenedAt, &t.ClosedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
