package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

const trackColumns = `id, owner_user_id, title, created_at`

type TrackRepository struct {
	db *sql.DB
}

func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// GetForUpdate locks the track row. Split creation uses it to serialize
// concurrent allocations on the same track.
func (r *TrackRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Track, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE id = $1 FOR UPDATE`, id,
	)
	var t domain.Track
	err := row.Scan(&t.ID, &t.OwnerUserID, &t.Title, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", mapPQError(err))
	}
	return &t, nil
}
