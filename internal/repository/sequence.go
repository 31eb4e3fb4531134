package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

type SequenceRepository struct {
	db *sql.DB
}

func NewSequenceRepository(db *sql.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next increments the counter for prefix and returns the issued value. The
// upsert takes a row lock that is held until tx ends, so concurrent callers
// on the same prefix serialize and never observe the same value.
func (r *SequenceRepository) Next(ctx context.Context, tx *sql.Tx, prefix string) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO sequence_counters (prefix, last_issued, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (prefix) DO UPDATE
		SET last_issued = sequence_counters.last_issued + 1, updated_at = now()
		RETURNING last_issued`,
		prefix,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("Next: %s: %w: %w", prefix, domain.ErrSequenceAllocationFailed, mapPQError(err))
	}
	return n, nil
}

// Current reports the last issued value for prefix, or 0 before the first.
func (r *SequenceRepository) Current(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT last_issued FROM sequence_counters WHERE prefix = $1), 0)`,
		prefix,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("Current: %w", err)
	}
	return n, nil
}
