package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

type DB struct {
	pool *sql.DB
}

func NewDB(pool *sql.DB) *DB {
	return &DB{pool: pool}
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := d.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	return tx, nil
}

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// uniqueViolation reports the constraint a 23505 error tripped.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// mapPQError turns retryable lock failures into domain.ErrConflict.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected:
			return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Message)
		}
	}
	return err
}
