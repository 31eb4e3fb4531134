package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

const ledgerMovementColumns = `id, user_id, withdrawal_id, kind, amount,
	closing_before, closing_after, created_at`

type LedgerMovementRepository struct {
	db *sql.DB
}

func NewLedgerMovementRepository(db *sql.DB) *LedgerMovementRepository {
	return &LedgerMovementRepository{db: db}
}

func (r *LedgerMovementRepository) Create(ctx context.Context, tx *sql.Tx, m *domain.LedgerMovement) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_movements (
			id, user_id, withdrawal_id, kind, amount, closing_before, closing_after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.UserID, m.WithdrawalID, m.Kind,
		m.Amount, m.ClosingBefore, m.ClosingAfter, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LedgerMovementRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerMovement, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_movements WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerMovementColumns+` FROM ledger_movements
		WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	var movements []domain.LedgerMovement
	for rows.Next() {
		m, err := scanLedgerMovement(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByUser: scan: %w", err)
		}
		movements = append(movements, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByUser: rows: %w", err)
	}
	return movements, total, nil
}

func scanLedgerMovement(s scanner) (*domain.LedgerMovement, error) {
	var m domain.LedgerMovement
	err := s.Scan(
		&m.ID, &m.UserID, &m.WithdrawalID, &m.Kind, &m.Amount,
		&m.ClosingBefore, &m.ClosingAfter, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
