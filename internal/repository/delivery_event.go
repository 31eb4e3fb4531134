package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

const deliveryEventColumns = `id, withdrawal_id, kind, status, attempts, last_error,
	last_attempt, created_at`

type DeliveryEventRepository struct {
	db *sql.DB
}

func NewDeliveryEventRepository(db *sql.DB) *DeliveryEventRepository {
	return &DeliveryEventRepository{db: db}
}

func (r *DeliveryEventRepository) Create(ctx context.Context, event *domain.DeliveryEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_events (
			id, withdrawal_id, kind, status, attempts, last_error, last_attempt, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.WithdrawalID, event.Kind, event.Status,
		event.Attempts, event.LastError, event.LastAttempt, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ClaimPending locks up to limit pending events for the lifetime of tx.
// SKIP LOCKED lets several workers poll the table without double-claiming.
func (r *DeliveryEventRepository) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.DeliveryEvent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+deliveryEventColumns+` FROM delivery_events
		WHERE status = $1 ORDER BY created_at LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.DeliveryEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var events []domain.DeliveryEvent
	for rows.Next() {
		e, err := scanDeliveryEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return events, nil
}

func (r *DeliveryEventRepository) RecordAttempt(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.DeliveryEventStatus, lastErr *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE delivery_events
		SET status = $1, attempts = attempts + 1, last_attempt = now(), last_error = $2
		WHERE id = $3`,
		status, lastErr, id,
	)
	if err != nil {
		return fmt.Errorf("RecordAttempt: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RecordAttempt: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("RecordAttempt: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *DeliveryEventRepository) ListByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) ([]domain.DeliveryEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deliveryEventColumns+` FROM delivery_events
		WHERE withdrawal_id = $1 ORDER BY created_at`, withdrawalID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByWithdrawal: %w", err)
	}
	defer rows.Close()

	var events []domain.DeliveryEvent
	for rows.Next() {
		e, err := scanDeliveryEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByWithdrawal: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByWithdrawal: rows: %w", err)
	}
	return events, nil
}

func scanDeliveryEvent(s scanner) (*domain.DeliveryEvent, error) {
	var e domain.DeliveryEvent
	err := s.Scan(
		&e.ID, &e.WithdrawalID, &e.Kind, &e.Status,
		&e.Attempts, &e.LastError, &e.LastAttempt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
