package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

const splitColumns = `id, track_id, inviter_user_id, invitee_user_id, invitee_email,
	invitee_name, percentage, role, status, created_at, accepted_at, responded_at`

type SplitRepository struct {
	db *sql.DB
}

func NewSplitRepository(db *sql.DB) *SplitRepository {
	return &SplitRepository{db: db}
}

func (r *SplitRepository) Create(ctx context.Context, tx *sql.Tx, s *domain.RoyaltySplit) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO royalty_splits (
			id, track_id, inviter_user_id, invitee_user_id, invitee_email,
			invitee_name, percentage, role, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.TrackID, s.InviterUserID, s.InviteeUserID, s.InviteeEmail,
		s.InviteeName, s.Percentage, s.Role, s.Status, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", mapPQError(err))
	}
	return nil
}

// SumActiveForTrack returns the total percentage of pending and accepted
// splits on the track. Callers hold the track row lock.
func (r *SplitRepository) SumActiveForTrack(ctx context.Context, tx *sql.Tx, trackID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(percentage), 0) FROM royalty_splits
		WHERE track_id = $1 AND status IN ($2, $3)`,
		trackID, domain.SplitStatusPending, domain.SplitStatusAccepted,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumActiveForTrack: %w", mapPQError(err))
	}
	return sum, nil
}

func (r *SplitRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.RoyaltySplit, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+splitColumns+` FROM royalty_splits WHERE id = $1 FOR UPDATE`, id,
	)
	s, err := scanSplit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrSplitNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", mapPQError(err))
	}
	return s, nil
}

func (r *SplitRepository) ListByInviter(ctx context.Context, inviterID uuid.UUID) ([]domain.RoyaltySplit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+splitColumns+` FROM royalty_splits
		WHERE inviter_user_id = $1 ORDER BY created_at DESC, id`, inviterID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByInviter: %w", err)
	}
	return collectSplits(rows, "ListByInviter")
}

// ListIncoming returns non-rejected splits addressed to the user, either by
// id or, before the invitee id is backfilled, by e-mail.
func (r *SplitRepository) ListIncoming(ctx context.Context, userID uuid.UUID, email string) ([]domain.RoyaltySplit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+splitColumns+` FROM royalty_splits
		WHERE (invitee_user_id = $1 OR (invitee_user_id IS NULL AND lower(invitee_email) = lower($2)))
		AND status <> $3
		ORDER BY created_at DESC, id`,
		userID, email, domain.SplitStatusRejected,
	)
	if err != nil {
		return nil, fmt.Errorf("ListIncoming: %w", err)
	}
	return collectSplits(rows, "ListIncoming")
}

func (r *SplitRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.SplitStatus, inviteeID uuid.UUID, respondedAt time.Time, acceptedAt *time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE royalty_splits
		SET status = $1, invitee_user_id = $2, responded_at = $3, accepted_at = $4
		WHERE id = $5`,
		status, inviteeID, respondedAt, acceptedAt, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", mapPQError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrSplitNotFound)
	}
	return nil
}

func (r *SplitRepository) Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM royalty_splits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", mapPQError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Delete: %w", domain.ErrSplitNotFound)
	}
	return nil
}

func collectSplits(rows *sql.Rows, op string) ([]domain.RoyaltySplit, error) {
	defer rows.Close()

	splits := []domain.RoyaltySplit{}
	for rows.Next() {
		s, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		splits = append(splits, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return splits, nil
}

func scanSplit(s scanner) (*domain.RoyaltySplit, error) {
	var sp domain.RoyaltySplit
	err := s.Scan(
		&sp.ID, &sp.TrackID, &sp.InviterUserID, &sp.InviteeUserID, &sp.InviteeEmail,
		&sp.InviteeName, &sp.Percentage, &sp.Role, &sp.Status,
		&sp.CreatedAt, &sp.AcceptedAt, &sp.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}
