package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

const ledgerAccountColumns = `user_id, gross_royalty_earnings, distribution_fee_percent,
	distribution_fee_amount, net_activity, incoming_shared, outgoing_shared,
	closing_balance, version, created_at, updated_at`

type LedgerAccountRepository struct {
	db *sql.DB
}

func NewLedgerAccountRepository(db *sql.DB) *LedgerAccountRepository {
	return &LedgerAccountRepository{db: db}
}

func (r *LedgerAccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.LedgerAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerAccountColumns+` FROM ledger_accounts WHERE user_id = $1`, userID,
	)
	a, err := scanLedgerAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	return a, nil
}

// EnsureExists creates an empty account for the user if none exists yet.
func (r *LedgerAccountRepository) EnsureExists(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("EnsureExists: %w", mapPQError(err))
	}
	return nil
}

func (r *LedgerAccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.LedgerAccount, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+ledgerAccountColumns+` FROM ledger_accounts WHERE user_id = $1 FOR UPDATE`, userID,
	)
	a, err := scanLedgerAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", mapPQError(err))
	}
	return a, nil
}

// Update writes every balance field of a and bumps its version. The write only
// lands if the stored version still matches a.Version.
func (r *LedgerAccountRepository) Update(ctx context.Context, tx *sql.Tx, a *domain.LedgerAccount) error {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE ledger_accounts SET
			gross_royalty_earnings = $1, distribution_fee_percent = $2,
			distribution_fee_amount = $3, net_activity = $4,
			incoming_shared = $5, outgoing_shared = $6, closing_balance = $7,
			version = version + 1, updated_at = $8
		WHERE user_id = $9 AND version = $10`,
		a.GrossRoyaltyEarnings, a.DistributionFeePercent,
		a.DistributionFeeAmount, a.NetActivity,
		a.IncomingShared, a.OutgoingShared, a.ClosingBalance,
		now, a.UserID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", mapPQError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrVersionConflict)
	}

	a.Version++
	a.UpdatedAt = now
	return nil
}

func scanLedgerAccount(s scanner) (*domain.LedgerAccount, error) {
	var a domain.LedgerAccount
	err := s.Scan(
		&a.UserID, &a.GrossRoyaltyEarnings, &a.DistributionFeePercent,
		&a.DistributionFeeAmount, &a.NetActivity, &a.IncomingShared, &a.OutgoingShared,
		&a.ClosingBalance, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
