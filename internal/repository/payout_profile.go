package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

const payoutProfileColumns = `user_id, payment_method, account_holder, bank_name,
	account_number, paypal_email, address, updated_at`

type PayoutProfileRepository struct {
	db *sql.DB
}

func NewPayoutProfileRepository(db *sql.DB) *PayoutProfileRepository {
	return &PayoutProfileRepository{db: db}
}

func (r *PayoutProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.PayoutProfile, error) {
	var p domain.PayoutProfile
	err := r.db.QueryRowContext(ctx,
		`SELECT `+payoutProfileColumns+` FROM payout_profiles WHERE user_id = $1`, userID,
	).Scan(
		&p.UserID, &p.PaymentMethod, &p.AccountHolder, &p.BankName,
		&p.AccountNumber, &p.PayPalEmail, &p.Address, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	return &p, nil
}

func (r *PayoutProfileRepository) Upsert(ctx context.Context, p *domain.PayoutProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payout_profiles (`+payoutProfileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			payment_method = EXCLUDED.payment_method,
			account_holder = EXCLUDED.account_holder,
			bank_name = EXCLUDED.bank_name,
			account_number = EXCLUDED.account_number,
			paypal_email = EXCLUDED.paypal_email,
			address = EXCLUDED.address,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.PaymentMethod, p.AccountHolder, p.BankName,
		p.AccountNumber, p.PayPalEmail, p.Address, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
