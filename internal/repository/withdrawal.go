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

const withdrawalColumns = `id, user_id, period_label, settlement_date, vendor_invoice_date,
	settlement_doc_number, vendor_invoice_number, royalty_account_number, payment_method,
	gross_amount, fee_percent, fee_amount, net_amount,
	incoming_shared_amount, outgoing_shared_amount, closing_payable_amount,
	document_artifact_ref, document_size, status, created_at, reverted_at`

type WithdrawalRepository struct {
	db *sql.DB
}

func NewWithdrawalRepository(db *sql.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *sql.Tx, w *domain.WithdrawalRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO withdrawals (
			id, user_id, period_label, settlement_date, vendor_invoice_date,
			settlement_doc_number, vendor_invoice_number, royalty_account_number, payment_method,
			gross_amount, fee_percent, fee_amount, net_amount,
			incoming_shared_amount, outgoing_shared_amount, closing_payable_amount,
			document_artifact_ref, document_size, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		w.ID, w.UserID, w.PeriodLabel, w.SettlementDate, w.VendorInvoiceDate,
		w.SettlementDocNumber, w.VendorInvoiceNumber, w.RoyaltyAccountNumber, w.PaymentMethod,
		w.GrossAmount, w.FeePercent, w.FeeAmount, w.NetAmount,
		w.IncomingSharedAmount, w.OutgoingSharedAmount, w.ClosingPayableAmount,
		w.DocumentArtifactRef, w.DocumentSize, w.Status, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", mapWithdrawalInsertError(err))
	}
	return nil
}

// withdrawalPeriodIndex allows one generated settlement per user and period.
const withdrawalPeriodIndex = "withdrawals_user_period_generated_idx"

// A clash on the period index is a concurrent duplicate generate. A clash on
// a document number means the counters issued a number twice.
func mapWithdrawalInsertError(err error) error {
	constraint, ok := uniqueViolation(err)
	switch {
	case !ok:
		return mapPQError(err)
	case constraint == withdrawalPeriodIndex:
		return domain.ErrDuplicateSettlement
	default:
		return fmt.Errorf("%w: %s already issued", domain.ErrSequenceAllocationFailed, constraint)
	}
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id,
	)
	w, err := scanWithdrawal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return w, nil
}

func (r *WithdrawalRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.WithdrawalRecord, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id,
	)
	w, err := scanWithdrawal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", mapPQError(err))
	}
	return w, nil
}

// GetGeneratedForPeriod returns the live (not reverted) withdrawal of a user
// for a period label.
func (r *WithdrawalRepository) GetGeneratedForPeriod(ctx context.Context, userID uuid.UUID, period string) (*domain.WithdrawalRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE user_id = $1 AND period_label = $2 AND status = $3`,
		userID, period, domain.WithdrawalStatusGenerated,
	)
	w, err := scanWithdrawal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetGeneratedForPeriod: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetGeneratedForPeriod: %w", err)
	}
	return w, nil
}

func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE user_id = $1 ORDER BY created_at DESC, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	records := []domain.WithdrawalRecord{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByUser: scan: %w", err)
		}
		records = append(records, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: rows: %w", err)
	}
	return records, nil
}

func (r *WithdrawalRepository) MarkReverted(ctx context.Context, tx *sql.Tx, id uuid.UUID, revertedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE withdrawals SET status = $1, reverted_at = $2, document_artifact_ref = NULL
		WHERE id = $3 AND status = $4`,
		domain.WithdrawalStatusReverted, revertedAt, id, domain.WithdrawalStatusGenerated,
	)
	if err != nil {
		return fmt.Errorf("MarkReverted: %w", mapPQError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkReverted: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkReverted: %w", domain.ErrNotFound)
	}
	return nil
}

// AttachArtifact records the rendered document of a still-generated withdrawal.
func (r *WithdrawalRepository) AttachArtifact(ctx context.Context, id uuid.UUID, ref string, size int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE withdrawals SET document_artifact_ref = $1, document_size = $2
		WHERE id = $3 AND status = $4`,
		ref, size, id, domain.WithdrawalStatusGenerated,
	)
	if err != nil {
		return fmt.Errorf("AttachArtifact: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("AttachArtifact: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("AttachArtifact: %w", domain.ErrNotFound)
	}
	return nil
}

func scanWithdrawal(s scanner) (*domain.WithdrawalRecord, error) {
	var w domain.WithdrawalRecord
	err := s.Scan(
		&w.ID, &w.UserID, &w.PeriodLabel, &w.SettlementDate, &w.VendorInvoiceDate,
		&w.SettlementDocNumber, &w.VendorInvoiceNumber, &w.RoyaltyAccountNumber, &w.PaymentMethod,
		&w.GrossAmount, &w.FeePercent, &w.FeeAmount, &w.NetAmount,
		&w.IncomingSharedAmount, &w.OutgoingSharedAmount, &w.ClosingPayableAmount,
		&w.DocumentArtifactRef, &w.DocumentSize, &w.Status, &w.CreatedAt, &w.RevertedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
