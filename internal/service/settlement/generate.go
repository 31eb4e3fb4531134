package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
	"github.com/WossMusic/woss-royalties/internal/money"
)

type PreviewResult struct {
	Record   *domain.WithdrawalRecord
	Document []byte
}

type GenerateResult struct {
	Record *domain.WithdrawalRecord
	// Warnings lists side effects that failed after the debit committed.
	Warnings []string
	// Replayed is set when an identical earlier generation was returned.
	Replayed bool
}

// Preview computes the settlement the user would receive right now without
// allocating numbers or touching the ledger.
func (s *Service) Preview(ctx context.Context, userID uuid.UUID, req Request) (*PreviewResult, error) {
	if err := normalizeRequest(&req); err != nil {
		return nil, fmt.Errorf("Preview: %w", err)
	}

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Preview: %w", err)
	}

	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Preview: %w", domain.ErrBelowMinimumThreshold)
		}
		return nil, fmt.Errorf("Preview: %w", err)
	}

	b := computeAccount(account)
	if err := s.checkThreshold(b); err != nil {
		return nil, fmt.Errorf("Preview: %w", err)
	}

	w := s.newRecord(userID, req, profile, b)
	w.SettlementDocNumber = PreviewSettlementDocNumber
	w.VendorInvoiceNumber = PreviewVendorInvoiceNumber

	doc, err := s.renderer.RenderPreview(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("Preview: %w", err)
	}
	return &PreviewResult{Record: w, Document: doc}, nil
}

// Generate settles the user's whole closing balance. The withdrawal record,
// both document numbers and the ledger debit commit together; rendering and
// notification happen afterwards and only produce warnings on failure.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, req Request) (*GenerateResult, error) {
	log := logging.FromContext(ctx)

	if err := normalizeRequest(&req); err != nil {
		return nil, fmt.Errorf("Generate: %w", err)
	}

	if replay, err := s.replay(ctx, userID, req); err != nil || replay != nil {
		if err != nil {
			return nil, fmt.Errorf("Generate: %w", err)
		}
		return replay, nil
	}

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		s.metrics.SettlementRejections.WithLabelValues("missing_payout_profile").Inc()
		return nil, fmt.Errorf("Generate: %w", err)
	}

	w, err := s.generateTx(ctx, userID, req, profile)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSettlement) {
			// Lost a race with a concurrent generation for the same period.
			if replay, rerr := s.replay(ctx, userID, req); rerr == nil && replay != nil {
				return replay, nil
			}
		}
		if errors.Is(err, domain.ErrBelowMinimumThreshold) {
			s.metrics.SettlementRejections.WithLabelValues("below_minimum").Inc()
		}
		return nil, fmt.Errorf("Generate: %w", err)
	}

	s.metrics.SettlementsGenerated.Inc()
	log.Info("settlement generated",
		"withdrawal_id", w.ID,
		"user_id", userID,
		"period", w.PeriodLabel,
		"settlement_doc_number", w.SettlementDocNumber,
		"vendor_invoice_number", w.VendorInvoiceNumber,
		"closing_payable", money.String(w.ClosingPayableAmount),
	)

	warnings := s.deliverer.Deliver(ctx, w)
	return &GenerateResult{Record: w, Warnings: warnings}, nil
}

func (s *Service) generateTx(ctx context.Context, userID uuid.UUID, req Request, profile *domain.PayoutProfile) (*domain.WithdrawalRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("generateTx: begin tx: %w", err)
	}
	defer tx.Rollback()

	account, err := s.accounts.GetForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("generateTx: %w", domain.ErrBelowMinimumThreshold)
		}
		return nil, fmt.Errorf("generateTx: %w", err)
	}

	b := computeAccount(account)
	if err := s.checkThreshold(b); err != nil {
		return nil, fmt.Errorf("generateTx: %w", err)
	}

	w := s.newRecord(userID, req, profile, b)
	if w.SettlementDocNumber, err = s.sequences.NextTx(ctx, tx, domain.SequencePrefixSettlementDoc); err != nil {
		return nil, fmt.Errorf("generateTx: %w", err)
	}
	if w.VendorInvoiceNumber, err = s.sequences.NextTx(ctx, tx, domain.SequencePrefixVendorInvoice); err != nil {
		return nil, fmt.Errorf("generateTx: %w", err)
	}

	if err := s.withdrawals.Create(ctx, tx, w); err != nil {
		return nil, fmt.Errorf("generateTx: %w", err)
	}

	if err := s.applyLedger(ctx, tx, account, w, domain.MovementKindSettlementDebit); err != nil {
		return nil, fmt.Errorf("generateTx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("generateTx: commit: %w", err)
	}
	return w, nil
}

// applyLedger debits or credits the account by exactly the record's figures
// and writes the matching movement.
func (s *Service) applyLedger(ctx context.Context, tx *sql.Tx, account *domain.LedgerAccount, w *domain.WithdrawalRecord, kind domain.MovementKind) error {
	before := account.ClosingBalance

	if kind == domain.MovementKindSettlementDebit {
		if err := account.Debit(w); err != nil {
			return fmt.Errorf("applyLedger: %w", err)
		}
	} else {
		account.Credit(w)
	}

	if err := s.accounts.Update(ctx, tx, account); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return fmt.Errorf("applyLedger: %w", domain.ErrConflict)
		}
		return fmt.Errorf("applyLedger: %w", err)
	}

	withdrawalID := w.ID
	movement := &domain.LedgerMovement{
		ID:            uuid.New(),
		UserID:        w.UserID,
		WithdrawalID:  &withdrawalID,
		Kind:          kind,
		Amount:        w.ClosingPayableAmount,
		ClosingBefore: before,
		ClosingAfter:  account.ClosingBalance,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.movements.Create(ctx, tx, movement); err != nil {
		return fmt.Errorf("applyLedger: %w", err)
	}
	return nil
}

// replay returns the existing generation for the same period when it was
// made with the same dates. Different dates are a duplicate.
func (s *Service) replay(ctx context.Context, userID uuid.UUID, req Request) (*GenerateResult, error) {
	existing, err := s.withdrawals.GetGeneratedForPeriod(ctx, userID, req.Period)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("replay: %w", err)
	}

	if !sameDay(existing.SettlementDate, req.SettlementDate) || !sameDay(existing.VendorInvoiceDate, req.VendorInvoiceDate) {
		s.metrics.SettlementRejections.WithLabelValues("duplicate").Inc()
		return nil, fmt.Errorf("replay: %w", domain.ErrDuplicateSettlement)
	}

	logging.FromContext(ctx).Info("settlement replayed",
		"withdrawal_id", existing.ID,
		"user_id", userID,
		"period", existing.PeriodLabel,
	)
	return &GenerateResult{Record: existing, Replayed: true}, nil
}

func (s *Service) loadProfile(ctx context.Context, userID uuid.UUID) (*domain.PayoutProfile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("loadProfile: %w", domain.ErrMissingPayoutProfile)
		}
		return nil, fmt.Errorf("loadProfile: %w", err)
	}
	return profile, nil
}

func (s *Service) checkThreshold(b Breakdown) error {
	if b.ClosingPayable.LessThan(s.minWithdrawal) {
		return fmt.Errorf("closing payable %s below minimum %s: %w",
			money.String(b.ClosingPayable), money.String(s.minWithdrawal), domain.ErrBelowMinimumThreshold)
	}
	return nil
}
