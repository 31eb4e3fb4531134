package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
	"github.com/WossMusic/woss-royalties/internal/money"
	"github.com/WossMusic/woss-royalties/internal/notify"
)

type RevertResult struct {
	Record   *domain.WithdrawalRecord
	Warnings []string
}

// Revert credits a generated withdrawal back to its ledger account. The
// record is kept as reverted so its document numbers are never reissued.
func (s *Service) Revert(ctx context.Context, withdrawalID uuid.UUID) (*RevertResult, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Revert: begin tx: %w", err)
	}
	defer tx.Rollback()

	w, err := s.withdrawals.GetForUpdate(ctx, tx, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("Revert: %w", err)
	}
	if w.Status != domain.WithdrawalStatusGenerated {
		return nil, fmt.Errorf("Revert: already reverted: %w", domain.ErrNotFound)
	}

	account, err := s.accounts.GetForUpdate(ctx, tx, w.UserID)
	if err != nil {
		return nil, fmt.Errorf("Revert: %w", err)
	}

	if err := s.applyLedger(ctx, tx, account, w, domain.MovementKindSettlementCredit); err != nil {
		return nil, fmt.Errorf("Revert: %w", err)
	}

	now := time.Now().UTC()
	if err := s.withdrawals.MarkReverted(ctx, tx, w.ID, now); err != nil {
		return nil, fmt.Errorf("Revert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Revert: commit: %w", err)
	}

	artifact := w.DocumentArtifactRef
	w.Status = domain.WithdrawalStatusReverted
	w.RevertedAt = &now
	w.DocumentArtifactRef = nil
	w.DocumentSize = 0

	s.metrics.SettlementsReverted.Inc()
	log.Info("settlement reverted",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"settlement_doc_number", w.SettlementDocNumber,
		"credited", money.String(w.ClosingPayableAmount),
	)

	// Committed: finish cleanup even if the caller has gone.
	ctx = context.WithoutCancel(ctx)
	var warnings []string
	if artifact != nil {
		if err := s.renderer.Discard(ctx, *artifact); err != nil {
			s.metrics.CollaboratorFailures.WithLabelValues("discard").Inc()
			log.Warn("failed to discard payment advice", "withdrawal_id", w.ID, "ref", *artifact, "error", err)
			warnings = append(warnings, "payment advice could not be removed")
		}
	}

	err = s.notifier.Notify(ctx, w.UserID, notify.Event{
		Type: notify.EventSettlementReverted,
		Data: map[string]string{
			"withdrawal_id":         w.ID.String(),
			"period":                w.PeriodLabel,
			"settlement_doc_number": w.SettlementDocNumber,
			"credited":              money.String(w.ClosingPayableAmount),
		},
	})
	if err != nil {
		s.metrics.CollaboratorFailures.WithLabelValues("notify").Inc()
		log.Warn("settlement revert notification failed", "withdrawal_id", w.ID, "error", err)
		warnings = append(warnings, "revert notification failed")
	}

	return &RevertResult{Record: w, Warnings: warnings}, nil
}
