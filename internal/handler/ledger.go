package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
	"github.com/WossMusic/woss-royalties/internal/money"
)

type ledgerReader interface {
	GetAccount(ctx context.Context, userID uuid.UUID) (*domain.LedgerAccount, error)
	Movements(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerMovement, int, error)
}

type LedgerHandler struct {
	ledger ledgerReader
}

func NewLedgerHandler(ledger ledgerReader) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

type ledgerAccountDTO struct {
	UserID                 uuid.UUID `json:"user_id"`
	GrossRoyaltyEarnings   string    `json:"gross_royalty_earnings"`
	DistributionFeePercent string    `json:"distribution_fee_percent"`
	DistributionFeeAmount  string    `json:"distribution_fee_amount"`
	NetActivity            string    `json:"net_activity"`
	IncomingShared         string    `json:"incoming_shared"`
	OutgoingShared         string    `json:"outgoing_shared"`
	ClosingBalance         string    `json:"closing_balance"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func toLedgerAccountDTO(a *domain.LedgerAccount) ledgerAccountDTO {
	return ledgerAccountDTO{
		UserID:                 a.UserID,
		GrossRoyaltyEarnings:   money.String(a.GrossRoyaltyEarnings),
		DistributionFeePercent: money.String(a.DistributionFeePercent),
		DistributionFeeAmount:  money.String(a.DistributionFeeAmount),
		NetActivity:            money.String(a.NetActivity),
		IncomingShared:         money.String(a.IncomingShared),
		OutgoingShared:         money.String(a.OutgoingShared),
		ClosingBalance:         money.String(a.ClosingBalance),
		UpdatedAt:              a.UpdatedAt,
	}
}

type ledgerMovementDTO struct {
	ID            uuid.UUID  `json:"id"`
	WithdrawalID  *uuid.UUID `json:"withdrawal_id,omitempty"`
	Kind          string     `json:"kind"`
	Amount        string     `json:"amount"`
	ClosingBefore string     `json:"closing_before"`
	ClosingAfter  string     `json:"closing_after"`
	CreatedAt     time.Time  `json:"created_at"`
}

type movementPage struct {
	Movements []ledgerMovementDTO `json:"movements"`
	Total     int                 `json:"total"`
	Limit     int                 `json:"limit"`
	Offset    int                 `json:"offset"`
}

func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toLedgerAccountDTO(account))
}

func (h *LedgerHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, offset, fields := parsePagination(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	movements, total, err := h.ledger.Movements(r.Context(), userID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list ledger movements", "error", err)
		RespondDomainError(w, err)
		return
	}

	page := movementPage{
		Movements: make([]ledgerMovementDTO, 0, len(movements)),
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}
	for _, m := range movements {
		page.Movements = append(page.Movements, ledgerMovementDTO{
			ID:            m.ID,
			WithdrawalID:  m.WithdrawalID,
			Kind:          string(m.Kind),
			Amount:        money.String(m.Amount),
			ClosingBefore: money.String(m.ClosingBefore),
			ClosingAfter:  money.String(m.ClosingAfter),
			CreatedAt:     m.CreatedAt,
		})
	}

	RespondSuccess(w, http.StatusOK, page)
}
