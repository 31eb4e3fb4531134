package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WossMusic/woss-royalties/internal/auth"
	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
	"github.com/WossMusic/woss-royalties/internal/money"
	"github.com/WossMusic/woss-royalties/internal/service"
	"github.com/WossMusic/woss-royalties/internal/service/settlement"
)

type settlementReverter interface {
	Revert(ctx context.Context, withdrawalID uuid.UUID) (*settlement.RevertResult, error)
}

type depositor interface {
	Deposit(ctx context.Context, userID uuid.UUID, req service.DepositRequest) (*domain.LedgerAccount, error)
}

// AdminHandler serves operator endpoints. Routes are mounted behind
// middleware.RequireAdmin.
type AdminHandler struct {
	settlements settlementReverter
	ledger      depositor
}

func NewAdminHandler(settlements settlementReverter, ledger depositor) *AdminHandler {
	return &AdminHandler{settlements: settlements, ledger: ledger}
}

type revertDTO struct {
	Settlement withdrawalDTO `json:"settlement"`
	Warnings   []string      `json:"warnings,omitempty"`
}

func (h *AdminHandler) RevertSettlement(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	result, err := h.settlements.Revert(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("settlement revert failed", "withdrawal_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		logging.FromContext(r.Context()).Info("settlement reverted by admin",
			"withdrawal_id", id,
			"admin_id", claims.UserID,
		)
	}

	RespondSuccess(w, http.StatusOK, revertDTO{
		Settlement: toWithdrawalDTO(result.Record),
		Warnings:   result.Warnings,
	})
}

type depositRequest struct {
	Gross          string `json:"gross"`
	FeePercent     string `json:"fee_percent"`
	IncomingShared string `json:"incoming_shared"`
	OutgoingShared string `json:"outgoing_shared"`
}

func parseOptionalAmount(field, s string, errs *[]FieldError) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := money.ParseNonNegative(s)
	if err != nil {
		*errs = append(*errs, FieldError{Field: field, Message: "must be a non-negative amount with up to 2 decimal places"})
	}
	return d
}

func (r depositRequest) Validate() (service.DepositRequest, []FieldError) {
	var errs []FieldError
	out := service.DepositRequest{
		Gross:          parseOptionalAmount("gross", r.Gross, &errs),
		FeePercent:     parseOptionalAmount("fee_percent", r.FeePercent, &errs),
		IncomingShared: parseOptionalAmount("incoming_shared", r.IncomingShared, &errs),
		OutgoingShared: parseOptionalAmount("outgoing_shared", r.OutgoingShared, &errs),
	}
	if out.FeePercent.GreaterThan(money.Hundred) {
		errs = append(errs, FieldError{Field: "fee_percent", Message: "must be at most 100"})
	}
	return out, errs
}

func (h *AdminHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("userId"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var body depositRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	req, fields := body.Validate()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	account, err := h.ledger.Deposit(r.Context(), userID, req)
	if err != nil {
		logging.FromContext(r.Context()).Warn("ledger deposit failed", "user_id", userID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toLedgerAccountDTO(account))
}
