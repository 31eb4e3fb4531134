package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

type APIResponse struct {
	Success bool     `json:"success"`
	Data    any      `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError

	switch {
	case errors.Is(err, domain.ErrSplitNotFound):
		appErr = ErrSplitNotFound
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrNotOwner):
		appErr = ErrNotOwner
	case errors.Is(err, domain.ErrNotInvitee):
		appErr = ErrNotInvitee
	case errors.Is(err, domain.ErrSplitAllocationExceeded):
		appErr = ErrSplitAllocationExceeded
	case errors.Is(err, domain.ErrSplitTerminal):
		appErr = ErrSplitTerminal
	case errors.Is(err, domain.ErrInvalidPercentage):
		appErr = ErrInvalidPercentage
	case errors.Is(err, domain.ErrInvalidRole):
		appErr = ErrInvalidRole
	case errors.Is(err, domain.ErrSelfInvite):
		appErr = ErrSelfInvite
	case errors.Is(err, domain.ErrMissingPayoutProfile):
		appErr = ErrMissingPayoutProfile
	case errors.Is(err, domain.ErrBelowMinimumThreshold):
		appErr = ErrBelowMinimumThreshold
	case errors.Is(err, domain.ErrDuplicateSettlement):
		appErr = ErrDuplicateSettlement
	case errors.Is(err, domain.ErrSequenceAllocationFailed):
		appErr = ErrSequenceAllocationFailed
	case errors.Is(err, domain.ErrInsufficientFunds):
		appErr = ErrInsufficientFunds
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrVersionConflict):
		appErr = ErrConflict
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidRequest):
		appErr = ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
