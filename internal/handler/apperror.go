package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}
	ErrAccountSuspended   = &AppError{http.StatusForbidden, "ACCOUNT_SUSPENDED", "Account is suspended"}
	ErrAdminRequired      = &AppError{http.StatusForbidden, "ADMIN_REQUIRED", "Administrator role required"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrNotOwner                = &AppError{http.StatusForbidden, "NOT_OWNER", "Only the owner may perform this action"}
	ErrNotInvitee              = &AppError{http.StatusForbidden, "NOT_INVITEE", "Only the invited collaborator may respond to this split"}
	ErrSplitNotFound           = &AppError{http.StatusNotFound, "SPLIT_NOT_FOUND", "Split not found"}
	ErrSplitAllocationExceeded = &AppError{http.StatusUnprocessableEntity, "SPLIT_ALLOCATION_EXCEEDED", "Splits on this track would exceed 100 percent"}
	ErrSplitTerminal           = &AppError{http.StatusConflict, "SPLIT_ALREADY_RESPONDED", "Split has already been accepted or rejected"}
	ErrInvalidPercentage       = &AppError{http.StatusBadRequest, "INVALID_PERCENTAGE", "Percentage must be greater than 0 and at most 100 with two decimals"}
	ErrInvalidRole             = &AppError{http.StatusBadRequest, "INVALID_ROLE", "Unrecognized collaborator role"}
	ErrSelfInvite              = &AppError{http.StatusUnprocessableEntity, "SELF_INVITE_NOT_ALLOWED", "Cannot invite yourself to a split"}

	ErrMissingPayoutProfile     = &AppError{http.StatusUnprocessableEntity, "MISSING_PAYOUT_PROFILE", "A payout profile is required before withdrawing"}
	ErrBelowMinimumThreshold    = &AppError{http.StatusUnprocessableEntity, "BELOW_MINIMUM_THRESHOLD", "Closing balance is below the minimum withdrawal"}
	ErrDuplicateSettlement      = &AppError{http.StatusConflict, "DUPLICATE_SETTLEMENT", "A settlement for this period already exists with different dates"}
	ErrSequenceAllocationFailed = &AppError{http.StatusServiceUnavailable, "SEQUENCE_ALLOCATION_FAILED", "Document numbers could not be allocated, please retry"}
	ErrInsufficientFunds        = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Ledger balance would go negative"}
	ErrInvalidAmount            = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amounts must be non-negative with at most two decimals"}
	ErrDocumentUnavailable      = &AppError{http.StatusNotFound, "DOCUMENT_NOT_AVAILABLE", "Payment advice has not been rendered yet"}

	ErrConflict              = &AppError{http.StatusConflict, "CONCURRENT_MODIFICATION", "Resource was modified concurrently, please retry"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
