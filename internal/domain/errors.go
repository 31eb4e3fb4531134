package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrVersionConflict = errors.New("optimistic lock conflict")
	ErrConflict        = errors.New("concurrent modification, retry")

	ErrNotOwner                = errors.New("caller does not own the resource")
	ErrNotInvitee              = errors.New("caller is not the invitee of this split")
	ErrSplitNotFound           = errors.New("split not found")
	ErrSplitAllocationExceeded = errors.New("split allocation would exceed 100 percent")
	ErrSplitTerminal           = errors.New("split already accepted or rejected")
	ErrInvalidPercentage       = errors.New("percentage must be greater than 0 and at most 100")
	ErrInvalidRole             = errors.New("unrecognized collaborator role")
	ErrSelfInvite              = errors.New("cannot invite yourself to a split")

	ErrMissingPayoutProfile     = errors.New("no payout profile on file")
	ErrBelowMinimumThreshold    = errors.New("closing payable amount is below the minimum withdrawal")
	ErrSequenceAllocationFailed = errors.New("document number allocation failed")
	ErrDuplicateSettlement      = errors.New("settlement already generated for this period")
	ErrInsufficientFunds        = errors.New("ledger balance would go negative")
	ErrInvalidAmount            = errors.New("amount must not be negative")
)
