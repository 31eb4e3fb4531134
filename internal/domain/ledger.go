package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MovementKind string

const (
	MovementKindDeposit          MovementKind = "deposit"
	MovementKindSettlementDebit  MovementKind = "settlement_debit"
	MovementKindSettlementCredit MovementKind = "settlement_credit"
)

// LedgerMovement is the audit row written alongside every ledger account
// mutation. Amount is the absolute change of the closing balance.
type LedgerMovement struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	WithdrawalID  *uuid.UUID
	Kind          MovementKind
	Amount        decimal.Decimal
	ClosingBefore decimal.Decimal
	ClosingAfter  decimal.Decimal
	CreatedAt     time.Time
}
