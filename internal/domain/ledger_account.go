package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WossMusic/woss-royalties/internal/money"
)

// LedgerAccount is the running royalty balance of one user.
// ClosingBalance always equals NetActivity + IncomingShared - OutgoingShared.
type LedgerAccount struct {
	UserID                 uuid.UUID
	GrossRoyaltyEarnings   decimal.Decimal
	DistributionFeePercent decimal.Decimal
	DistributionFeeAmount  decimal.Decimal
	NetActivity            decimal.Decimal
	IncomingShared         decimal.Decimal
	OutgoingShared         decimal.Decimal
	ClosingBalance         decimal.Decimal
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// ApplyDeposit folds a royalty import into the account. Fee, net and closing
// are re-derived from the running totals with the latest fee percent so that
// a settlement snapshot of the account debits it to exactly zero.
func (a *LedgerAccount) ApplyDeposit(gross, feePercent, incoming, outgoing decimal.Decimal) {
	a.GrossRoyaltyEarnings = a.GrossRoyaltyEarnings.Add(gross)
	a.DistributionFeePercent = feePercent
	a.DistributionFeeAmount = money.Percent(a.GrossRoyaltyEarnings, feePercent)
	a.NetActivity = money.Round2(a.GrossRoyaltyEarnings.Sub(a.DistributionFeeAmount))
	a.IncomingShared = a.IncomingShared.Add(incoming)
	a.OutgoingShared = a.OutgoingShared.Add(outgoing)
	a.ClosingBalance = money.Round2(a.NetActivity.Add(a.IncomingShared).Sub(a.OutgoingShared))
}

func (a *LedgerAccount) Balanced() bool {
	return a.ClosingBalance.Equal(a.NetActivity.Add(a.IncomingShared).Sub(a.OutgoingShared))
}

// Debit subtracts the snapshot figures of a withdrawal. It fails without
// touching the account if any field would go below zero.
func (a *LedgerAccount) Debit(w *WithdrawalRecord) error {
	next := *a
	next.GrossRoyaltyEarnings = a.GrossRoyaltyEarnings.Sub(w.GrossAmount)
	next.DistributionFeeAmount = a.DistributionFeeAmount.Sub(w.FeeAmount)
	next.NetActivity = a.NetActivity.Sub(w.NetAmount)
	next.IncomingShared = a.IncomingShared.Sub(w.IncomingSharedAmount)
	next.OutgoingShared = a.OutgoingShared.Sub(w.OutgoingSharedAmount)
	next.ClosingBalance = a.ClosingBalance.Sub(w.ClosingPayableAmount)

	for _, d := range []decimal.Decimal{
		next.GrossRoyaltyEarnings, next.DistributionFeeAmount, next.NetActivity,
		next.IncomingShared, next.OutgoingShared, next.ClosingBalance,
	} {
		if d.IsNegative() {
			return ErrInsufficientFunds
		}
	}

	*a = next
	return nil
}

// Credit is the exact inverse of Debit.
func (a *LedgerAccount) Credit(w *WithdrawalRecord) {
	a.GrossRoyaltyEarnings = a.GrossRoyaltyEarnings.Add(w.GrossAmount)
	a.DistributionFeeAmount = a.DistributionFeeAmount.Add(w.FeeAmount)
	a.NetActivity = a.NetActivity.Add(w.NetAmount)
	a.IncomingShared = a.IncomingShared.Add(w.IncomingSharedAmount)
	a.OutgoingShared = a.OutgoingShared.Add(w.OutgoingSharedAmount)
	a.ClosingBalance = a.ClosingBalance.Add(w.ClosingPayableAmount)
}
