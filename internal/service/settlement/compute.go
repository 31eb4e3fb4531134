package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/money"
)

const maxPeriodLabelLength = 32

// Breakdown is the payable computation for one settlement. Every step is
// rounded to cents before the next one uses it.
type Breakdown struct {
	Gross          decimal.Decimal
	FeePercent     decimal.Decimal
	Fee            decimal.Decimal
	Net            decimal.Decimal
	IncomingShared decimal.Decimal
	OutgoingShared decimal.Decimal
	ClosingPayable decimal.Decimal
}

func Compute(gross, feePercent, incoming, outgoing decimal.Decimal) Breakdown {
	gross = money.Round2(gross)
	fee := money.Percent(gross, feePercent)
	net := money.Round2(gross.Sub(fee))
	incoming = money.Round2(incoming)
	outgoing = money.Round2(outgoing)
	return Breakdown{
		Gross:          gross,
		FeePercent:     feePercent,
		Fee:            fee,
		Net:            net,
		IncomingShared: incoming,
		OutgoingShared: outgoing,
		ClosingPayable: money.Round2(net.Add(incoming).Sub(outgoing)),
	}
}

func computeAccount(a *domain.LedgerAccount) Breakdown {
	return Compute(a.GrossRoyaltyEarnings, a.DistributionFeePercent, a.IncomingShared, a.OutgoingShared)
}

// Request identifies one settlement. Period and both dates together form the
// idempotency context of a generation.
type Request struct {
	Period            string
	SettlementDate    time.Time
	VendorInvoiceDate time.Time
}

func normalizeRequest(req *Request) error {
	req.Period = strings.TrimSpace(req.Period)
	if req.Period == "" {
		return fmt.Errorf("period is required: %w", domain.ErrInvalidRequest)
	}
	if len(req.Period) > maxPeriodLabelLength {
		return fmt.Errorf("period must be at most %d characters: %w", maxPeriodLabelLength, domain.ErrInvalidRequest)
	}
	if req.SettlementDate.IsZero() || req.VendorInvoiceDate.IsZero() {
		return fmt.Errorf("settlement_date and vendor_invoice_date are required: %w", domain.ErrInvalidRequest)
	}
	req.SettlementDate = truncateDay(req.SettlementDate)
	req.VendorInvoiceDate = truncateDay(req.VendorInvoiceDate)
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return truncateDay(a).Equal(truncateDay(b))
}

func (s *Service) newRecord(userID uuid.UUID, req Request, profile *domain.PayoutProfile, b Breakdown) *domain.WithdrawalRecord {
	return &domain.WithdrawalRecord{
		ID:                   uuid.New(),
		UserID:               userID,
		PeriodLabel:          req.Period,
		SettlementDate:       req.SettlementDate,
		VendorInvoiceDate:    req.VendorInvoiceDate,
		RoyaltyAccountNumber: RoyaltyAccountNumber(userID),
		PaymentMethod:        profile.PaymentMethod,
		GrossAmount:          b.Gross,
		FeePercent:           b.FeePercent,
		FeeAmount:            b.Fee,
		NetAmount:            b.Net,
		IncomingSharedAmount: b.IncomingShared,
		OutgoingSharedAmount: b.OutgoingShared,
		ClosingPayableAmount: b.ClosingPayable,
		Status:               domain.WithdrawalStatusGenerated,
		CreatedAt:            time.Now().UTC(),
	}
}
