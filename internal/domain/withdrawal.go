package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusGenerated WithdrawalStatus = "generated"
	WithdrawalStatusReverted  WithdrawalStatus = "reverted"
)

type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodWire         PaymentMethod = "wire"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodPayPal, PaymentMethodWire:
		return true
	}
	return false
}

// WithdrawalRecord is the immutable snapshot of one settlement. The money
// fields are exactly what was debited from the ledger account.
type WithdrawalRecord struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	PeriodLabel          string
	SettlementDate       time.Time
	VendorInvoiceDate    time.Time
	SettlementDocNumber  string
	VendorInvoiceNumber  string
	RoyaltyAccountNumber string
	PaymentMethod        PaymentMethod
	GrossAmount          decimal.Decimal
	FeePercent           decimal.Decimal
	FeeAmount            decimal.Decimal
	NetAmount            decimal.Decimal
	IncomingSharedAmount decimal.Decimal
	OutgoingSharedAmount decimal.Decimal
	ClosingPayableAmount decimal.Decimal
	DocumentArtifactRef  *string
	DocumentSize         int64
	Status               WithdrawalStatus
	CreatedAt            time.Time
	RevertedAt           *time.Time
}

type PayoutProfile struct {
	UserID        uuid.UUID
	PaymentMethod PaymentMethod
	AccountHolder string
	BankName      *string
	AccountNumber *string
	PayPalEmail   *string
	Address       string
	UpdatedAt     time.Time
}

const (
	SequencePrefixSettlementDoc = "settlement-doc"
	SequencePrefixVendorInvoice = "vendor-invoice"
)

type SequenceCounter struct {
	Prefix     string
	LastIssued int64
	UpdatedAt  time.Time
}
