// Package settlement turns a user's ledger balance into a withdrawal record
// with sequential document numbers and a sealed payment advice.
package settlement

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/metrics"
	"github.com/WossMusic/woss-royalties/internal/notify"
)

const (
	PreviewSettlementDocNumber = "SD-PREVIEW"
	PreviewVendorInvoiceNumber = "VI-PREVIEW"
)

type withdrawalRepo interface {
	Create(ctx context.Context, tx *sql.Tx, w *domain.WithdrawalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRecord, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.WithdrawalRecord, error)
	GetGeneratedForPeriod(ctx context.Context, userID uuid.UUID, period string) (*domain.WithdrawalRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRecord, error)
	MarkReverted(ctx context.Context, tx *sql.Tx, id uuid.UUID, revertedAt time.Time) error
}

type ledgerAccountRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.LedgerAccount, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.LedgerAccount, error)
	Update(ctx context.Context, tx *sql.Tx, a *domain.LedgerAccount) error
}

type movementRepo interface {
	Create(ctx context.Context, tx *sql.Tx, m *domain.LedgerMovement) error
}

type payoutProfileReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.PayoutProfile, error)
}

type sequenceAllocator interface {
	NextTx(ctx context.Context, tx *sql.Tx, prefix string) (string, error)
}

type documentRenderer interface {
	RenderPreview(ctx context.Context, w *domain.WithdrawalRecord) ([]byte, error)
	Discard(ctx context.Context, ref string) error
}

type deliverer interface {
	Deliver(ctx context.Context, w *domain.WithdrawalRecord) []string
}

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event notify.Event) error
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type Service struct {
	withdrawals   withdrawalRepo
	accounts      ledgerAccountRepo
	movements     movementRepo
	profiles      payoutProfileReader
	sequences     sequenceAllocator
	renderer      documentRenderer
	deliverer     deliverer
	notifier      notifier
	db            txBeginner
	metrics       *metrics.Metrics
	minWithdrawal decimal.Decimal
}

func NewService(
	withdrawals withdrawalRepo,
	accounts ledgerAccountRepo,
	movements movementRepo,
	profiles payoutProfileReader,
	sequences sequenceAllocator,
	renderer documentRenderer,
	d deliverer,
	n notifier,
	db txBeginner,
	m *metrics.Metrics,
	minWithdrawal decimal.Decimal,
) *Service {
	return &Service{
		withdrawals:   withdrawals,
		accounts:      accounts,
		movements:     movements,
		profiles:      profiles,
		sequences:     sequences,
		renderer:      renderer,
		deliverer:     d,
		notifier:      n,
		db:            db,
		metrics:       m,
		minWithdrawal: minWithdrawal,
	}
}

// Get returns one of the user's withdrawals. Records owned by someone else
// are reported as not found.
func (s *Service) Get(ctx context.Context, userID, withdrawalID uuid.UUID) (*domain.WithdrawalRecord, error) {
	w, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if w.UserID != userID {
		return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
	}
	return w, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRecord, error) {
	records, err := s.withdrawals.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return records, nil
}

// RoyaltyAccountNumber derives the stable payee reference printed on every
// payment advice of a user.
func RoyaltyAccountNumber(userID uuid.UUID) string {
	sum := sha256.Sum256(userID[:])
	n := binary.BigEndian.Uint64(sum[:8]) % 10_000_000_000
	return fmt.Sprintf("RA-%010d", n)
}
