package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
	"github.com/WossMusic/woss-royalties/internal/money"
)

type ledgerAccountRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.LedgerAccount, error)
	EnsureExists(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.LedgerAccount, error)
	Update(ctx context.Context, tx *sql.Tx, a *domain.LedgerAccount) error
}

type movementRepo interface {
	Create(ctx context.Context, tx *sql.Tx, m *domain.LedgerMovement) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerMovement, int, error)
}

type userChecker interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// DepositRequest is one royalty import adjustment for a user.
type DepositRequest struct {
	Gross          decimal.Decimal
	FeePercent     decimal.Decimal
	IncomingShared decimal.Decimal
	OutgoingShared decimal.Decimal
}

type LedgerService struct {
	accounts  ledgerAccountRepo
	movements movementRepo
	users     userChecker
	db        txBeginner
}

func NewLedgerService(accounts ledgerAccountRepo, movements movementRepo, users userChecker, db txBeginner) *LedgerService {
	return &LedgerService{accounts: accounts, movements: movements, users: users, db: db}
}

func (s *LedgerService) Deposit(ctx context.Context, userID uuid.UUID, req DepositRequest) (*domain.LedgerAccount, error) {
	log := logging.FromContext(ctx)

	for _, d := range []decimal.Decimal{req.Gross, req.IncomingShared, req.OutgoingShared} {
		if d.IsNegative() {
			return nil, fmt.Errorf("Deposit: %w", domain.ErrInvalidAmount)
		}
	}
	if req.FeePercent.IsNegative() || req.FeePercent.GreaterThan(money.Hundred) {
		return nil, fmt.Errorf("Deposit: %w", domain.ErrInvalidPercentage)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Deposit: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.accounts.EnsureExists(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	account, err := s.accounts.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	before := account.ClosingBalance
	account.ApplyDeposit(
		money.Round2(req.Gross), req.FeePercent,
		money.Round2(req.IncomingShared), money.Round2(req.OutgoingShared),
	)
	if account.ClosingBalance.IsNegative() {
		return nil, fmt.Errorf("Deposit: %w", domain.ErrInsufficientFunds)
	}

	if err := s.accounts.Update(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	movement := &domain.LedgerMovement{
		ID:            uuid.New(),
		UserID:        userID,
		Kind:          domain.MovementKindDeposit,
		Amount:        account.ClosingBalance.Sub(before).Abs(),
		ClosingBefore: before,
		ClosingAfter:  account.ClosingBalance,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.movements.Create(ctx, tx, movement); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Deposit: commit: %w", err)
	}

	log.Info("royalty deposit applied",
		"user_id", userID,
		"gross", money.String(req.Gross),
		"closing_balance", money.String(account.ClosingBalance),
	)
	return account, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, userID uuid.UUID) (*domain.LedgerAccount, error) {
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return account, nil
}

func (s *LedgerService) Movements(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerMovement, int, error) {
	movements, total, err := s.movements.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("Movements: %w", err)
	}
	return movements, total, nil
}
