package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

const TestPassword = "password123"

func SeedUser(t *testing.T, db *sql.DB, email, name string, role domain.UserRole) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, role, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func SeedArtist(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()
	return SeedUser(t, db, email, name, domain.UserRoleArtist)
}

func SeedTrack(t *testing.T, db *sql.DB, ownerID uuid.UUID, title string) *domain.Track {
	t.Helper()

	tr := &domain.Track{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Title:       title,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO tracks (id, owner_user_id, title, created_at) VALUES ($1, $2, $3, $4)`,
		tr.ID, tr.OwnerUserID, tr.Title, tr.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed track %s: %v", title, err)
	}
	return tr
}

// SeedLedger writes a ledger account holding the given royalty figures.
// Amounts are decimal strings.
func SeedLedger(t *testing.T, db *sql.DB, userID uuid.UUID, gross, feePercent, incoming, outgoing string) *domain.LedgerAccount {
	t.Helper()

	a := &domain.LedgerAccount{UserID: userID}
	a.ApplyDeposit(
		decimal.RequireFromString(gross),
		decimal.RequireFromString(feePercent),
		decimal.RequireFromString(incoming),
		decimal.RequireFromString(outgoing),
	)

	_, err := db.Exec(
		`INSERT INTO ledger_accounts (
			user_id, gross_royalty_earnings, distribution_fee_percent, distribution_fee_amount,
			net_activity, incoming_shared, outgoing_shared, closing_balance
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.UserID, a.GrossRoyaltyEarnings, a.DistributionFeePercent, a.DistributionFeeAmount,
		a.NetActivity, a.IncomingShared, a.OutgoingShared, a.ClosingBalance,
	)
	if err != nil {
		t.Fatalf("seed ledger for %s: %v", userID, err)
	}
	return a
}

func SeedPayoutProfile(t *testing.T, db *sql.DB, userID uuid.UUID) *domain.PayoutProfile {
	t.Helper()

	bank := "First Music Bank"
	acct := "0011223344"
	p := &domain.PayoutProfile{
		UserID:        userID,
		PaymentMethod: domain.PaymentMethodBankTransfer,
		AccountHolder: "Test Artist",
		BankName:      &bank,
		AccountNumber: &acct,
		Address:       "1 Studio Lane",
		UpdatedAt:     time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO payout_profiles (user_id, payment_method, account_holder, bank_name, account_number, address, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.UserID, p.PaymentMethod, p.AccountHolder, p.BankName, p.AccountNumber, p.Address, p.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed payout profile for %s: %v", userID, err)
	}
	return p
}

func GetLedgerAccount(t *testing.T, db *sql.DB, userID uuid.UUID) *domain.LedgerAccount {
	t.Helper()

	var a domain.LedgerAccount
	err := db.QueryRow(
		`SELECT user_id, gross_royalty_earnings, distribution_fee_percent, distribution_fee_amount,
			net_activity, incoming_shared, outgoing_shared, closing_balance, version
		 FROM ledger_accounts WHERE user_id = $1`, userID,
	).Scan(
		&a.UserID, &a.GrossRoyaltyEarnings, &a.DistributionFeePercent, &a.DistributionFeeAmount,
		&a.NetActivity, &a.IncomingShared, &a.OutgoingShared, &a.ClosingBalance, &a.Version,
	)
	if err != nil {
		t.Fatalf("get ledger account %s: %v", userID, err)
	}
	return &a
}

func CountRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()

	var count int
	if err := db.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return count
}
