package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
)

const (
	inviteCodeLength = 12
	inviteTTL        = 30 * 24 * time.Hour
	inviteAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type userByEmail interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type invitationRepo interface {
	Upsert(ctx context.Context, tx *sql.Tx, inv *domain.Invitation) (*domain.Invitation, error)
}

// InviteService maps an e-mail address to a registered user, or issues a
// registration invitation when nobody owns the address yet.
type InviteService struct {
	users       userByEmail
	invitations invitationRepo
}

func NewInviteService(users userByEmail, invitations invitationRepo) *InviteService {
	return &InviteService{users: users, invitations: invitations}
}

// Resolve returns the id of the user registered under email, or nil when the
// address is unknown. It never writes.
func (s *InviteService) Resolve(ctx context.Context, email string) (*uuid.UUID, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return &u.ID, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("Resolve: %w", err)
}

// Invite issues a registration invitation for email on the caller's
// transaction and returns its code. A live invitation is reused.
func (s *InviteService) Invite(ctx context.Context, tx *sql.Tx, email string) (string, error) {
	code, err := generateInviteCode()
	if err != nil {
		return "", fmt.Errorf("Invite: %w", err)
	}

	now := time.Now().UTC()
	inv, err := s.invitations.Upsert(ctx, tx, &domain.Invitation{
		Email:     normalizeEmail(email),
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(inviteTTL),
	})
	if err != nil {
		return "", fmt.Errorf("Invite: %w", err)
	}

	logging.FromContext(ctx).Info("registration invitation issued", "expires_at", inv.ExpiresAt)
	return inv.Code, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateInviteCode() (string, error) {
	out := make([]byte, inviteCodeLength)
	limit := big.NewInt(int64(len(inviteAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generateInviteCode: %w", err)
		}
		out[i] = inviteAlphabet[n.Int64()]
	}
	return string(out), nil
}
