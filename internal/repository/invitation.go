package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

// InvitationRepository writes only on a caller's transaction, so an invitation
// exists only if the split that issued it was committed.
type InvitationRepository struct{}

func NewInvitationRepository() *InvitationRepository {
	return &InvitationRepository{}
}

// Upsert keeps a live invitation for the e-mail. An unexpired code is reused;
// an expired one is replaced. The stored row is returned.
func (r *InvitationRepository) Upsert(ctx context.Context, tx *sql.Tx, inv *domain.Invitation) (*domain.Invitation, error) {
	var out domain.Invitation
	err := tx.QueryRowContext(ctx,
		`INSERT INTO invitations (email, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			code = CASE WHEN invitations.expires_at > now() THEN invitations.code ELSE EXCLUDED.code END,
			created_at = CASE WHEN invitations.expires_at > now() THEN invitations.created_at ELSE EXCLUDED.created_at END,
			expires_at = CASE WHEN invitations.expires_at > now() THEN invitations.expires_at ELSE EXCLUDED.expires_at END
		RETURNING email, code, created_at, expires_at`,
		strings.ToLower(inv.Email), inv.Code, inv.CreatedAt, inv.ExpiresAt,
	).Scan(&out.Email, &out.Code, &out.CreatedAt, &out.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("Upsert: %w", mapPQError(err))
	}
	return &out, nil
}
