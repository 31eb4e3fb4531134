package split

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
	"github.com/WossMusic/woss-royalties/internal/money"
	"github.com/WossMusic/woss-royalties/internal/notify"
)

type CreateRequest struct {
	TrackID      uuid.UUID
	InviteeEmail string
	InviteeName  string
	Percentage   decimal.Decimal
	Role         domain.SplitRole
}

func validateCreate(req *CreateRequest) error {
	req.InviteeEmail = strings.ToLower(strings.TrimSpace(req.InviteeEmail))
	req.InviteeName = strings.TrimSpace(req.InviteeName)

	if req.TrackID == uuid.Nil {
		return fmt.Errorf("track_id is required: %w", domain.ErrInvalidRequest)
	}
	if req.InviteeEmail == "" {
		return fmt.Errorf("invitee_email is required: %w", domain.ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(req.InviteeEmail); err != nil {
		return fmt.Errorf("invitee_email is malformed: %w", domain.ErrInvalidRequest)
	}
	if err := money.ValidatePercentage(req.Percentage); err != nil {
		return domain.ErrInvalidPercentage
	}
	if !req.Role.IsValid() {
		return domain.ErrInvalidRole
	}
	return nil
}

// Create offers a share of a track to a collaborator. The sum of pending and
// accepted shares on a track never exceeds 100 percent.
func (s *Service) Create(ctx context.Context, inviterID uuid.UUID, req CreateRequest) (*domain.RoyaltySplit, error) {
	log := logging.FromContext(ctx)

	if err := validateCreate(&req); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	inviter, err := s.users.GetByID(ctx, inviterID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if strings.EqualFold(inviter.Email, req.InviteeEmail) {
		return nil, fmt.Errorf("Create: %w", domain.ErrSelfInvite)
	}

	inviteeID, err := s.identities.Resolve(ctx, req.InviteeEmail)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Create: begin tx: %w", err)
	}
	defer tx.Rollback()

	track, err := s.tracks.GetForUpdate(ctx, tx, req.TrackID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if track.OwnerUserID != inviterID {
		return nil, fmt.Errorf("Create: %w", domain.ErrNotOwner)
	}

	allocated, err := s.splits.SumActiveForTrack(ctx, tx, track.ID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if allocated.Add(req.Percentage).GreaterThan(money.Hundred) {
		s.metrics.SplitCapRejections.Inc()
		log.Info("split allocation cap reached",
			"track_id", track.ID,
			"allocated", money.String(allocated),
			"requested", money.String(req.Percentage),
		)
		return nil, fmt.Errorf("Create: %w", domain.ErrSplitAllocationExceeded)
	}

	var inviteCode string
	if inviteeID == nil {
		if inviteCode, err = s.identities.Invite(ctx, tx, req.InviteeEmail); err != nil {
			return nil, fmt.Errorf("Create: %w", err)
		}
	}

	split := &domain.RoyaltySplit{
		ID:            uuid.New(),
		TrackID:       track.ID,
		InviterUserID: inviterID,
		InviteeUserID: inviteeID,
		InviteeEmail:  req.InviteeEmail,
		InviteeName:   req.InviteeName,
		Percentage:    req.Percentage,
		Role:          req.Role,
		Status:        domain.SplitStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.splits.Create(ctx, tx, split); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Create: commit: %w", err)
	}

	s.metrics.SplitsCreated.Inc()
	log.Info("split created",
		"split_id", split.ID,
		"track_id", split.TrackID,
		"inviter_id", inviterID,
		"percentage", money.String(split.Percentage),
		"role", split.Role,
	)

	s.notifyInvitee(ctx, inviter, split, inviteCode)
	return split, nil
}

func (s *Service) notifyInvitee(ctx context.Context, inviter *domain.User, split *domain.RoyaltySplit, inviteCode string) {
	event := notify.Event{
		Type:      notify.EventSplitInvited,
		Recipient: split.InviteeEmail,
		Data: map[string]string{
			"split_id":     split.ID.String(),
			"track_id":     split.TrackID.String(),
			"inviter_name": inviter.Name,
			"percentage":   money.String(split.Percentage),
			"role":         string(split.Role),
		},
	}
	if inviteCode != "" {
		event.Data["invite_code"] = inviteCode
	}

	recipient := uuid.Nil
	if split.InviteeUserID != nil {
		recipient = *split.InviteeUserID
	}
	if err := s.notifier.Notify(ctx, recipient, event); err != nil {
		s.metrics.CollaboratorFailures.WithLabelValues("notify").Inc()
		logging.FromContext(ctx).Warn("split invitation notification failed",
			"split_id", split.ID,
			"error", err,
		)
	}
}
