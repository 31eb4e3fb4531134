package split

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
	"github.com/WossMusic/woss-royalties/internal/money"
	"github.com/WossMusic/woss-royalties/internal/notify"
)

// Respond records the invitee's decision on a pending split. A split that was
// addressed by e-mail is bound to the responding user.
func (s *Service) Respond(ctx context.Context, inviteeID, splitID uuid.UUID, action domain.SplitAction) (*domain.RoyaltySplit, error) {
	log := logging.FromContext(ctx)

	if !action.IsValid() {
		return nil, fmt.Errorf("Respond: action must be accept or reject: %w", domain.ErrInvalidRequest)
	}

	caller, err := s.users.GetByID(ctx, inviteeID)
	if err != nil {
		return nil, fmt.Errorf("Respond: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Respond: begin tx: %w", err)
	}
	defer tx.Rollback()

	split, err := s.splits.GetForUpdate(ctx, tx, splitID)
	if err != nil {
		return nil, fmt.Errorf("Respond: %w", err)
	}

	if !isInvitee(split, caller) {
		return nil, fmt.Errorf("Respond: %w", domain.ErrNotInvitee)
	}
	if split.Status.IsTerminal() {
		return nil, fmt.Errorf("Respond: %w", domain.ErrSplitTerminal)
	}

	now := time.Now().UTC()
	status := domain.SplitStatusRejected
	var acceptedAt *time.Time
	if action == domain.SplitActionAccept {
		status = domain.SplitStatusAccepted
		acceptedAt = &now
	}

	if err := s.splits.UpdateStatus(ctx, tx, split.ID, status, caller.ID, now, acceptedAt); err != nil {
		return nil, fmt.Errorf("Respond: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Respond: commit: %w", err)
	}

	split.Status = status
	split.InviteeUserID = &caller.ID
	split.RespondedAt = &now
	split.AcceptedAt = acceptedAt

	s.metrics.SplitResponses.WithLabelValues(string(action)).Inc()
	log.Info("split responded",
		"split_id", split.ID,
		"invitee_id", caller.ID,
		"status", status,
	)

	s.notifyInviter(ctx, split, caller)
	return split, nil
}

func isInvitee(split *domain.RoyaltySplit, caller *domain.User) bool {
	if split.InviteeUserID != nil {
		return *split.InviteeUserID == caller.ID
	}
	return strings.EqualFold(split.InviteeEmail, caller.Email)
}

func (s *Service) notifyInviter(ctx context.Context, split *domain.RoyaltySplit, invitee *domain.User) {
	eventType := notify.EventSplitRejected
	if split.Status == domain.SplitStatusAccepted {
		eventType = notify.EventSplitAccepted
	}

	err := s.notifier.Notify(ctx, split.InviterUserID, notify.Event{
		Type: eventType,
		Data: map[string]string{
			"split_id":     split.ID.String(),
			"track_id":     split.TrackID.String(),
			"invitee_name": invitee.Name,
			"percentage":   money.String(split.Percentage),
		},
	})
	if err != nil {
		s.metrics.CollaboratorFailures.WithLabelValues("notify").Inc()
		logging.FromContext(ctx).Warn("split response notification failed",
			"split_id", split.ID,
			"error", err,
		)
	}
}

// Cancel removes a split regardless of its status. Only the inviter may
// cancel.
func (s *Service) Cancel(ctx context.Context, inviterID, splitID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Cancel: begin tx: %w", err)
	}
	defer tx.Rollback()

	split, err := s.splits.GetForUpdate(ctx, tx, splitID)
	if err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}
	if split.InviterUserID != inviterID {
		return fmt.Errorf("Cancel: %w", domain.ErrNotOwner)
	}

	if err := s.splits.Delete(ctx, tx, split.ID); err != nil {
		return fmt.Errorf("Cancel: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Cancel: commit: %w", err)
	}

	logging.FromContext(ctx).Info("split cancelled",
		"split_id", split.ID,
		"previous_status", split.Status,
	)
	return nil
}
