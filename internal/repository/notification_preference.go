package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type NotificationPreferenceRepository struct {
	db *sql.DB
}

func NewNotificationPreferenceRepository(db *sql.DB) *NotificationPreferenceRepository {
	return &NotificationPreferenceRepository{db: db}
}

// CanNotify reports whether the user accepts notifications on channel.
// Users without a stored preference are opted in.
func (r *NotificationPreferenceRepository) CanNotify(ctx context.Context, userID uuid.UUID, channel string) (bool, error) {
	var enabled bool
	err := r.db.QueryRowContext(ctx,
		`SELECT enabled FROM notification_preferences WHERE user_id = $1 AND channel = $2`,
		userID, channel,
	).Scan(&enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("CanNotify: %w", err)
	}
	return enabled, nil
}

func (r *NotificationPreferenceRepository) Set(ctx context.Context, userID uuid.UUID, channel string, enabled bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (user_id, channel, enabled, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, channel) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()`,
		userID, channel, enabled,
	)
	if err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}
