// Package notify delivers split invitations and settlement confirmations.
// Every delivery is gated by a per-user channel capability check.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/logging"
)

type EventType string

const (
	EventSplitInvited       EventType = "split.invited"
	EventSplitAccepted      EventType = "split.accepted"
	EventSplitRejected      EventType = "split.rejected"
	EventSettlementReady    EventType = "settlement.generated"
	EventSettlementReverted EventType = "settlement.reverted"
)

const ChannelEmail = "email"

type Event struct {
	Type EventType
	// Recipient is the address to use when the user has no account yet.
	Recipient string
	Data      map[string]string
}

type CapabilityChecker interface {
	CanNotify(ctx context.Context, userID uuid.UUID, channel string) (bool, error)
}

type transport interface {
	Send(ctx context.Context, userID uuid.UUID, channel string, event Event) error
}

// Notifier sends events through a transport after checking the recipient
// allows the channel. Suppressed events are not errors.
type Notifier struct {
	transport    transport
	capabilities CapabilityChecker
	channel      string
}

func New(t transport, capabilities CapabilityChecker) *Notifier {
	return &Notifier{transport: t, capabilities: capabilities, channel: ChannelEmail}
}

func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, event Event) error {
	if userID != uuid.Nil && n.capabilities != nil {
		ok, err := n.capabilities.CanNotify(ctx, userID, n.channel)
		if err != nil {
			return fmt.Errorf("Notify: capability check: %w", err)
		}
		if !ok {
			logging.FromContext(ctx).Debug("notification suppressed by user preference",
				"user_id", userID, "event", event.Type, "channel", n.channel)
			return nil
		}
	}

	if err := n.transport.Send(ctx, userID, n.channel, event); err != nil {
		return fmt.Errorf("Notify: %w", err)
	}
	return nil
}

// LogTransport writes notifications to the log instead of sending them.
type LogTransport struct{}

func (LogTransport) Send(ctx context.Context, userID uuid.UUID, channel string, event Event) error {
	logging.FromContext(ctx).Info("notification",
		"user_id", userID,
		"channel", channel,
		"event", event.Type,
		"recipient", event.Recipient,
	)
	return nil
}
