package domain

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryEventStatus string

const (
	DeliveryEventStatusPending    DeliveryEventStatus = "pending"
	DeliveryEventStatusDispatched DeliveryEventStatus = "dispatched"
	DeliveryEventStatusFailed     DeliveryEventStatus = "failed"
)

type DeliveryEventKind string

const (
	DeliveryEventKindRender DeliveryEventKind = "render"
	DeliveryEventKindNotify DeliveryEventKind = "notify"
)

// DeliveryEvent is an outbox row for a settlement side effect that failed
// after the ledger mutation committed.
type DeliveryEvent struct {
	ID           uuid.UUID
	WithdrawalID uuid.UUID
	Kind         DeliveryEventKind
	Status       DeliveryEventStatus
	Attempts     int
	LastError    *string
	LastAttempt  *time.Time
	CreatedAt    time.Time
}
