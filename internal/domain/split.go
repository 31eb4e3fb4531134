package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SplitStatus string

const (
	SplitStatusPending  SplitStatus = "pending"
	SplitStatusAccepted SplitStatus = "accepted"
	SplitStatusRejected SplitStatus = "rejected"
)

func (s SplitStatus) IsTerminal() bool {
	return s == SplitStatusAccepted || s == SplitStatusRejected
}

type SplitAction string

const (
	SplitActionAccept SplitAction = "accept"
	SplitActionReject SplitAction = "reject"
)

func (a SplitAction) IsValid() bool {
	return a == SplitActionAccept || a == SplitActionReject
}

type SplitRole string

const (
	SplitRoleProducer       SplitRole = "producer"
	SplitRoleSongwriter     SplitRole = "songwriter"
	SplitRoleComposer       SplitRole = "composer"
	SplitRoleFeaturedArtist SplitRole = "featured_artist"
	SplitRoleRemixer        SplitRole = "remixer"
	SplitRoleMixingEngineer SplitRole = "mixing_engineer"
	SplitRoleManager        SplitRole = "manager"
	SplitRoleLabel          SplitRole = "label"
)

var splitRoles = map[SplitRole]struct{}{
	SplitRoleProducer:       {},
	SplitRoleSongwriter:     {},
	SplitRoleComposer:       {},
	SplitRoleFeaturedArtist: {},
	SplitRoleRemixer:        {},
	SplitRoleMixingEngineer: {},
	SplitRoleManager:        {},
	SplitRoleLabel:          {},
}

func (r SplitRole) IsValid() bool {
	_, ok := splitRoles[r]
	return ok
}

type RoyaltySplit struct {
	ID            uuid.UUID
	TrackID       uuid.UUID
	InviterUserID uuid.UUID
	InviteeUserID *uuid.UUID
	InviteeEmail  string
	InviteeName   string
	Percentage    decimal.Decimal
	Role          SplitRole
	Status        SplitStatus
	CreatedAt     time.Time
	AcceptedAt    *time.Time
	RespondedAt   *time.Time
}
