package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type UserRole string

const (
	UserRoleArtist UserRole = "artist"
	UserRoleAdmin  UserRole = "admin"
)

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
}

type Track struct {
	ID          uuid.UUID
	OwnerUserID uuid.UUID
	Title       string
	CreatedAt   time.Time
}

// Invitation is the registration credential handed to an e-mail address that
// has been invited to a split but has no account yet.
type Invitation struct {
	Email     string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}
