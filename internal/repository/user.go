package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

const userColumns = `id, email, name, password_hash, role, status, created_at`

// UserRepository is read-only: accounts are provisioned outside this service.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, "GetByID", `id = $1`, id)
}

// GetByEmail matches case-insensitively, the same way the unique index does.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "GetByEmail", `lower(email) = lower($1)`, email)
}

func (r *UserRepository) getOne(ctx context.Context, op, where string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg,
	))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	if err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
