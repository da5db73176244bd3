package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// User mirrors the columns of the shared 'users' table that this service
// needs: identity, display name and role. Password and token columns stay
// with the auth service.
type User struct {
	ID        string
	Email     string
	FullName  string
	Role      string
	IsActive  bool
	CreatedAt time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrUserNotFound = errors.New("user not found")

// GetByID fetches a user by primary key. Inactive users are treated the same
// as missing ones so a disabled account can no longer take order locks.
func (r *UserRepo) GetByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,full_name,role,is_active,created_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	if !u.IsActive {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// DisplayName returns the name shown in "locked by X" banners. Falls back to
// the email address when no full name is set.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
