package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// User is the domain entity corresponding to the `users` table.
type User struct {
	ID           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Name         string
	Email        string
	Role         Role
	PasswordHash string
}

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrEmptyPasswordHash = errors.New("password hash cannot be empty")
	ErrBadTimestamps     = errors.New("updated_at cannot be before created_at")
)

// NewUser constructs a new User entity. The caller supplies an already-hashed password.
func NewUser(name, email string, role Role, passwordHash string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		CreatedAt:    now,
		UpdatedAt:    now,
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		Role:         role,
		PasswordHash: strings.TrimSpace(passwordHash),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks invariants of the User entity.
func (user *User) Validate() error {
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return ErrInvalidEmail
	}
	if !user.Role.Valid() {
		return ErrInvalidRole
	}
	if user.PasswordHash == "" {
		return ErrEmptyPasswordHash
	}
	if !user.CreatedAt.IsZero() && !user.UpdatedAt.IsZero() && user.UpdatedAt.Before(user.CreatedAt) {
		return ErrBadTimestamps
	}
	return nil
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
