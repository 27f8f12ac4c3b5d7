package user

import (
	"errors"
	"strings"
)

// Role is a user role carried in bearer tokens and stored in `users.role`.
type Role string

const (
	RoleRider  Role = "RIDER"  // tracks vehicles and files boarding requests
	RoleDevice Role = "DEVICE" // on-board unit or feed bridge pushing positions
	RoleAdmin  Role = "ADMIN"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleRider, RoleDevice, RoleAdmin:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

// Convenience helpers.
func (role Role) IsRider() bool  { return role == RoleRider }
func (role Role) IsDevice() bool { return role == RoleDevice }
func (role Role) IsAdmin() bool  { return role == RoleAdmin }
