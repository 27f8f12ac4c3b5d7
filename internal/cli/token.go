package cli

import (
	"fmt"
	"time"

	"bus-boarding/internal/domain/user"
	"bus-boarding/internal/general/jwt"

	"github.com/google/uuid"
)

// GenerateUserToken mints a JWT for a seeded user or device.
//
// Typical use (dev-only):
//
//	token, _, err := cli.GenerateUserToken(secret, 2*time.Hour,
//	    "550e8400-e29b-41d4-a716-446655440001", "", "DEVICE")
//
// Keep this package dev/internal only. Do not call it from production code paths.
func GenerateUserToken(secret string, ttl time.Duration, userID, email, roleStr string) (string, jwt.Claims, error) {
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}
	if err := uuid.Validate(userID); err != nil {
		return "", jwt.Claims{}, fmt.Errorf("user id must be a UUID: %w", err)
	}

	mgr := jwt.NewManager(secret, ttl)

	token, claims, err := mgr.IssueUserToken(userID, email, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}
