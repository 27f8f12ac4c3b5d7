package jwt

import (
	"time"

	"bus-boarding/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims defines our canonical JWT claims payload.
type Claims struct {
	Role  user.Role `json:"role"` // user role for RBAC (RIDER/DEVICE/ADMIN)
	Email string    `json:"email,omitempty"`
	jwtlib.RegisteredClaims
}

// ensure Claims implements jwtlib.Claims interface
var _ jwtlib.Claims = (*Claims)(nil)

// NewUserClaims constructs end-user claims.
func NewUserClaims(userID, email string, role user.Role, ttl time.Duration, now time.Time) *Claims {
	now = now.UTC()
	return &Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}
