package jwt

import (
	"encoding/json"
	"errors"
	"net/http"

	"bus-boarding/internal/domain/user"
)

// AuthMiddlewareFunc validates tokens and injects claims into the request context.
//
//   - no Authorization header: 401
//   - malformed, badly signed or expired token: 403
//   - valid token with a role outside allowedRoles: 403
func AuthMiddlewareFunc(mgr *Manager, allowedRoles ...user.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			// extract token from Authorization header
			raw, err := FromAuthorization(r)
			if err != nil {
				status := http.StatusForbidden
				if errors.Is(err, ErrNoAuthHeader) {
					status = http.StatusUnauthorized
				}
				writeAuthError(w, status, err.Error())
				return
			}

			// parse and validate token
			_, claims, err := mgr.ParseAndValidate(raw)
			if err != nil {
				writeAuthError(w, http.StatusForbidden, "invalid or expired token")
				return
			}

			// enforce role-based access control (RBAC)
			if err := RoleAllowed(claims, allowedRoles...); err != nil {
				writeAuthError(w, http.StatusForbidden, err.Error())
				return
			}

			// inject claims into context and proceed to next handler
			ctx := InjectClaims(r.Context(), claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireClaims extracts JWT claims from the request context.
func RequireClaims(r *http.Request) *Claims {
	c, _ := FromContext(r.Context())
	return c
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
