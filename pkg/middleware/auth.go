// Package middleware provides HTTP middleware functions.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"tacoshare-tracking-api/pkg/authx"
	"tacoshare-tracking-api/pkg/httpx"

	"github.com/google/uuid"
)

const (
	// UserIDKey is the context key holding the authenticated uuid.UUID
	UserIDKey contextKey = "user_id"
	// UserRoleKey is the context key holding the authenticated role
	UserRoleKey contextKey = "user_role"
)

// Roles understood by the tracking API
const (
	RoleDriver   = "driver"
	RoleCustomer = "customer"
	RoleMerchant = "merchant"
	RoleAdmin    = "admin"
)

// RequireAuth returns a middleware that validates Bearer access tokens
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httpx.RespondFail(w, http.StatusUnauthorized, map[string]any{"authorization": "Missing authorization header"})
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				httpx.RespondFail(w, http.StatusUnauthorized, map[string]any{"authorization": "Invalid authorization header format"})
				return
			}

			claims, ok := validate(w, secret, parts[1])
			if !ok {
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// WebSocketAuth authenticates upgrade requests. Browsers cannot set headers on
// WebSocket handshakes, so the token may also come from the "token" query param.
func WebSocketAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if token == "" {
				if parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					token = parts[1]
				}
			}
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := authx.ValidateToken(secret, token, authx.AccessToken)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// RequireRole rejects authenticated users whose role is not listed.
// Admins are always allowed.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetUserRole(r.Context())
			if role != RoleAdmin && !slices.Contains(roles, role) {
				httpx.RespondFail(w, http.StatusForbidden, map[string]any{"role": "Insufficient permissions"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID returns the authenticated user ID from the context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok
}

// GetUserRole returns the authenticated role from the context
func GetUserRole(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

func validate(w http.ResponseWriter, secret, token string) (*authx.Claims, bool) {
	claims, err := authx.ValidateToken(secret, token, authx.AccessToken)
	switch {
	case err == nil:
		return claims, true
	case errors.Is(err, authx.ErrExpiredToken):
		httpx.RespondFail(w, http.StatusUnauthorized, map[string]any{"token": "Token has expired"})
	case errors.Is(err, authx.ErrInvalidTokenType):
		httpx.RespondFail(w, http.StatusUnauthorized, map[string]any{"token": "Invalid token type"})
	case errors.Is(err, authx.ErrMissingSecret):
		httpx.RespondError(w, http.StatusInternalServerError, "Authentication is not configured")
	default:
		httpx.RespondFail(w, http.StatusUnauthorized, map[string]any{"token": "Invalid token"})
	}
	return nil, false
}

func withClaims(ctx context.Context, claims *authx.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, UserRoleKey, claims.Role)
}
