package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/warden/pkg/accounts"
	"github.com/platinummonkey/warden/pkg/session"
)

type contextKey string

const identityKey contextKey = "identity"

// AuthMiddleware authenticates requests against the session token service.
type AuthMiddleware struct {
	sessions *session.Service
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(sessions *session.Service, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		identity, err := m.sessions.Identity(r.Context(), parts[1])
		if err != nil {
			unauthorizedResponse(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromRequest extracts the authenticated identity from the request,
// or nil when the request was not authenticated.
func IdentityFromRequest(r *http.Request) *session.Identity {
	identity, ok := r.Context().Value(identityKey).(*session.Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequireRole creates middleware that checks for a specific account role.
// The role is normalized the same way stored roles are.
func RequireRole(role string) func(http.Handler) http.Handler {
	role = accounts.NormalizeRole(role)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromRequest(r)
			if identity == nil {
				forbiddenResponse(w, "authentication required")
				return
			}

			if !hasRole(identity.Roles, role) {
				forbiddenResponse(w, "insufficient role permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(roles []string, role string) bool {
	for _, held := range roles {
		if held == role {
			return true
		}
	}
	return false
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func forbiddenResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
