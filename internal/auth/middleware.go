// middleware.go — HTTP middleware for auth enforcement.
// Provides Bearer token extraction and identity context injection.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Identity is the resolved caller of a gateway request. Either an
// authenticated student (UserID + Token set) or an anonymous caller.
type Identity struct {
	UserID        string
	Token         string
	Authenticated bool
}

// contextKey is an unexported type to avoid context key collisions.
type contextKey string

const identityKey contextKey = "auth_identity"

// RequireAuth validates the Bearer JWT in the Authorization header. On
// success, injects the caller's Identity into the request context. On
// failure, responds with 401 JSON.
func (v *Verifier) RequireAuth(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			WriteError(w, http.StatusUnauthorized, "missing_token", "Authorization header required")
			return
		}

		claims, err := v.Validate(tokenStr)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
			return
		}

		ident := Identity{UserID: claims.UserID(), Token: tokenStr, Authenticated: true}
		ctx := context.WithValue(r.Context(), identityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// OptionalAuth resolves the Identity when a valid Bearer token is present
// and passes the request through anonymously otherwise. Used on endpoints
// that serve both students and guests.
func (v *Verifier) OptionalAuth(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr != "" {
			if claims, err := v.Validate(tokenStr); err == nil {
				ident := Identity{UserID: claims.UserID(), Token: tokenStr, Authenticated: true}
				r = r.WithContext(context.WithValue(r.Context(), identityKey, ident))
			}
		}
		next.ServeHTTP(w, r)
	}
}

// IdentityFromContext extracts the caller Identity from the request context.
// The zero Identity means anonymous.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{}
}

// extractBearerToken pulls the token from "Authorization: Bearer <token>".
// Returns empty string if header is missing or malformed.
func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard error body: {"error": code, "message": msg}.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, map[string]string{"error": code, "message": msg})
}
