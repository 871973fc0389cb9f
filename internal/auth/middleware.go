package auth

import (
	"context"
	"net/http"
	"strings"

	"saldo/internal/core"
	"saldo/internal/log"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// WithUserID returns a context carrying the authenticated user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user or ErrUnauthorized.
func UserIDFromContext(ctx context.Context) (string, error) {
	uid, ok := ctx.Value(userIDKey).(string)
	if !ok || uid == "" {
		return "", core.ErrUnauthorized
	}
	return uid, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// Middleware authenticates every request. Failures are handed to deny,
// which writes the 401 body.
func Middleware(a Authenticator, deny func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := a.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				log.FromContext(r.Context()).WithComponent(log.ComponentAuth).DebugContext(r.Context(),
					"Authentication failed", log.FieldError, err.Error())
				if deny != nil {
					deny(w, r)
				} else {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}
			ctx := log.WithUser(WithUserID(r.Context(), userID), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
