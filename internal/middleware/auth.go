package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("missing or invalid caller identity")

const ownerKey key = 1

// Authenticated extracts the caller identity set by the external auth layer.
// The gateway in front of this service verifies the bearer token and forwards
// the resolved user id in X-User-ID; we trust it and use it purely as a
// partition key for document ownership.
func Authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get("X-User-ID")
		auth := r.Header.Get("Authorization")
		if owner == "" || !strings.HasPrefix(auth, "Bearer ") {
			http.Error(w, `{"error":{"code":"UNAUTHORIZED","message":"authentication required"}}`, http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(WithOwner(r.Context(), owner)))
	}
}

func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}

// Owner returns the authenticated user id, or ErrUnauthorized when the
// request never passed through Authenticated.
func Owner(ctx context.Context) (string, error) {
	if id, ok := ctx.Value(ownerKey).(string); ok && id != "" {
		return id, nil
	}
	return "", ErrUnauthorized
}
