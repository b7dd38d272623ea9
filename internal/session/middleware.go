package session

import (
	"context"
	"net/http"

	"github.com/verdantshop/verdant/internal/logging"
)

type contextKey struct{}

// Middleware loads the session for the request, extends it when due and puts
// it in the request context. Requests without a valid session pass through.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, data, err := m.load(r.Context(), r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if err := m.refresh(r.Context(), w, id, data); err != nil {
			logging.FromContext(r.Context(), nil).Warn("failed to extend session", "error", err, "user_id", data.UserID)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, data)))
	})
}

// GetSessionFromContext returns the session placed by Middleware, or nil.
func GetSessionFromContext(ctx context.Context) *Data {
	if ctx == nil {
		return nil
	}
	data, _ := ctx.Value(contextKey{}).(*Data)
	return data
}
