package handlers

import (
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/verdantshop/verdant/internal/logging"
	"github.com/verdantshop/verdant/internal/observability"
)

// MetricsContext makes the metrics registry available to services and tags
// the Sentry scope with the request id and caller.
func (h *Handlers) MetricsContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithMetrics(r.Context(), h.metrics)

		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
				hub.Scope().SetTag("request_id", requestID)
			}
			if sess := h.sessionFromRequest(ctx, r); sess != nil {
				hub.Scope().SetUser(sentry.User{ID: sess.UserID.String(), Email: sess.Email})
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
