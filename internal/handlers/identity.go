package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/verdantshop/verdant/internal/auth"
	"github.com/verdantshop/verdant/internal/session"
)

// Identify resolves the caller from a bearer token or the session cookie and
// stores the principal in the request context. Requests with an invalid
// bearer token are rejected outright instead of falling back to the session.
func (h *Handlers) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if raw := bearerToken(r); raw != "" {
			principal, err := h.tokens.Parse(raw)
			if err != nil {
				h.loggerFromContext(ctx).Info("rejected bearer token", "error", err)
				writeFailure(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, principal)))
			return
		}

		if sess := h.sessionFromRequest(ctx, r); sess != nil {
			ctx = auth.WithPrincipal(ctx, sess.Principal())
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects anonymous callers.
func (h *Handlers) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.PrincipalFromContext(r.Context()) == nil {
			writeFailure(w, r, http.StatusUnauthorized, "Sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapability returns middleware that lets through only principals whose
// role grants capability.
func (h *Handlers) RequireCapability(capability auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())
			if principal == nil {
				writeFailure(w, r, http.StatusUnauthorized, "Sign in required")
				return
			}
			if !principal.Can(capability) {
				h.loggerFromContext(r.Context()).Warn("capability denied",
					"user_id", principal.UserID,
					"role", principal.Role,
					"capability", capability,
				)
				writeFailure(w, r, http.StatusForbidden, "You do not have access to this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// sessionFromRequest prefers the session loaded by the session middleware and
// falls back to reading the cookie for routes mounted outside it.
func (h *Handlers) sessionFromRequest(ctx context.Context, r *http.Request) *session.Data {
	if sess := session.GetSessionFromContext(ctx); sess != nil {
		return sess
	}
	sess, err := h.sessionManager.GetSession(ctx, r)
	if err != nil {
		return nil
	}
	return sess
}
