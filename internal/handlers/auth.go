package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/verdantshop/verdant/internal/auth"
	"github.com/verdantshop/verdant/internal/services"
	"github.com/verdantshop/verdant/internal/session"
)

const oauthStateCookieName = "oauth_state"

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.accounts.Register(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.startSession(w, r, result); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.startSession(w, r, result); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// Logout handles user logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.DestroySession(r.Context(), w, r); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to destroy session", "error", err)
	}
	writeSuccess(w, r, "Signed out")
}

// GoogleLogin redirects to the Google OAuth authorization URL.
func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFromContext(r.Context())

	loginResult, err := h.accounts.StartGoogleLogin()
	if errors.Is(err, services.ErrAuthUnavailable) {
		writeFailure(w, r, http.StatusNotFound, "Google sign-in is not enabled")
		return
	}
	if err != nil {
		logger.Error("failed to generate oauth state", "error", err)
		http.Error(w, "Failed to generate OAuth state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    loginResult.State,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.isSecure(),
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, loginResult.AuthorizationURL, http.StatusTemporaryRedirect)
}

// GoogleCallback completes the OAuth flow and signs the user in.
func (h *Handlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		logger.Warn("oauth state cookie not found; restarting login", "error", err)
		http.Redirect(w, r, "/auth/google/login", http.StatusSeeOther)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.isSecure(),
		SameSite: http.SameSiteLaxMode,
	})

	state := strings.TrimSpace(r.URL.Query().Get("state"))
	if state == "" || state != stateCookie.Value {
		logger.Error("oauth state mismatch")
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		logger.Error("no code in oauth callback")
		http.Error(w, "No code provided", http.StatusBadRequest)
		return
	}

	result, err := h.accounts.CompleteGoogleLogin(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAuthUnverifiedMail):
			http.Error(w, "Your Google account email is not verified", http.StatusForbidden)
		case errors.Is(err, services.ErrAuthInvalidCode), errors.Is(err, services.ErrAuthCodeExchange):
			logger.Warn("google code exchange failed", "error", err)
			http.Error(w, "Sign-in failed", http.StatusBadRequest)
		default:
			logger.Error("failed to complete google login", "error", err)
			http.Error(w, "Sign-in failed", http.StatusInternalServerError)
		}
		return
	}

	if err := h.startSession(w, r, result); err != nil {
		logger.Error("failed to create session", "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	redirectTo := "/"
	if auth.ParseRole(result.User.Role) == auth.RoleAdmin {
		redirectTo = "/admin"
	}
	http.Redirect(w, r, redirectTo, http.StatusSeeOther)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	user, err := h.accounts.Me(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"user":         user,
		"capabilities": auth.Capabilities(auth.ParseRole(user.Role)),
	})
}

func (h *Handlers) MyOrders(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	orders, err := h.accounts.MyOrders(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, orders)
}

func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, result *services.AuthResult) error {
	_, err := h.sessionManager.CreateSession(r.Context(), w, &session.Data{
		UserID: result.User.ID,
		Email:  result.User.Email,
		Name:   result.User.Name,
		Role:   result.User.Role,
	})
	return err
}
