package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/verdantshop/verdant/internal/services"
)

const maxJSONBodyBytes = 1 << 20

// Result is the body of every write endpoint and every error response.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && r != nil {
		logFromRequest(r).Error("failed to encode response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, r, http.StatusOK, Result{Success: true, Message: message})
}

func writeFailure(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, Result{Success: false, Message: message})
}

// writeError maps service errors onto status codes. Only UserError messages
// and fixed strings reach the client; anything else is logged and reported.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		logFromRequest(r).Error("request failed", "error", err)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
	}
	writeFailure(w, r, status, message)
}

func classifyError(err error) (int, string) {
	var userErr services.UserError
	hasUserMessage := errors.As(err, &userErr)
	pick := func(fallback string) string {
		if hasUserMessage {
			return userErr.Message
		}
		return fallback
	}

	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, services.ErrProductNotFound):
		return http.StatusNotFound, pick("Product not found")
	case errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, services.ErrInsufficientStock):
		return http.StatusConflict, pick("Not enough stock")
	case errors.Is(err, services.ErrInvalidStatusTransition):
		return http.StatusConflict, "This order cannot move to the requested status"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, services.ErrInvalidSignature):
		return http.StatusForbidden, "Invalid signature"
	case errors.Is(err, services.ErrServiceUnavailable), errors.Is(err, services.ErrAuthUnavailable):
		return http.StatusServiceUnavailable, "This feature is not available"
	case hasUserMessage:
		return http.StatusBadRequest, userErr.Message
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
}
