package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/verdantshop/verdant/internal/services"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "user error",
			err:         services.UserError{Message: "Email is required"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Email is required",
		},
		{
			name:        "wrapped order not found",
			err:         fmt.Errorf("%w: abc", services.ErrOrderNotFound),
			wantStatus:  http.StatusNotFound,
			wantMessage: "Order not found",
		},
		{
			name:        "stock error keeps user message",
			err:         fmt.Errorf("%w: %w", services.ErrInsufficientStock, services.UserError{Message: "Not enough stock"}),
			wantStatus:  http.StatusConflict,
			wantMessage: "Not enough stock",
		},
		{
			name:       "invalid transition",
			err:        services.ErrInvalidStatusTransition,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "bad credentials",
			err:        services.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bad signature",
			err:        services.ErrInvalidSignature,
			wantStatus: http.StatusForbidden,
		},
		{
			name:        "infrastructure failure hides details",
			err:         errors.New("pq: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Something went wrong. Please try again.",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, message := classifyError(tt.err)
			if status != tt.wantStatus {
				t.Fatalf("unexpected status: got=%d want=%d", status, tt.wantStatus)
			}
			if tt.wantMessage != "" && message != tt.wantMessage {
				t.Fatalf("unexpected message: got=%q want=%q", message, tt.wantMessage)
			}
		})
	}
}
