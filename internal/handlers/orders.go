package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/verdantshop/verdant/internal/auth"
	"github.com/verdantshop/verdant/internal/services"
)

// CreateOrder handles checkout. When the body carries no items the lines
// are taken from the caller's saved cart, which is cleared once the order
// is recorded.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	var input services.CreateOrderInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	if principal := auth.PrincipalFromContext(ctx); principal != nil {
		input.UserID = uuid.NullUUID{UUID: principal.UserID, Valid: true}
	}

	cartID := cartIDFromRequest(r)
	fromCart := false
	if len(input.Items) == 0 && cartID != "" {
		saved, err := h.carts.Load(ctx, cartID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		input.Items = checkoutLines(saved)
		if input.Total.IsZero() {
			input.Total = centsToDollars(saved.TotalCents())
		}
		fromCart = true
	}

	result, err := h.orders.CreateOrder(ctx, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if fromCart {
		if err := h.carts.Delete(ctx, cartID); err != nil {
			logger.Warn("failed to clear cart after checkout", "error", err, "order_id", result.OrderID)
		}
	}

	writeJSON(w, r, http.StatusCreated, result)
}

func (h *Handlers) TrackOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}

	info, err := h.orders.TrackOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

func centsToDollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
