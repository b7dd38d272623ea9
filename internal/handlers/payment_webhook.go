package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/verdantshop/verdant/internal/cache"
	"github.com/verdantshop/verdant/internal/observability"
	"github.com/verdantshop/verdant/internal/payment"
	"github.com/verdantshop/verdant/internal/services"
	stripewebhook "github.com/verdantshop/verdant/internal/stripe"
)

// stripeWebhookIdempotencyTTL is how long webhook event IDs are kept for deduplication
const stripeWebhookIdempotencyTTL = 24 * time.Hour

// PaymentWebhook receives Midtrans status notifications. Undecodable bodies,
// unknown orders and store failures answer 500 so the gateway retries the
// delivery.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	var notification payment.Notification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		logger.Warn("failed to decode payment notification", "error", err)
		writeFailure(w, r, http.StatusInternalServerError, "Invalid notification")
		return
	}

	if _, err := h.orders.HandleMidtransNotification(ctx, notification); err != nil {
		var userErr services.UserError
		switch {
		case errors.Is(err, services.ErrInvalidSignature):
			writeFailure(w, r, http.StatusForbidden, "Invalid signature")
		case errors.Is(err, services.ErrServiceUnavailable):
			writeFailure(w, r, http.StatusServiceUnavailable, "Payment notifications are not enabled")
		case errors.As(err, &userErr):
			writeFailure(w, r, http.StatusBadRequest, userErr.Message)
		default:
			logger.Error("failed to process payment notification", "error", err, "order_id", notification.OrderID)
			writeFailure(w, r, http.StatusInternalServerError, "Processing failed")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "OK"})
}

// StripeWebhook receives verified Stripe events. Each event id is claimed in
// the cache before processing and released again if processing fails.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, r, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		logger.Error("failed to read Stripe webhook payload", "error", err)
		writeFailure(w, r, http.StatusBadRequest, "Invalid webhook")
		return
	}

	event, err := h.stripeEvents.Verify(payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, stripewebhook.ErrNotConfigured) {
		logger.Warn("rejected Stripe webhook; no endpoint secret configured")
		writeFailure(w, r, http.StatusServiceUnavailable, "Stripe webhooks are not enabled")
		return
	}
	if err != nil {
		logger.Warn("rejected Stripe webhook", "error", err)
		writeFailure(w, r, http.StatusBadRequest, "Invalid webhook")
		return
	}
	logger = logger.With("event_id", event.ID, "type", event.Type)

	notification, handled, err := payment.NotificationFromStripe(event)
	if !handled {
		logger.Debug("ignoring Stripe event type")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		logger.Warn("Stripe event carries no order reference", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	cacheKey := cache.WebhookKey("stripe", event.ID)
	claimed, err := h.cacheProvider.SetIfAbsent(ctx, cacheKey, "processing", stripeWebhookIdempotencyTTL)
	if err != nil {
		logger.Error("failed to claim webhook event", "error", err)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}
	if !claimed {
		observability.MetricsFromContext(ctx).WebhookDuplicate(payment.ProviderStripe)
		logger.Info("webhook already processed")
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.orders.ApplyPaymentNotification(ctx, payment.ProviderStripe, notification); err != nil {
		if delErr := h.cacheProvider.Delete(ctx, cacheKey); delErr != nil {
			logger.Error("failed to release webhook claim", "error", delErr)
		}
		logger.Error("failed to process Stripe webhook", "error", err)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
