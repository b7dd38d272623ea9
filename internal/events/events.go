// Package events publishes order lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/verdantshop/verdant/internal/models"
)

type Type string

const (
	OrderCreated       Type = "order.created"
	OrderPaid          Type = "order.paid"
	OrderPaymentFailed Type = "order.payment_failed"
	OrderCancelled     Type = "order.cancelled"
	OrderShipped       Type = "order.shipped"
)

type OrderEvent struct {
	ID            uuid.UUID            `json:"id"`
	Type          Type                 `json:"type"`
	OrderID       uuid.UUID            `json:"order_id"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TotalUSDCents int64                `json:"total_usd_cents"`
	Country       string               `json:"country,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// NewOrderEvent snapshots order for the given event type.
func NewOrderEvent(eventType Type, order *models.Order) OrderEvent {
	event := OrderEvent{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
	if order != nil {
		event.OrderID = order.ID
		event.Status = order.Status
		event.PaymentStatus = order.PaymentStatus
		event.TotalUSDCents = order.TotalUSDCents
		event.Country = order.Country
	}
	return event
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OrderEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
