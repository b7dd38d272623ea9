package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment stage of an order.
type OrderStatus string

const (
	StatusPending       OrderStatus = "PENDING"
	StatusShippingReady OrderStatus = "SHIPPING_READY"
	StatusShipped       OrderStatus = "SHIPPED"
	StatusCancelled     OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusShippingReady, StatusShipped, StatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentStatus is the financial stage of an order. It moves independently of OrderStatus.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentChallenge PaymentStatus = "CHALLENGE"
	PaymentFailed    PaymentStatus = "FAILED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentChallenge, PaymentFailed:
		return true
	default:
		return false
	}
}

type Order struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.NullUUID       `json:"user_id"`
	CustomerName     string              `json:"customer_name"`
	CustomerEmail    string              `json:"customer_email"`
	CustomerPhone    string              `json:"customer_phone"`
	ShippingAddress  string              `json:"shipping_address"`
	Country          string              `json:"country"`
	Notes            string              `json:"notes,omitempty"`
	TotalUSDCents    int64               `json:"total_usd_cents"`
	LocalTotal       decimal.NullDecimal `json:"local_total"`
	LocalCurrency    string              `json:"local_currency,omitempty"`
	Status           OrderStatus         `json:"status"`
	PaymentStatus    PaymentStatus       `json:"payment_status"`
	PaymentProvider  string              `json:"payment_provider,omitempty"`
	PaymentToken     string              `json:"-"`
	Courier          string              `json:"courier,omitempty"`
	TrackingNumber   string              `json:"tracking_number,omitempty"`
	PhytoCertificate string              `json:"phyto_certificate,omitempty"`
	Items            []OrderItem         `json:"items,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// OrderItem is immutable once written. UnitPriceCents and ProductName are captured when
// the order is placed; ProductID is kept for display only and is cleared if the product is deleted.
type OrderItem struct {
	ID             uuid.UUID     `json:"id"`
	OrderID        uuid.UUID     `json:"order_id"`
	ProductID      uuid.NullUUID `json:"product_id"`
	ProductName    string        `json:"product_name"`
	Quantity       int           `json:"quantity"`
	UnitPriceCents int64         `json:"unit_price_cents"`
}

func (i OrderItem) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}
