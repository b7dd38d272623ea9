package db

import "github.com/verdantshop/verdant/internal/models"

type Order = models.Order
type OrderItem = models.OrderItem
type OrderStatus = models.OrderStatus
type PaymentStatus = models.PaymentStatus
type Product = models.Product
type Review = models.Review
type User = models.User
type Customer = models.Customer
type WishlistItem = models.WishlistItem

const (
	StatusPending       = models.StatusPending
	StatusShippingReady = models.StatusShippingReady
	StatusShipped       = models.StatusShipped
	StatusCancelled     = models.StatusCancelled

	PaymentPending   = models.PaymentPending
	PaymentPaid      = models.PaymentPaid
	PaymentChallenge = models.PaymentChallenge
	PaymentFailed    = models.PaymentFailed
)
