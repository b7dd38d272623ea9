package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/events"
	"github.com/verdantshop/verdant/internal/logging"
	"github.com/verdantshop/verdant/internal/observability"
	"github.com/verdantshop/verdant/internal/payment"
	"github.com/verdantshop/verdant/internal/settings"
)

// CheckoutLine is one cart line as submitted by the storefront. UnitPrice is
// the USD price the shopper saw and is stored as is.
type CheckoutLine struct {
	ProductID uuid.UUID       `json:"productId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=1,lte=1000"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type CreateOrderInput struct {
	UserID  uuid.NullUUID   `json:"-"`
	Name    string          `json:"name" validate:"required,max=200"`
	Email   string          `json:"email" validate:"required,email,max=254"`
	Phone   string          `json:"phone" validate:"required,max=50"`
	Address string          `json:"address" validate:"required,max=1000"`
	Country string          `json:"country" validate:"required,max=100"`
	Notes   string          `json:"notes" validate:"max=2000"`
	Items   []CheckoutLine  `json:"items" validate:"required,min=1,dive"`
	Total   decimal.Decimal `json:"total"`
}

type CreateOrderResult struct {
	Success     bool      `json:"success"`
	OrderID     uuid.UUID `json:"orderId"`
	Token       string    `json:"token"`
	RedirectURL string    `json:"redirectUrl,omitempty"`
}

type PaymentNotificationResult struct {
	Applied       bool             `json:"applied"`
	PaymentStatus db.PaymentStatus `json:"payment_status,omitempty"`
	Status        *db.OrderStatus  `json:"status,omitempty"`
}

type TrackingInfo struct {
	OrderID          uuid.UUID        `json:"order_id"`
	Status           db.OrderStatus   `json:"status"`
	PaymentStatus    db.PaymentStatus `json:"payment_status"`
	Courier          string           `json:"courier,omitempty"`
	TrackingNumber   string           `json:"tracking_number,omitempty"`
	TrackingURL      string           `json:"tracking_url,omitempty"`
	PhytoCertificate string           `json:"phyto_certificate,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type OrderServiceConfig struct {
	BaseURL           string
	MidtransServerKey string
	EnforceSignature  bool
}

type OrderService struct {
	orders      OrderRepository
	settings    SiteSettings
	payments    payment.Provider
	publisher   events.Publisher
	emailSender OrderEmailSender
	validate    *validator.Validate
	cfg         OrderServiceConfig
	logger      *slog.Logger
}

func NewOrderService(
	orders OrderRepository,
	siteSettings SiteSettings,
	payments payment.Provider,
	publisher events.Publisher,
	emailSender OrderEmailSender,
	cfg OrderServiceConfig,
	logger *slog.Logger,
) *OrderService {
	if payments == nil {
		payments = payment.NoopProvider{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}

	return &OrderService{
		orders:      orders,
		settings:    siteSettings,
		payments:    payments,
		publisher:   publisher,
		emailSender: emailSender,
		validate:    newCheckoutValidator(),
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// CreateOrder records the order, its items and the stock decrements in one
// transaction, then asks the payment provider for a token. A token failure
// does not undo the order; the caller receives an empty token instead.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.create",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("CreateOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	metrics := observability.MetricsFromContext(ctx)

	if err := s.validate.Struct(input); err != nil {
		metrics.OrderFailed("invalid_input")
		return nil, checkoutValidationError(err)
	}

	site := s.siteOrDefault(ctx, logger)
	totalCents := catalog.DollarsToCents(input.Total)

	order := &db.Order{
		UserID:          input.UserID,
		CustomerName:    strings.TrimSpace(input.Name),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(input.Email)),
		CustomerPhone:   strings.TrimSpace(input.Phone),
		ShippingAddress: strings.TrimSpace(input.Address),
		Country:         strings.TrimSpace(input.Country),
		Notes:           strings.TrimSpace(input.Notes),
		TotalUSDCents:   totalCents,
		LocalTotal:      catalog.LocalTotal(totalCents, site.CurrencyRate, site.LocalCurrency),
		Status:          db.StatusPending,
		PaymentStatus:   db.PaymentPending,
		Items:           make([]db.OrderItem, 0, len(input.Items)),
	}
	if order.LocalTotal.Valid {
		order.LocalCurrency = site.LocalCurrency
	}
	for _, line := range input.Items {
		order.Items = append(order.Items, db.OrderItem{
			ProductID:      uuid.NullUUID{UUID: line.ProductID, Valid: true},
			Quantity:       line.Quantity,
			UnitPriceCents: catalog.DollarsToCents(line.UnitPrice),
		})
	}

	if err := s.orders.CreateWithItems(ctx, order); err != nil {
		span.Status = sentry.SpanStatusInternalError
		var stockErr *db.StockError
		switch {
		case errors.As(err, &stockErr):
			metrics.OrderFailed("insufficient_stock")
			return nil, fmt.Errorf("%w: %w", ErrInsufficientStock, UserError{Message: "Not enough stock for one of the plants in your cart"})
		case errors.Is(err, db.ErrProductNotFound):
			metrics.OrderFailed("product_not_found")
			return nil, fmt.Errorf("%w: %w", ErrProductNotFound, UserError{Message: "A plant in your cart is no longer available"})
		default:
			metrics.OrderFailed("store_error")
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
	}
	metrics.OrderCreated()
	ctx = logging.With(ctx, s.logger, "order_id", order.ID)
	logger = s.loggerFromContext(ctx)
	logger.Info("order created", "items", len(order.Items), "total_usd_cents", order.TotalUSDCents)

	result := &CreateOrderResult{Success: true, OrderID: order.ID}
	if token := s.requestPaymentToken(ctx, order, site); token != nil {
		result.Token = token.Token
		result.RedirectURL = token.RedirectURL
	}

	publishOrderEvent(ctx, s.publisher, logger, events.OrderCreated, order)

	if err := s.emailSender.SendOrderReceived(ctx, order); err != nil {
		logger.Warn("failed to send order received email", "error", err)
	}

	span.Status = sentry.SpanStatusOK
	return result, nil
}

func (s *OrderService) requestPaymentToken(ctx context.Context, order *db.Order, site settings.Site) *payment.Token {
	logger := s.loggerFromContext(ctx)
	metrics := observability.MetricsFromContext(ctx)
	providerName := s.payments.Name()

	req := payment.TokenRequest{
		Order:      order,
		SuccessURL: s.orderURL(order.ID, "success"),
		CancelURL:  s.orderURL(order.ID, "cancelled"),
	}
	if site.LocalCurrency != "" && site.LocalCurrency != "USD" {
		req.LocalRate = site.CurrencyRate
		req.LocalCurrency = site.LocalCurrency
	}

	token, err := s.payments.CreateToken(ctx, req)
	if errors.Is(err, payment.ErrPaymentsDisabled) {
		metrics.PaymentToken(providerName, "disabled")
		return nil
	}
	if err != nil {
		metrics.PaymentToken(providerName, "error")
		logger.Error("failed to create payment token; order proceeds without online payment", "error", err, "provider", providerName)
		return nil
	}
	metrics.PaymentToken(providerName, "ok")

	if err := s.orders.SetPaymentToken(ctx, order.ID, providerName, token.Token); err != nil {
		logger.Error("failed to store payment token", "error", err)
	}
	order.PaymentProvider = providerName
	order.PaymentToken = token.Token
	return token
}

func (s *OrderService) orderURL(orderID uuid.UUID, outcome string) string {
	base := strings.TrimRight(strings.TrimSpace(s.cfg.BaseURL), "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/track/%s?payment=%s", base, orderID, outcome)
}

func (s *OrderService) siteOrDefault(ctx context.Context, logger *slog.Logger) settings.Site {
	site := settings.Site{CurrencyRate: decimal.NewFromInt(1), LocalCurrency: "USD"}
	if s.settings == nil {
		return site
	}
	loaded, err := s.settings.Site(ctx)
	if err != nil {
		logger.Warn("failed to load site settings; using USD only", "error", err)
		return site
	}
	return loaded
}

// HandleMidtransNotification verifies the signature and applies the
// notification. With signature enforcement off a mismatch is only logged,
// but without a server key nothing is ever applied.
func (s *OrderService) HandleMidtransNotification(ctx context.Context, notification payment.Notification) (*PaymentNotificationResult, error) {
	logger := s.loggerFromContext(ctx)

	if err := notification.Validate(); err != nil {
		return nil, UserError{Message: err.Error()}
	}

	if strings.TrimSpace(s.cfg.MidtransServerKey) == "" {
		observability.MetricsFromContext(ctx).PaymentNotification(payment.ProviderMidtrans, "not_configured")
		logger.Warn("rejected payment notification; no server key configured", "order_id", notification.OrderID)
		return nil, fmt.Errorf("%w: payment notifications are not configured", ErrServiceUnavailable)
	}

	if !payment.VerifySignature(notification, s.cfg.MidtransServerKey) {
		if s.cfg.EnforceSignature {
			observability.MetricsFromContext(ctx).PaymentNotification(payment.ProviderMidtrans, "bad_signature")
			logger.Warn("rejected payment notification with invalid signature", "order_id", notification.OrderID)
			return nil, ErrInvalidSignature
		}
		logger.Warn("payment notification signature mismatch; continuing because enforcement is off", "order_id", notification.OrderID)
	}

	return s.ApplyPaymentNotification(ctx, payment.ProviderMidtrans, notification)
}

// ApplyPaymentNotification maps the gateway status onto the order. Updates
// overwrite the stored statuses, so replays are harmless. Stock is never
// restored here.
func (s *OrderService) ApplyPaymentNotification(ctx context.Context, provider string, notification payment.Notification) (*PaymentNotificationResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.payment_notification",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("ApplyPaymentNotification"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx).With("order_id", notification.OrderID, "provider", provider)
	metrics := observability.MetricsFromContext(ctx)

	orderID, err := uuid.Parse(strings.TrimSpace(notification.OrderID))
	if err != nil {
		metrics.PaymentNotification(provider, "unknown_order")
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, notification.OrderID)
	}

	outcome, ok := payment.Reconcile(notification.TransactionStatus, notification.FraudStatus)
	if !ok {
		metrics.PaymentNotification(provider, "ignored")
		logger.Info("ignoring payment notification", "transaction_status", notification.TransactionStatus, "fraud_status", notification.FraudStatus)
		return &PaymentNotificationResult{}, nil
	}

	if err := s.orders.ApplyPaymentUpdate(ctx, orderID, outcome.PaymentStatus, outcome.Status); err != nil {
		span.Status = sentry.SpanStatusInternalError
		if errors.Is(err, db.ErrNotFound) {
			metrics.PaymentNotification(provider, "unknown_order")
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		metrics.PaymentNotification(provider, "error")
		return nil, fmt.Errorf("failed to update order payment: %w", err)
	}

	metrics.PaymentNotification(provider, strings.ToLower(string(outcome.PaymentStatus)))
	logger.Info("payment notification applied",
		"transaction_status", notification.TransactionStatus,
		"payment_status", outcome.PaymentStatus,
		"status_changed", outcome.Status != nil,
	)

	if eventTypes := paymentEventTypes(outcome); len(eventTypes) > 0 {
		if order, err := s.orders.GetByID(ctx, orderID); err != nil {
			logger.Warn("failed to reload order for payment event", "error", err)
		} else {
			for _, eventType := range eventTypes {
				publishOrderEvent(ctx, s.publisher, logger, eventType, order)
			}
		}
	}

	span.Status = sentry.SpanStatusOK
	return &PaymentNotificationResult{
		Applied:       true,
		PaymentStatus: outcome.PaymentStatus,
		Status:        outcome.Status,
	}, nil
}

func (s *OrderService) TrackOrder(ctx context.Context, orderID uuid.UUID) (*TrackingInfo, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	return &TrackingInfo{
		OrderID:          order.ID,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		Courier:          order.Courier,
		TrackingNumber:   order.TrackingNumber,
		TrackingURL:      BuildTrackingURL(order.Courier, order.TrackingNumber),
		PhytoCertificate: order.PhytoCertificate,
		UpdatedAt:        order.UpdatedAt,
	}, nil
}

// paymentEventTypes lists the lifecycle events a reconciled notification
// produces. Pending and challenged payments publish nothing.
func paymentEventTypes(outcome payment.Outcome) []events.Type {
	switch outcome.PaymentStatus {
	case db.PaymentPaid:
		return []events.Type{events.OrderPaid}
	case db.PaymentFailed:
		if outcome.Status != nil && *outcome.Status == db.StatusCancelled {
			return []events.Type{events.OrderPaymentFailed, events.OrderCancelled}
		}
		return []events.Type{events.OrderPaymentFailed}
	default:
		return nil
	}
}

func publishOrderEvent(ctx context.Context, publisher events.Publisher, logger *slog.Logger, eventType events.Type, order *db.Order) {
	metrics := observability.MetricsFromContext(ctx)
	if err := publisher.Publish(ctx, events.NewOrderEvent(eventType, order)); err != nil {
		metrics.EventPublished(string(eventType), "error")
		logger.Warn("failed to publish order event", "error", err, "type", eventType, "order_id", order.ID)
		return
	}
	metrics.EventPublished(string(eventType), "ok")
}
