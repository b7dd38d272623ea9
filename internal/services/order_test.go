package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/events"
	"github.com/verdantshop/verdant/internal/payment"
	"github.com/verdantshop/verdant/internal/settings"
)

const testServerKey = "SB-Mid-server-test"

type orderServiceFixture struct {
	service   *OrderService
	orders    *fakeOrderStore
	payments  *fakePaymentProvider
	publisher *recordingPublisher
	emails    *recordingEmailSender
}

func newOrderServiceFixture(enforceSignature bool, products ...*db.Product) *orderServiceFixture {
	fixture := &orderServiceFixture{
		orders:    newFakeOrderStore(products...),
		payments:  &fakePaymentProvider{token: &payment.Token{Token: "snap-token", RedirectURL: "https://pay.example/snap"}},
		publisher: &recordingPublisher{},
		emails:    &recordingEmailSender{},
	}
	siteSettings := &fakeSiteSettings{site: settings.Site{
		SiteName:      "Verdant",
		CurrencyRate:  decimal.NewFromInt(1),
		LocalCurrency: "USD",
	}}
	fixture.service = NewOrderService(
		fixture.orders,
		siteSettings,
		fixture.payments,
		fixture.publisher,
		fixture.emails,
		OrderServiceConfig{
			BaseURL:           "https://shop.example",
			MidtransServerKey: testServerKey,
			EnforceSignature:  enforceSignature,
		},
		nil,
	)
	return fixture
}

func checkoutInput(lines ...CheckoutLine) CreateOrderInput {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return CreateOrderInput{
		Name:    "Ana Collector",
		Email:   "Ana@Example.com ",
		Phone:   "+1 555 0100",
		Address: "1 Greenhouse Way, Portland",
		Country: "United States",
		Items:   lines,
		Total:   total,
	}
}

func TestOrderService_CreateOrder_DecrementsStockPerItem(t *testing.T) {
	t.Parallel()

	monstera := testProduct("Monstera Thai Constellation", 4999, 3)
	hoya := testProduct("Hoya Krimson Queen", 1250, 1)
	fixture := newOrderServiceFixture(true, monstera, hoya)

	result, err := fixture.service.CreateOrder(t.Context(), checkoutInput(
		CheckoutLine{ProductID: monstera.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("49.99")},
		CheckoutLine{ProductID: hoya.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("12.50")},
	))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if !result.Success || result.Token != "snap-token" || result.RedirectURL == "" {
		t.Fatalf("unexpected result: %+v", result)
	}

	order := fixture.orders.orders[result.OrderID]
	if order == nil {
		t.Fatalf("order %s was not stored", result.OrderID)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(order.Items))
	}
	if monstera.Stock != 2 || hoya.Stock != 0 {
		t.Fatalf("expected stock to drop by one each, got monstera=%d hoya=%d", monstera.Stock, hoya.Stock)
	}
	if order.TotalUSDCents != 6249 {
		t.Fatalf("expected total 6249 cents, got %d", order.TotalUSDCents)
	}
	if order.Status != db.StatusPending || order.PaymentStatus != db.PaymentPending {
		t.Fatalf("unexpected initial statuses %s/%s", order.Status, order.PaymentStatus)
	}
	if order.CustomerEmail != "ana@example.com" {
		t.Fatalf("expected normalized email, got %q", order.CustomerEmail)
	}
	if order.LocalTotal.Valid {
		t.Fatalf("expected no local total for USD site, got %v", order.LocalTotal.Decimal)
	}
	if fixture.orders.tokens[order.ID] != "snap-token" {
		t.Fatalf("expected payment token to be stored")
	}

	req := fixture.payments.requests[0]
	wantSuccess := "https://shop.example/track/" + order.ID.String() + "?payment=success"
	if req.SuccessURL != wantSuccess {
		t.Fatalf("SuccessURL = %q, want %q", req.SuccessURL, wantSuccess)
	}
	if got := fixture.publisher.types(); len(got) != 1 || got[0] != events.OrderCreated {
		t.Fatalf("expected one order.created event, got %v", got)
	}
	if len(fixture.emails.received) != 1 {
		t.Fatalf("expected order received email, got %d", len(fixture.emails.received))
	}
}

func TestOrderService_CreateOrder_LocalTotal(t *testing.T) {
	t.Parallel()

	product := testProduct("Philodendron Pink Princess", 10000, 5)
	fixture := newOrderServiceFixture(true, product)
	fixture.service.settings = &fakeSiteSettings{site: settings.Site{
		CurrencyRate:  decimal.NewFromInt(16800),
		LocalCurrency: "IDR",
	}}

	result, err := fixture.service.CreateOrder(t.Context(), checkoutInput(
		CheckoutLine{ProductID: product.ID, Quantity: 2, UnitPrice: decimal.RequireFromString("100")},
	))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	order := fixture.orders.orders[result.OrderID]
	if !order.LocalTotal.Valid || !order.LocalTotal.Decimal.Equal(decimal.NewFromInt(3360000)) {
		t.Fatalf("unexpected local total %+v", order.LocalTotal)
	}
	if order.LocalCurrency != "IDR" {
		t.Fatalf("expected IDR, got %q", order.LocalCurrency)
	}
	if fixture.payments.requests[0].LocalCurrency != "IDR" {
		t.Fatalf("expected token request in IDR")
	}
}

func TestOrderService_CreateOrder_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	product := testProduct("Alocasia Dragon Scale", 3500, 2)

	tests := []struct {
		name   string
		mutate func(*CreateOrderInput)
	}{
		{
			name:   "total does not match items",
			mutate: func(in *CreateOrderInput) { in.Total = decimal.RequireFromString("30.00") },
		},
		{
			name:   "no items",
			mutate: func(in *CreateOrderInput) { in.Items = nil },
		},
		{
			name:   "zero quantity",
			mutate: func(in *CreateOrderInput) { in.Items[0].Quantity = 0 },
		},
		{
			name:   "fractional cents",
			mutate: func(in *CreateOrderInput) { in.Items[0].UnitPrice = decimal.RequireFromString("35.001") },
		},
		{
			name:   "missing email",
			mutate: func(in *CreateOrderInput) { in.Email = "" },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fixture := newOrderServiceFixture(true, &db.Product{ID: product.ID, Name: product.Name, Stock: 2})
			input := checkoutInput(CheckoutLine{ProductID: product.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("35.00")})
			tt.mutate(&input)

			_, err := fixture.service.CreateOrder(t.Context(), input)
			var userErr UserError
			if !errors.As(err, &userErr) {
				t.Fatalf("expected UserError, got %v", err)
			}
			if len(fixture.orders.orders) != 0 {
				t.Fatalf("expected no order to be stored")
			}
		})
	}
}

func TestOrderService_CreateOrder_InsufficientStockLeavesStockUntouched(t *testing.T) {
	t.Parallel()

	plenty := testProduct("Anthurium Warocqueanum", 8000, 5)
	scarce := testProduct("Begonia Maculata", 2000, 1)
	fixture := newOrderServiceFixture(true, plenty, scarce)

	_, err := fixture.service.CreateOrder(t.Context(), checkoutInput(
		CheckoutLine{ProductID: plenty.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("80.00")},
		CheckoutLine{ProductID: scarce.ID, Quantity: 2, UnitPrice: decimal.RequireFromString("20.00")},
	))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	var userErr UserError
	if !errors.As(err, &userErr) {
		t.Fatalf("expected a user-facing message, got %v", err)
	}
	if plenty.Stock != 5 || scarce.Stock != 1 {
		t.Fatalf("stock changed after failed order: %d/%d", plenty.Stock, scarce.Stock)
	}
	if len(fixture.publisher.events) != 0 {
		t.Fatalf("expected no events for a failed order")
	}
}

func TestOrderService_CreateOrder_UnknownProduct(t *testing.T) {
	t.Parallel()

	fixture := newOrderServiceFixture(true)
	_, err := fixture.service.CreateOrder(t.Context(), checkoutInput(
		CheckoutLine{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
	))
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestOrderService_CreateOrder_TokenFailureKeepsOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "gateway error", err: errors.New("gateway timeout")},
		{name: "payments disabled", err: payment.ErrPaymentsDisabled},
		{name: "gateway cannot charge shop currency", err: payment.ErrUnsupportedCurrency},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			product := testProduct("Syngonium Albo", 2500, 4)
			fixture := newOrderServiceFixture(true, product)
			fixture.payments.err = tt.err

			result, err := fixture.service.CreateOrder(t.Context(), checkoutInput(
				CheckoutLine{ProductID: product.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("25.00")},
			))
			if err != nil {
				t.Fatalf("CreateOrder() error = %v", err)
			}
			if !result.Success || result.Token != "" {
				t.Fatalf("expected success with empty token, got %+v", result)
			}
			if product.Stock != 3 {
				t.Fatalf("expected stock to stay decremented, got %d", product.Stock)
			}
			if _, ok := fixture.orders.tokens[result.OrderID]; ok {
				t.Fatalf("expected no stored token")
			}
		})
	}
}

func TestOrderService_HandleMidtransNotification(t *testing.T) {
	t.Parallel()

	shippingReady := db.StatusShippingReady
	cancelled := db.StatusCancelled
	pending := db.StatusPending

	tests := []struct {
		name              string
		transactionStatus string
		fraudStatus       string
		wantApplied       bool
		wantPayment       db.PaymentStatus
		wantStatus        *db.OrderStatus
		wantEvents        int
	}{
		{name: "settlement", transactionStatus: "settlement", wantApplied: true, wantPayment: db.PaymentPaid, wantStatus: &shippingReady, wantEvents: 1},
		{name: "capture accepted", transactionStatus: "capture", fraudStatus: "accept", wantApplied: true, wantPayment: db.PaymentPaid, wantStatus: &shippingReady, wantEvents: 1},
		{name: "capture challenged", transactionStatus: "capture", fraudStatus: "challenge", wantApplied: true, wantPayment: db.PaymentChallenge, wantStatus: &pending},
		{name: "deny", transactionStatus: "deny", wantApplied: true, wantPayment: db.PaymentFailed, wantStatus: &cancelled, wantEvents: 2},
		{name: "cancel", transactionStatus: "cancel", wantApplied: true, wantPayment: db.PaymentFailed, wantStatus: &cancelled, wantEvents: 2},
		{name: "expire", transactionStatus: "expire", wantApplied: true, wantPayment: db.PaymentFailed, wantStatus: &cancelled, wantEvents: 2},
		{name: "pending", transactionStatus: "pending", wantApplied: true, wantPayment: db.PaymentPending, wantStatus: &pending},
		{name: "refund is ignored", transactionStatus: "refund", wantPayment: db.PaymentPending, wantStatus: &pending},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fixture := newOrderServiceFixture(true)
			order := fixture.orders.addOrder(db.Order{Status: db.StatusPending, PaymentStatus: db.PaymentPending, TotalUSDCents: 10000})

			notification := signedNotification(order.ID.String(), tt.transactionStatus, tt.fraudStatus)
			result, err := fixture.service.HandleMidtransNotification(t.Context(), notification)
			if err != nil {
				t.Fatalf("HandleMidtransNotification() error = %v", err)
			}
			if result.Applied != tt.wantApplied {
				t.Fatalf("Applied = %v, want %v", result.Applied, tt.wantApplied)
			}

			stored := fixture.orders.orders[order.ID]
			if stored.PaymentStatus != tt.wantPayment {
				t.Fatalf("payment status = %s, want %s", stored.PaymentStatus, tt.wantPayment)
			}
			if stored.Status != *tt.wantStatus {
				t.Fatalf("status = %s, want %s", stored.Status, *tt.wantStatus)
			}
			if len(fixture.publisher.events) != tt.wantEvents {
				t.Fatalf("expected %d events, got %v", tt.wantEvents, fixture.publisher.types())
			}
			if tt.wantPayment == db.PaymentFailed {
				got := fixture.publisher.types()
				if got[0] != events.OrderPaymentFailed || got[1] != events.OrderCancelled {
					t.Fatalf("unexpected event types %v", got)
				}
			}
		})
	}
}

func TestOrderService_HandleMidtransNotification_ReplayIsHarmless(t *testing.T) {
	t.Parallel()

	fixture := newOrderServiceFixture(true)
	order := fixture.orders.addOrder(db.Order{Status: db.StatusPending, PaymentStatus: db.PaymentPending})
	notification := signedNotification(order.ID.String(), "settlement", "")

	for i := 0; i < 2; i++ {
		if _, err := fixture.service.HandleMidtransNotification(t.Context(), notification); err != nil {
			t.Fatalf("delivery %d: unexpected error %v", i+1, err)
		}
	}

	stored := fixture.orders.orders[order.ID]
	if stored.PaymentStatus != db.PaymentPaid || stored.Status != db.StatusShippingReady {
		t.Fatalf("unexpected statuses after replay: %s/%s", stored.PaymentStatus, stored.Status)
	}
}

func TestOrderService_HandleMidtransNotification_Signature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		enforce     bool
		wantErr     error
		wantPayment db.PaymentStatus
	}{
		{name: "enforced rejects", enforce: true, wantErr: ErrInvalidSignature, wantPayment: db.PaymentPending},
		{name: "lenient applies", enforce: false, wantPayment: db.PaymentPaid},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fixture := newOrderServiceFixture(tt.enforce)
			order := fixture.orders.addOrder(db.Order{Status: db.StatusPending, PaymentStatus: db.PaymentPending})

			notification := signedNotification(order.ID.String(), "settlement", "")
			notification.SignatureKey = "forged"

			_, err := fixture.service.HandleMidtransNotification(t.Context(), notification)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := fixture.orders.orders[order.ID].PaymentStatus; got != tt.wantPayment {
				t.Fatalf("payment status = %s, want %s", got, tt.wantPayment)
			}
		})
	}
}

func TestOrderService_HandleMidtransNotification_NoServerKey(t *testing.T) {
	t.Parallel()

	for _, enforce := range []bool{true, false} {
		fixture := newOrderServiceFixture(enforce)
		fixture.service.cfg.MidtransServerKey = ""
		order := fixture.orders.addOrder(db.Order{Status: db.StatusPending, PaymentStatus: db.PaymentPending})

		notification := signedNotification(order.ID.String(), "settlement", "")
		notification.SignatureKey = payment.Signature(notification.OrderID, notification.StatusCode, notification.GrossAmount, "")

		if _, err := fixture.service.HandleMidtransNotification(t.Context(), notification); !errors.Is(err, ErrServiceUnavailable) {
			t.Fatalf("enforce=%v: expected ErrServiceUnavailable, got %v", enforce, err)
		}
		if got := fixture.orders.orders[order.ID].PaymentStatus; got != db.PaymentPending {
			t.Fatalf("enforce=%v: payment status = %s, want PENDING", enforce, got)
		}
	}
}

func TestOrderService_HandleMidtransNotification_UnknownOrder(t *testing.T) {
	t.Parallel()

	fixture := newOrderServiceFixture(true)

	for _, orderID := range []string{uuid.NewString(), "not-a-uuid"} {
		_, err := fixture.service.HandleMidtransNotification(t.Context(), signedNotification(orderID, "settlement", ""))
		if !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("order %q: expected ErrOrderNotFound, got %v", orderID, err)
		}
	}
}

func TestOrderService_HandleMidtransNotification_MissingFields(t *testing.T) {
	t.Parallel()

	fixture := newOrderServiceFixture(true)
	_, err := fixture.service.HandleMidtransNotification(t.Context(), payment.Notification{})
	var userErr UserError
	if !errors.As(err, &userErr) {
		t.Fatalf("expected UserError, got %v", err)
	}
}

func TestOrderService_TrackOrder(t *testing.T) {
	t.Parallel()

	fixture := newOrderServiceFixture(true)
	order := fixture.orders.addOrder(db.Order{
		Status:           db.StatusShipped,
		PaymentStatus:    db.PaymentPaid,
		Courier:          CourierDHL,
		TrackingNumber:   "1234567890",
		PhytoCertificate: "PC-2024-001",
	})

	info, err := fixture.service.TrackOrder(t.Context(), order.ID)
	if err != nil {
		t.Fatalf("TrackOrder() error = %v", err)
	}
	if info.Status != db.StatusShipped || info.TrackingURL == "" || info.PhytoCertificate != "PC-2024-001" {
		t.Fatalf("unexpected tracking info %+v", info)
	}

	if _, err := fixture.service.TrackOrder(t.Context(), uuid.New()); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func signedNotification(orderID, transactionStatus, fraudStatus string) payment.Notification {
	notification := payment.Notification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       "100.00",
		TransactionStatus: transactionStatus,
		FraudStatus:       fraudStatus,
	}
	notification.SignatureKey = payment.Signature(notification.OrderID, notification.StatusCode, notification.GrossAmount, testServerKey)
	return notification
}
