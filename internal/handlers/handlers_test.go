package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/verdantshop/verdant/internal/auth"
	"github.com/verdantshop/verdant/internal/cache"
	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/config"
	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/services"
	"github.com/verdantshop/verdant/internal/session"
	"github.com/verdantshop/verdant/internal/settings"
)

const (
	testJWTSecret         = "test-secret-that-is-at-least-32-bytes"
	testMidtransServerKey = "SB-Mid-server-test"
	testStripeSecret      = "whsec_test_secret"
)

// stubOrders embeds the repository interface so tests only implement the
// methods they exercise.
type stubOrders struct {
	services.OrderRepository

	mu       sync.Mutex
	orders   map[uuid.UUID]*db.Order
	created  []*db.Order
	updates  int
	stockErr error
	shipErr  error
}

func newStubOrders() *stubOrders {
	return &stubOrders{orders: map[uuid.UUID]*db.Order{}}
}

func (s *stubOrders) CreateWithItems(_ context.Context, order *db.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stockErr != nil {
		return s.stockErr
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	s.orders[order.ID] = order
	s.created = append(s.created, order)
	return nil
}

func (s *stubOrders) GetByID(_ context.Context, id uuid.UUID) (*db.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cloned := *order
	return &cloned, nil
}

func (s *stubOrders) ApplyPaymentUpdate(_ context.Context, id uuid.UUID, paymentStatus db.PaymentStatus, status *db.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return db.ErrNotFound
	}
	s.updates++
	order.PaymentStatus = paymentStatus
	if status != nil {
		order.Status = *status
	}
	return nil
}

func (s *stubOrders) MarkShipped(_ context.Context, id uuid.UUID, details db.ShipmentDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shipErr != nil {
		return s.shipErr
	}
	order, ok := s.orders[id]
	if !ok {
		return db.ErrNotFound
	}
	order.Status = db.StatusShipped
	if details.Courier != nil {
		order.Courier = *details.Courier
	}
	if details.TrackingNumber != nil {
		order.TrackingNumber = *details.TrackingNumber
	}
	return nil
}

func (s *stubOrders) ListAll(context.Context) ([]db.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]db.Order, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, *order)
	}
	return out, nil
}

func (s *stubOrders) ListByUser(_ context.Context, userID uuid.UUID) ([]db.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Order
	for _, order := range s.orders {
		if order.UserID.Valid && order.UserID.UUID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *stubOrders) add(order db.Order) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = &order
	return order.ID
}

func (s *stubOrders) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

type stubProducts struct {
	services.ProductRepository

	products map[uuid.UUID]*db.Product
}

func (s *stubProducts) GetByID(_ context.Context, id uuid.UUID) (*db.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cloned := *product
	return &cloned, nil
}

func (s *stubProducts) GetBySlug(_ context.Context, slug string) (*db.Product, error) {
	for _, product := range s.products {
		if product.Slug == slug {
			cloned := *product
			return &cloned, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *stubProducts) Search(context.Context, catalog.Filter) ([]db.Product, error) {
	out := make([]db.Product, 0, len(s.products))
	for _, product := range s.products {
		out = append(out, *product)
	}
	return out, nil
}

func (s *stubProducts) UpdateStock(_ context.Context, id uuid.UUID, stock int) error {
	product, ok := s.products[id]
	if !ok {
		return db.ErrNotFound
	}
	product.Stock = stock
	return nil
}

type stubUsers struct {
	services.UserRepository

	mu    sync.Mutex
	users map[string]*db.User
}

func newStubUsers() *stubUsers {
	return &stubUsers{users: map[string]*db.User{}}
}

func (s *stubUsers) Create(_ context.Context, user *db.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Email]; exists {
		return db.ErrDuplicateEmail
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	cloned := *user
	s.users[user.Email] = &cloned
	return nil
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (*db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, db.ErrNotFound
	}
	cloned := *user
	return &cloned, nil
}

func (s *stubUsers) GetByID(_ context.Context, id uuid.UUID) (*db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			cloned := *user
			return &cloned, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *stubUsers) ListCustomers(context.Context, int, int) ([]db.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]db.Customer, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, db.Customer{User: *user})
	}
	return out, nil
}

type stubSettings struct {
	site settings.Site
}

func (s *stubSettings) Site(context.Context) (settings.Site, error) {
	return s.site, nil
}

func (s *stubSettings) Update(context.Context, map[string]string) error {
	return nil
}

func (s *stubSettings) Public(context.Context) (map[string]string, error) {
	return map[string]string{"site_name": s.site.SiteName}, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type testEnv struct {
	h        *Handlers
	orders   *stubOrders
	products *stubProducts
	users    *stubUsers
	tokens   *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, nil)
}

// newTestEnvWithConfig lets a test adjust the configuration before the
// services are built.
func newTestEnvWithConfig(t *testing.T, adjust func(*config.Config)) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		BaseURL:                 "https://shop.example.com",
		PaymentEnforceSignature: true,
		MidtransServerKey:       testMidtransServerKey,
		StripeWebhookSecret:     testStripeSecret,
	}
	if adjust != nil {
		adjust(cfg)
	}

	provider, err := cache.NewProvider(cache.Config{Provider: "memory"})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { _ = provider.Close() })

	tokens, err := auth.NewTokenIssuer(testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}

	orders := newStubOrders()
	products := &stubProducts{products: map[uuid.UUID]*db.Product{}}
	users := newStubUsers()
	siteSettings := &stubSettings{site: settings.Site{SiteName: "Verdant", CurrencyRate: decimal.NewFromInt(1), LocalCurrency: "USD"}}

	orderService := services.NewOrderService(orders, siteSettings, nil, nil, nil, services.OrderServiceConfig{
		BaseURL:           cfg.BaseURL,
		MidtransServerKey: cfg.MidtransServerKey,
		EnforceSignature:  cfg.PaymentEnforceSignature,
	}, logger)
	adminService := services.NewAdminService(services.AdminServiceDeps{
		Orders:   orders,
		Products: products,
		Users:    users,
		Settings: siteSettings,
		Logger:   logger,
	})
	accountService, err := services.NewAccountService(users, orders, tokens, services.AccountServiceConfig{BaseURL: cfg.BaseURL}, logger)
	if err != nil {
		t.Fatalf("failed to create account service: %v", err)
	}
	storefrontService := services.NewStorefrontService(products, nil, nil, siteSettings, logger)

	h, err := New(Dependencies{
		Config:            cfg,
		DB:                pingerFunc(func(context.Context) error { return nil }),
		CacheProvider:     provider,
		OrderService:      orderService,
		AdminService:      adminService,
		AccountService:    accountService,
		StorefrontService: storefrontService,
		SessionManager:    session.NewManager(session.NewMemoryStore(), session.Options{Secure: true}),
		TokenIssuer:       tokens,
		Logger:            logger,
	})
	if err != nil {
		t.Fatalf("failed to create handlers: %v", err)
	}

	return &testEnv{h: h, orders: orders, products: products, users: users, tokens: tokens}
}

func (e *testEnv) addProduct(name string, priceCents int64, stock int) *db.Product {
	product := &db.Product{
		ID:         uuid.New(),
		Slug:       strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Name:       name,
		Category:   "Aroids",
		PriceCents: priceCents,
		Stock:      stock,
		Images:     []string{"/uploads/" + strings.ToLower(strings.ReplaceAll(name, " ", "-")) + ".jpg"},
	}
	e.products.products[product.ID] = product
	return product
}

func (e *testEnv) bearer(t *testing.T, role auth.Role) string {
	t.Helper()
	token, _, err := e.tokens.Issue(auth.Principal{UserID: uuid.New(), Email: "someone@example.com", Role: role})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return "Bearer " + token
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{name: "database reachable", wantStatus: http.StatusOK},
		{name: "database down", pingErr: context.DeadlineExceeded, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.h.db = pingerFunc(func(context.Context) error { return tt.pingErr })

			rec := httptest.NewRecorder()
			env.h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(Dependencies{}); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}
