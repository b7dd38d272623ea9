package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"

	"github.com/verdantshop/verdant/internal/auth"
	"github.com/verdantshop/verdant/internal/config"
	"github.com/verdantshop/verdant/internal/handlers"
	"github.com/verdantshop/verdant/internal/uploads"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           sentryHandler.Handle(s.buildRouter()),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.Use(h.MetricsContext)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")
	r.HandleFunc("/metrics", h.Metrics).Methods("GET").Name("metrics")
	r.HandleFunc("/webhooks/payment", h.PaymentWebhook).Methods("POST").Name("webhooks.payment")
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods("POST").Name("webhooks.stripe")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	r.PathPrefix(uploads.PublicPrefix).Handler(uploads.FileServer(s.cfg.UploadDir)).Methods("GET").Name("uploads")

	r.HandleFunc("/auth/google/login", h.GoogleLogin).Methods("GET").Name("auth.google.login")
	r.HandleFunc("/auth/google/callback", h.GoogleCallback).Methods("GET").Name("auth.google.callback")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.SessionMiddleware)
	api.Use(h.Identify)
	api.Use(h.RequireSameOrigin)

	api.HandleFunc("/products", h.ListProducts).Methods("GET").Name("products.list")
	api.HandleFunc("/products/{slug}", h.GetProduct).Methods("GET").Name("products.get")
	api.HandleFunc("/products/{slug}/reviews", h.ListReviews).Methods("GET").Name("reviews.list")
	api.HandleFunc("/categories", h.ListCategories).Methods("GET").Name("categories.list")
	api.HandleFunc("/settings/public", h.PublicSettings).Methods("GET").Name("settings.public")

	api.HandleFunc("/cart", h.GetCart).Methods("GET").Name("cart.get")
	api.HandleFunc("/cart", h.ClearCart).Methods("DELETE").Name("cart.clear")
	api.HandleFunc("/cart/items", h.AddCartItem).Methods("POST").Name("cart.items.add")
	api.HandleFunc("/cart/items/{productId}", h.SetCartItemQuantity).Methods("PUT").Name("cart.items.set")
	api.HandleFunc("/cart/items/{productId}", h.RemoveCartItem).Methods("DELETE").Name("cart.items.remove")

	api.HandleFunc("/orders", h.CreateOrder).Methods("POST").Name("orders.create")
	api.HandleFunc("/orders/{id}/track", h.TrackOrder).Methods("GET").Name("orders.track")

	api.HandleFunc("/auth/register", h.Register).Methods("POST").Name("auth.register")
	api.HandleFunc("/auth/login", h.Login).Methods("POST").Name("auth.login")
	api.HandleFunc("/auth/logout", h.Logout).Methods("POST").Name("auth.logout")

	// Signed-in shopper routes
	account := api.NewRoute().Subrouter()
	account.Use(h.RequireUser)
	account.HandleFunc("/me", h.Me).Methods("GET").Name("me")
	account.HandleFunc("/me/orders", h.MyOrders).Methods("GET").Name("me.orders")
	account.HandleFunc("/me/wishlist", h.ListWishlist).Methods("GET").Name("me.wishlist")
	account.HandleFunc("/wishlist/{productId}/toggle", h.ToggleWishlist).Methods("POST").Name("wishlist.toggle")
	account.HandleFunc("/products/{slug}/reviews", h.SubmitReview).Methods("POST").Name("reviews.submit")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.RequireUser)
	guard := func(capability auth.Capability, handler http.HandlerFunc) http.Handler {
		return h.RequireCapability(capability)(handler)
	}
	admin.Handle("/dashboard", guard(auth.CapOrdersManage, h.AdminDashboard)).Methods("GET").Name("admin.dashboard")
	admin.Handle("/orders", guard(auth.CapOrdersManage, h.AdminListOrders)).Methods("GET").Name("admin.orders.list")
	admin.Handle("/orders/{id}", guard(auth.CapOrdersManage, h.AdminGetOrder)).Methods("GET").Name("admin.orders.get")
	admin.Handle("/orders/{id}/ship", guard(auth.CapOrdersManage, h.AdminShipOrder)).Methods("POST").Name("admin.orders.ship")
	admin.Handle("/orders/{id}/mark-paid", guard(auth.CapOrdersManage, h.AdminMarkPaid)).Methods("POST").Name("admin.orders.mark_paid")
	admin.Handle("/orders/{id}/shipment", guard(auth.CapOrdersManage, h.AdminUpdateShipment)).Methods("PUT").Name("admin.orders.shipment")
	admin.Handle("/products", guard(auth.CapProductsManage, h.AdminListProducts)).Methods("GET").Name("admin.products.list")
	admin.Handle("/products", guard(auth.CapProductsManage, h.AdminCreateProduct)).Methods("POST").Name("admin.products.create")
	admin.Handle("/products/import", guard(auth.CapProductsManage, h.AdminImportCatalog)).Methods("POST").Name("admin.products.import")
	admin.Handle("/products/{id}", guard(auth.CapProductsManage, h.AdminUpdateProduct)).Methods("PUT").Name("admin.products.update")
	admin.Handle("/products/{id}", guard(auth.CapProductsManage, h.AdminDeleteProduct)).Methods("DELETE").Name("admin.products.delete")
	admin.Handle("/products/{id}/stock", guard(auth.CapProductsManage, h.AdminUpdateStock)).Methods("PUT").Name("admin.products.stock")
	admin.Handle("/settings", guard(auth.CapSettingsManage, h.AdminGetSettings)).Methods("GET").Name("admin.settings.get")
	admin.Handle("/settings", guard(auth.CapSettingsManage, h.AdminUpdateSettings)).Methods("PUT").Name("admin.settings.update")
	admin.Handle("/customers", guard(auth.CapCustomersRead, h.AdminListCustomers)).Methods("GET").Name("admin.customers.list")
	admin.Handle("/export/orders.csv", guard(auth.CapReportsExport, h.AdminExportOrders)).Methods("GET").Name("admin.export.orders")
	admin.Handle("/export/customers.csv", guard(auth.CapReportsExport, h.AdminExportCustomers)).Methods("GET").Name("admin.export.customers")

	return r
}
