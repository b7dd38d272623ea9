package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/verdantshop/verdant/internal/auth"
	"github.com/verdantshop/verdant/internal/cache"
	"github.com/verdantshop/verdant/internal/config"
	"github.com/verdantshop/verdant/internal/handlers"
	"github.com/verdantshop/verdant/internal/services"
	"github.com/verdantshop/verdant/internal/session"
)

const testJWTSecret = "router-test-secret-0123456789abcdef"

// noUsers satisfies the account service constructor. The routes exercised
// here are rejected before any user lookup happens.
type noUsers struct {
	services.UserRepository
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func newTestRouter(t *testing.T) (*mux.Router, *auth.TokenIssuer) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Port:      "0",
		BaseURL:   "https://shop.example.com",
		UploadDir: t.TempDir(),
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
	accounts, err := services.NewAccountService(noUsers{}, nil, tokens, services.AccountServiceConfig{BaseURL: cfg.BaseURL}, logger)
	if err != nil {
		t.Fatalf("failed to create account service: %v", err)
	}

	h, err := handlers.New(handlers.Dependencies{
		Config:            cfg,
		DB:                pingerFunc(func(context.Context) error { return nil }),
		CacheProvider:     provider,
		OrderService:      services.NewOrderService(nil, nil, nil, nil, nil, services.OrderServiceConfig{}, logger),
		AdminService:      services.NewAdminService(services.AdminServiceDeps{Logger: logger}),
		AccountService:    accounts,
		StorefrontService: services.NewStorefrontService(nil, nil, nil, nil, logger),
		SessionManager:    session.NewManager(session.NewMemoryStore(), session.Options{Secure: true}),
		TokenIssuer:       tokens,
		Logger:            logger,
	})
	if err != nil {
		t.Fatalf("failed to create handlers: %v", err)
	}

	srv, err := New(cfg, logger, h)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv.buildRouter(), tokens
}

type namedRoute struct {
	name   string
	method string
	path   string
}

var pathVariable = regexp.MustCompile(`\{[^}]+\}`)

func adminRoutes(t *testing.T, router *mux.Router) []namedRoute {
	t.Helper()

	var routes []namedRoute
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		if !strings.HasPrefix(route.GetName(), "admin.") {
			return nil
		}
		template, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			return err
		}
		path := pathVariable.ReplaceAllString(template, uuid.NewString())
		for _, method := range methods {
			routes = append(routes, namedRoute{name: route.GetName(), method: method, path: path})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to walk routes: %v", err)
	}
	return routes
}

func TestAdminRoutesRequireCapability(t *testing.T) {
	t.Parallel()

	router, tokens := newTestRouter(t)
	routes := adminRoutes(t, router)
	if len(routes) < 17 {
		t.Fatalf("expected every admin route to be registered, found %d", len(routes))
	}

	shopper, _, err := tokens.Issue(auth.Principal{UserID: uuid.New(), Email: "shopper@example.com", Role: auth.RoleUser})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	for _, route := range routes {
		route := route
		t.Run(route.name+" "+route.method, func(t *testing.T) {
			t.Parallel()

			tests := []struct {
				name          string
				authorization string
				wantStatus    int
			}{
				{name: "anonymous", wantStatus: http.StatusUnauthorized},
				{name: "shopper", authorization: "Bearer " + shopper, wantStatus: http.StatusForbidden},
			}
			for _, tt := range tests {
				req := httptest.NewRequest(route.method, route.path, nil)
				if tt.authorization != "" {
					req.Header.Set("Authorization", tt.authorization)
				}
				rec := httptest.NewRecorder()

				router.ServeHTTP(rec, req)

				if rec.Code != tt.wantStatus {
					t.Fatalf("%s %s as %s: status = %d, want %d", route.method, route.path, tt.name, rec.Code, tt.wantStatus)
				}
			}
		})
	}
}

func TestReviewSubmissionReachesSignedInRoutes(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/products/monstera-albo/reviews", strings.NewReader(`{"rating":5}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	var match mux.RouteMatch
	if !router.Match(httptest.NewRequest(http.MethodPost, "/api/products/monstera-albo/reviews", nil), &match) || match.Route == nil {
		t.Fatalf("expected a route for review submission, got %v", match.MatchErr)
	}
	if got := match.Route.GetName(); got != "reviews.submit" {
		t.Fatalf("matched route %q, want reviews.submit", got)
	}
}

func TestUploadsDoNotListDirectory(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
