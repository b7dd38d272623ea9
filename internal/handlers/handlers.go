package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/verdantshop/verdant/internal/auth"
	"github.com/verdantshop/verdant/internal/cache"
	"github.com/verdantshop/verdant/internal/cart"
	"github.com/verdantshop/verdant/internal/config"
	"github.com/verdantshop/verdant/internal/logging"
	"github.com/verdantshop/verdant/internal/observability"
	"github.com/verdantshop/verdant/internal/services"
	"github.com/verdantshop/verdant/internal/session"
	stripewebhook "github.com/verdantshop/verdant/internal/stripe"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MB

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers provides the HTTP handlers for the storefront API and back office.
type Handlers struct {
	config         *config.Config
	db             Pinger
	cacheProvider  cache.Provider
	carts          *cart.Store
	orders         *services.OrderService
	admin          *services.AdminService
	accounts       *services.AccountService
	storefront     *services.StorefrontService
	sessionManager *session.Manager
	tokens         *auth.TokenIssuer
	stripeEvents   *stripewebhook.Verifier
	metrics        *observability.Metrics
	logger         *slog.Logger
}

type Dependencies struct {
	Config            *config.Config
	DB                Pinger
	CacheProvider     cache.Provider
	OrderService      *services.OrderService
	AdminService      *services.AdminService
	AccountService    *services.AccountService
	StorefrontService *services.StorefrontService
	SessionManager    *session.Manager
	TokenIssuer       *auth.TokenIssuer
	Metrics           *observability.Metrics
	Logger            *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.OrderService == nil {
		return nil, fmt.Errorf("handlers dependencies: orderService is required")
	}
	if deps.AdminService == nil {
		return nil, fmt.Errorf("handlers dependencies: adminService is required")
	}
	if deps.AccountService == nil {
		return nil, fmt.Errorf("handlers dependencies: accountService is required")
	}
	if deps.StorefrontService == nil {
		return nil, fmt.Errorf("handlers dependencies: storefrontService is required")
	}
	if deps.SessionManager == nil {
		return nil, fmt.Errorf("handlers dependencies: sessionManager is required")
	}
	if deps.TokenIssuer == nil {
		return nil, fmt.Errorf("handlers dependencies: tokenIssuer is required")
	}

	return &Handlers{
		config:         deps.Config,
		db:             deps.DB,
		cacheProvider:  deps.CacheProvider,
		carts:          cart.NewStore(deps.CacheProvider),
		orders:         deps.OrderService,
		admin:          deps.AdminService,
		accounts:       deps.AccountService,
		storefront:     deps.StorefrontService,
		sessionManager: deps.SessionManager,
		tokens:         deps.TokenIssuer,
		stripeEvents:   stripewebhook.NewVerifier(deps.Config.StripeWebhookSecret, 0),
		metrics:        deps.Metrics,
		logger:         logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

// Metrics serves the Prometheus registry.
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler().ServeHTTP(w, r)
}

// SessionMiddleware adds session data to the request context
func (h *Handlers) SessionMiddleware(next http.Handler) http.Handler {
	return h.sessionManager.Middleware(next)
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) isSecure() bool {
	return SecureCookiesFromConfig(h.config)
}

func SecureCookiesFromConfig(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		if parsed, err := url.Parse(baseURL); err == nil {
			return strings.EqualFold(parsed.Scheme, "https")
		}
	}

	return cfg.Port == "443" || cfg.Port == "8443"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return services.UserError{Message: "Invalid request body"}
	}
	return nil
}
