package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/verdantshop/verdant/internal/auth"
	"github.com/verdantshop/verdant/internal/cache"
	"github.com/verdantshop/verdant/internal/config"
	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/email"
	"github.com/verdantshop/verdant/internal/events"
	"github.com/verdantshop/verdant/internal/handlers"
	"github.com/verdantshop/verdant/internal/observability"
	"github.com/verdantshop/verdant/internal/payment"
	"github.com/verdantshop/verdant/internal/services"
	"github.com/verdantshop/verdant/internal/session"
	"github.com/verdantshop/verdant/internal/settings"
	"github.com/verdantshop/verdant/internal/stripe"
	"github.com/verdantshop/verdant/internal/uploads"
)

type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *pgxpool.Pool
	CacheProvider  cache.Provider
	SessionManager *session.Manager
	Publisher      events.Publisher
	Handlers       *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	if err := initSentry(cfg); err != nil {
		logger.Warn("failed to initialize sentry; continuing without error reporting", "error", err)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DatabaseMaxConns,
		MaxConnLifetime: cfg.DatabaseConnLifetime,
	})
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:      cfg.CacheProvider,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	sessionStore, err := session.NewStore(startupCtx, session.Config{
		Provider:      cfg.SessionStoreProvider,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		IdleTTL:       cfg.SessionIdleTTL,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	sessionManager := session.NewManager(sessionStore, session.Options{
		Secure:  handlers.SecureCookiesFromConfig(cfg),
		IdleTTL: cfg.SessionIdleTTL,
		MaxAge:  cfg.SessionMaxAge,
	})

	cleanup := func() {
		closeSessionManager(logger, sessionManager)
		closeCacheProvider(logger, cacheProvider)
		database.Close()
	}

	sealer, err := settings.NewSealer(cfg.EncryptionKey)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize settings sealer: %w", err)
	}
	settingsStore, err := settings.NewCachedStore(settingsBackend{db.NewSettingsStore(database)})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize settings cache: %w", err)
	}
	siteSettings := settings.NewService(settingsStore, sealer)

	imageStore, err := uploads.NewLocalStore(cfg.UploadDir)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize upload directory: %w", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, auth.DefaultTokenTTL)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	orderStore := db.NewOrderStore(database)
	productStore := db.NewProductStore(database)
	userStore := db.NewUserStore(database)

	publisher := newPublisher(cfg, logger)
	emailSender := services.NewSettingsOrderEmailSender(
		siteSettings,
		email.Config{APIKey: cfg.ResendAPIKey, From: cfg.EmailFrom},
		cfg.BaseURL,
		email.NewProviderFromSettings,
	)

	orderService := services.NewOrderService(
		orderStore,
		siteSettings,
		newPaymentProvider(cfg),
		publisher,
		emailSender,
		services.OrderServiceConfig{
			BaseURL:           cfg.BaseURL,
			MidtransServerKey: cfg.MidtransServerKey,
			EnforceSignature:  cfg.PaymentEnforceSignature,
		},
		logger.With("component", "order_service"),
	)
	adminService := services.NewAdminService(services.AdminServiceDeps{
		Orders:      orderStore,
		Products:    productStore,
		Users:       userStore,
		Settings:    siteSettings,
		Images:      imageStore,
		Publisher:   publisher,
		EmailSender: emailSender,
		EmailKeys: func(ctx context.Context, apiKey string) error {
			return email.NewResendProvider(apiKey, cfg.EmailFrom).ValidateAPIKey(ctx)
		},
		Logger: logger.With("component", "admin_service"),
	})
	accountService, err := services.NewAccountService(userStore, orderStore, tokens, services.AccountServiceConfig{
		BaseURL:            cfg.BaseURL,
		AdminEmail:         cfg.AdminEmail,
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
	}, logger.With("component", "account_service"))
	if err != nil {
		closePublisher(logger, publisher)
		cleanup()
		return nil, fmt.Errorf("failed to initialize account service: %w", err)
	}
	storefrontService := services.NewStorefrontService(
		productStore,
		db.NewWishlistStore(database),
		db.NewReviewStore(database),
		siteSettings,
		logger.With("component", "storefront_service"),
	)

	promoteAdmin(startupCtx, logger, userStore, cfg.AdminEmail)

	h, err := handlers.New(handlers.Dependencies{
		Config:            cfg,
		DB:                database,
		CacheProvider:     cacheProvider,
		OrderService:      orderService,
		AdminService:      adminService,
		AccountService:    accountService,
		StorefrontService: storefrontService,
		SessionManager:    sessionManager,
		TokenIssuer:       tokens,
		Metrics:           observability.NewMetrics(),
		Logger:            logger,
	})
	if err != nil {
		closePublisher(logger, publisher)
		cleanup()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:         cfg,
		Logger:         logger,
		DB:             database,
		CacheProvider:  cacheProvider,
		SessionManager: sessionManager,
		Publisher:      publisher,
		Handlers:       h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Publisher != nil {
		closePublisher(a.Logger, a.Publisher)
	}
	if a.SessionManager != nil {
		closeSessionManager(a.Logger, a.SessionManager)
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	case "text", "":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel}))
}

func initSentry(cfg *config.Config) error {
	if strings.TrimSpace(cfg.SentryDSN) == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		EnableTracing:    cfg.SentrySampleRate > 0,
		TracesSampleRate: cfg.SentrySampleRate,
	})
}

func newPaymentProvider(cfg *config.Config) payment.Provider {
	switch cfg.PaymentProvider {
	case payment.ProviderMidtrans:
		return payment.NewMidtransProvider(cfg.MidtransServerKey, cfg.MidtransProduction)
	case payment.ProviderStripe:
		return payment.NewStripeProvider(stripe.NewClient(cfg.StripeSecretKey))
	default:
		return payment.NoopProvider{}
	}
}

func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if !cfg.KafkaEnabled() {
		return events.NoopPublisher{}
	}
	logger.Info("publishing order events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

// promoteAdmin grants the admin role to an already registered ADMIN_EMAIL
// account. New accounts with that email are promoted at sign-up.
func promoteAdmin(ctx context.Context, logger *slog.Logger, users *db.UserStore, adminEmail string) {
	adminEmail = strings.TrimSpace(adminEmail)
	if adminEmail == "" {
		return
	}
	err := users.SetRole(ctx, adminEmail, auth.RoleAdmin.String())
	switch {
	case errors.Is(err, db.ErrNotFound):
		logger.Info("admin account not registered yet", "email", adminEmail)
	case err != nil:
		logger.Warn("failed to promote admin account", "error", err, "email", adminEmail)
	}
}

// settingsBackend translates the database miss into the settings package error.
type settingsBackend struct {
	*db.SettingsStore
}

func (b settingsBackend) Get(ctx context.Context, key string) (string, error) {
	value, err := b.SettingsStore.Get(ctx, key)
	if errors.Is(err, db.ErrNotFound) {
		return "", settings.ErrNotFound
	}
	return value, err
}

func closeSessionManager(logger *slog.Logger, manager *session.Manager) {
	if manager == nil {
		return
	}
	if err := manager.Close(); err != nil && logger != nil {
		logger.Warn("failed to close session manager", "error", err)
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}

func closePublisher(logger *slog.Logger, publisher events.Publisher) {
	if err := publisher.Close(); err != nil && logger != nil {
		logger.Warn("failed to close event publisher", "error", err)
	}
}
