package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	BaseURL     string `env:"BASE_URL" validate:"omitempty,url"`
	Port        string `env:"PORT" envDefault:"8080"`

	// TrustedOrigins lists storefront origins served from another host that
	// may send cookie-authenticated writes.
	TrustedOrigins []string `env:"TRUSTED_ORIGINS" envSeparator:"," validate:"dive,url"`

	DatabaseMaxConns     int32         `env:"DATABASE_MAX_CONNS" envDefault:"10" validate:"gte=1,lte=200"`
	DatabaseConnLifetime time.Duration `env:"DATABASE_CONN_LIFETIME" envDefault:"1h"`

	CacheProvider        string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	SessionStoreProvider string `env:"SESSION_STORE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisAddr            string `env:"REDIS_ADDR" envDefault:"localhost:6379" validate:"required_if=CacheProvider redis,required_if=SessionStoreProvider redis"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	RedisDB              int    `env:"REDIS_DB" envDefault:"0" validate:"gte=0"`

	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"168h"`
	SessionMaxAge  time.Duration `env:"SESSION_MAX_AGE" envDefault:"720h" validate:"gtefield=SessionIdleTTL"`

	EncryptionKey string `env:"ENCRYPTION_KEY,required" validate:"required,len=32"`
	JWTSecret     string `env:"JWT_SECRET,required" validate:"required,min=32"`

	PaymentProvider         string `env:"PAYMENT_PROVIDER" envDefault:"midtrans" validate:"oneof=midtrans stripe none"`
	PaymentEnforceSignature bool   `env:"PAYMENT_ENFORCE_SIGNATURE" envDefault:"true"`
	MidtransServerKey       string `env:"MIDTRANS_SERVER_KEY" validate:"required_if=PaymentProvider midtrans"`
	MidtransProduction      bool   `env:"MIDTRANS_PRODUCTION" envDefault:"false"`
	StripeSecretKey         string `env:"STRIPE_SECRET_KEY" validate:"required_if=PaymentProvider stripe"`
	StripeWebhookSecret     string `env:"STRIPE_WEBHOOK_SECRET"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	EmailFrom    string `env:"EMAIL_FROM" validate:"omitempty,email"`
	AdminEmail   string `env:"ADMIN_EMAIL" validate:"omitempty,email"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"verdant.orders"`

	SentryDSN         string  `env:"SENTRY_DSN"`
	SentryEnvironment string  `env:"SENTRY_ENVIRONMENT" envDefault:"development"`
	SentrySampleRate  float64 `env:"SENTRY_TRACES_SAMPLE_RATE" envDefault:"0.2" validate:"gte=0,lte=1"`

	UploadDir string `env:"UPLOAD_DIR" envDefault:"./uploads" validate:"required"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	hasGoogleClientID := strings.TrimSpace(c.GoogleClientID) != ""
	hasGoogleClientSecret := strings.TrimSpace(c.GoogleClientSecret) != ""
	if hasGoogleClientID != hasGoogleClientSecret {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}

	baseURL := strings.TrimSpace(c.BaseURL)
	if hasGoogleClientID && baseURL == "" {
		return fmt.Errorf("BASE_URL is required when Google sign-in is enabled")
	}

	if c.PaymentProvider == "stripe" && strings.TrimSpace(c.StripeWebhookSecret) == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when PAYMENT_PROVIDER is stripe")
	}

	if strings.TrimSpace(c.ResendAPIKey) != "" && strings.TrimSpace(c.EmailFrom) == "" {
		return fmt.Errorf("EMAIL_FROM is required when RESEND_API_KEY is set")
	}

	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Hostname() == "" {
			return fmt.Errorf("BASE_URL must be a valid absolute URL")
		}
		if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
			return fmt.Errorf("BASE_URL must use https outside local development")
		}
	}

	return nil
}

// KafkaEnabled reports whether order events should be published.
func (c *Config) KafkaEnabled() bool {
	return c != nil && len(c.KafkaBrokers) > 0
}

// GoogleLoginEnabled reports whether the Google OAuth routes are active.
func (c *Config) GoogleLoginEnabled() bool {
	return c != nil && strings.TrimSpace(c.GoogleClientID) != ""
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
