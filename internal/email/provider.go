// Package email sends transactional order emails.
package email

import (
	"context"
	"strings"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
	ValidateAPIKey(ctx context.Context) error
}

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string

	// OrderID threads every message about one order together in the inbox.
	OrderID string
	Tags    map[string]string
}

type Config struct {
	APIKey string
	From   string
}

// Enabled reports whether both an API key and a sender address are present.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.From) != ""
}

// NewProvider returns a Resend provider, or a no-op provider when email is not configured.
func NewProvider(config Config) Provider {
	if !config.Enabled() {
		return NoopProvider{}
	}
	return NewResendProvider(strings.TrimSpace(config.APIKey), strings.TrimSpace(config.From))
}

// NewProviderFromSettings prefers the key and sender stored in site settings and
// falls back to the process configuration for whichever is missing.
func NewProviderFromSettings(storedKey, storedFrom string, fallback Config) Provider {
	cfg := fallback
	if strings.TrimSpace(storedKey) != "" {
		cfg.APIKey = storedKey
	}
	if strings.TrimSpace(storedFrom) != "" {
		cfg.From = storedFrom
	}
	return NewProvider(cfg)
}

// NoopProvider drops every email.
type NoopProvider struct{}

func (NoopProvider) SendEmail(context.Context, *Email) error { return nil }

func (NoopProvider) ValidateAPIKey(context.Context) error { return nil }
