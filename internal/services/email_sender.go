package services

import (
	"context"
	"fmt"

	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/email"
	"github.com/verdantshop/verdant/internal/settings"
)

type OrderEmailSender interface {
	SendOrderReceived(ctx context.Context, order *db.Order) error
	SendOrderShipped(ctx context.Context, order *db.Order) error
}

// EmailSettings is the part of settings.Service the email sender reads.
type EmailSettings interface {
	Site(ctx context.Context) (settings.Site, error)
	EmailAPIKey(ctx context.Context) (string, error)
}

type EmailProviderFactory func(storedKey, storedFrom string, fallback email.Config) email.Provider

// SettingsOrderEmailSender resolves the provider on every send so that a key
// changed in the back office takes effect without a restart.
type SettingsOrderEmailSender struct {
	settings    EmailSettings
	fallback    email.Config
	baseURL     string
	newProvider EmailProviderFactory
}

func NewSettingsOrderEmailSender(settings EmailSettings, fallback email.Config, baseURL string, newProvider EmailProviderFactory) *SettingsOrderEmailSender {
	if newProvider == nil {
		newProvider = email.NewProviderFromSettings
	}
	return &SettingsOrderEmailSender{
		settings:    settings,
		fallback:    fallback,
		baseURL:     baseURL,
		newProvider: newProvider,
	}
}

func (s *SettingsOrderEmailSender) SendOrderReceived(ctx context.Context, order *db.Order) error {
	return s.send(ctx, email.TemplateOrderReceived, order)
}

func (s *SettingsOrderEmailSender) SendOrderShipped(ctx context.Context, order *db.Order) error {
	return s.send(ctx, email.TemplateOrderShipped, order)
}

func (s *SettingsOrderEmailSender) send(ctx context.Context, templateName string, order *db.Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	if s == nil || s.settings == nil {
		return fmt.Errorf("email sender is not configured")
	}

	site, err := s.settings.Site(ctx)
	if err != nil {
		return fmt.Errorf("failed to load site settings: %w", err)
	}
	apiKey, err := s.settings.EmailAPIKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to load email api key: %w", err)
	}

	provider := s.newProvider(apiKey, site.EmailFrom, s.fallback)
	return email.Send(ctx, provider, templateName, BuildOrderInfo(site, s.baseURL, order))
}

type noopOrderEmailSender struct{}

func (noopOrderEmailSender) SendOrderReceived(context.Context, *db.Order) error {
	return nil
}

func (noopOrderEmailSender) SendOrderShipped(context.Context, *db.Order) error {
	return nil
}
