package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidationError describes a rejected setting value. Its message is safe to show.
type ValidationError struct {
	Key     Key
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// Site is the typed view of the stored settings.
type Site struct {
	SiteName        string          `json:"site_name"`
	CurrencyRate    decimal.Decimal `json:"currency_rate"`
	LocalCurrency   string          `json:"local_currency"`
	PhytoCostCents  int64           `json:"phyto_cost_cents"`
	ContactEmail    string          `json:"contact_email"`
	ContactPhone    string          `json:"contact_phone"`
	ContactWhatsApp string          `json:"contact_whatsapp"`
	ContactAddress  string          `json:"contact_address"`
	EmailFrom       string          `json:"email_from,omitempty"`
	EmailAPIKeySet  bool            `json:"email_api_key_set"`
}

type Service struct {
	store    Store
	sealer   *Sealer
	validate *validator.Validate
}

func NewService(store Store, sealer *Sealer) *Service {
	return &Service{
		store:    store,
		sealer:   sealer,
		validate: validator.New(),
	}
}

func (s *Service) Site(ctx context.Context) (Site, error) {
	values, err := s.store.All(ctx)
	if err != nil {
		return Site{}, err
	}
	return siteFromValues(values), nil
}

// Public returns the settings the storefront may show to anyone.
func (s *Service) Public(ctx context.Context) (map[string]string, error) {
	values, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	public := make(map[string]string)
	for key, value := range values {
		if Key(key).Public() {
			public[key] = value
		}
	}
	return public, nil
}

// Update validates and writes the given values. Secret values are sealed
// before storage; an empty secret clears it.
func (s *Service) Update(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	prepared := make(map[string]string, len(values))
	for rawKey, rawValue := range values {
		key := Key(strings.TrimSpace(rawKey))
		value := strings.TrimSpace(rawValue)

		if err := s.check(key, value); err != nil {
			return err
		}

		if key.Secret() && value != "" {
			if s.sealer == nil {
				return fmt.Errorf("cannot store %s without an encryption key", key)
			}
			sealed, err := s.sealer.Seal(key, value)
			if err != nil {
				return err
			}
			value = sealed
		}
		if key == KeyLocalCurrency {
			value = strings.ToUpper(value)
		}
		prepared[string(key)] = value
	}

	return s.store.SetMany(ctx, prepared)
}

// EmailAPIKey returns the decrypted transactional email key, or "" when unset.
func (s *Service) EmailAPIKey(ctx context.Context) (string, error) {
	raw, err := s.store.Get(ctx, string(KeyEmailAPIKey))
	if errors.Is(err, ErrNotFound) || (err == nil && raw == "") {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if s.sealer == nil {
		return "", fmt.Errorf("cannot open %s without an encryption key", KeyEmailAPIKey)
	}
	return s.sealer.Open(KeyEmailAPIKey, raw)
}

func (s *Service) check(key Key, value string) error {
	if !key.Known() {
		return &ValidationError{Key: key, Message: "unknown setting"}
	}

	switch key {
	case KeySiteName:
		if value == "" {
			return &ValidationError{Key: key, Message: "must not be empty"}
		}
	case KeyCurrencyRate:
		rate, err := decimal.NewFromString(value)
		if err != nil || !rate.IsPositive() {
			return &ValidationError{Key: key, Message: "must be a positive number"}
		}
	case KeyLocalCurrency:
		if err := s.validate.Var(value, "len=3,alpha"); err != nil {
			return &ValidationError{Key: key, Message: "must be a three-letter currency code"}
		}
	case KeyPhytoCostCents:
		cents, err := strconv.ParseInt(value, 10, 64)
		if err != nil || cents < 0 {
			return &ValidationError{Key: key, Message: "must be a non-negative whole number of cents"}
		}
	case KeyContactEmail, KeyEmailFrom:
		if err := s.validate.Var(value, "omitempty,email"); err != nil {
			return &ValidationError{Key: key, Message: "must be a valid email address"}
		}
	}
	return nil
}

func siteFromValues(values map[string]string) Site {
	site := Site{
		SiteName:        values[string(KeySiteName)],
		LocalCurrency:   strings.ToUpper(values[string(KeyLocalCurrency)]),
		ContactEmail:    values[string(KeyContactEmail)],
		ContactPhone:    values[string(KeyContactPhone)],
		ContactWhatsApp: values[string(KeyContactWhatsApp)],
		ContactAddress:  values[string(KeyContactAddress)],
		EmailFrom:       values[string(KeyEmailFrom)],
		EmailAPIKeySet:  values[string(KeyEmailAPIKey)] != "",
	}
	if site.LocalCurrency == "" {
		site.LocalCurrency = "USD"
	}
	if rate, err := decimal.NewFromString(values[string(KeyCurrencyRate)]); err == nil && rate.IsPositive() {
		site.CurrencyRate = rate
	} else {
		site.CurrencyRate = decimal.NewFromInt(1)
	}
	if cents, err := strconv.ParseInt(values[string(KeyPhytoCostCents)], 10, 64); err == nil && cents >= 0 {
		site.PhytoCostCents = cents
	}
	return site
}
