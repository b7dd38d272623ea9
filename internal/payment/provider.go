// Package payment mints payment tokens and maps gateway notifications onto
// order and payment statuses.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/verdantshop/verdant/internal/models"
)

const (
	ProviderMidtrans = "midtrans"
	ProviderStripe   = "stripe"
	ProviderNone     = "none"
)

var ErrPaymentsDisabled = errors.New("online payments are disabled")

// TokenRequest describes a committed order that needs a payment token.
type TokenRequest struct {
	Order *models.Order
	// LocalRate converts USD into LocalCurrency. Zero means USD only.
	LocalRate     decimal.Decimal
	LocalCurrency string
	SuccessURL    string
	CancelURL     string
}

// Token is what the storefront hands to the payment widget.
type Token struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

type Provider interface {
	Name() string
	CreateToken(ctx context.Context, req TokenRequest) (*Token, error)
}

// NoopProvider is used when online payment is switched off; orders proceed
// without a token.
type NoopProvider struct{}

func (NoopProvider) Name() string {
	return ProviderNone
}

func (NoopProvider) CreateToken(context.Context, TokenRequest) (*Token, error) {
	return nil, ErrPaymentsDisabled
}
