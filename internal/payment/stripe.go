package payment

import (
	"context"
	"errors"

	"github.com/verdantshop/verdant/internal/stripe"
)

// StripeProvider uses a hosted checkout session id as the token.
type StripeProvider struct {
	client *stripe.Client
}

func NewStripeProvider(client *stripe.Client) *StripeProvider {
	return &StripeProvider{client: client}
}

func (p *StripeProvider) Name() string {
	return ProviderStripe
}

func (p *StripeProvider) CreateToken(ctx context.Context, req TokenRequest) (*Token, error) {
	order := req.Order
	if order == nil {
		return nil, errors.New("order is required")
	}

	items := make([]stripe.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, stripe.LineItem{
			Name:           item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       int64(item.Quantity),
		})
	}

	sess, err := p.client.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		OrderID:       order.ID,
		CustomerEmail: order.CustomerEmail,
		Items:         items,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	return &Token{Token: sess.ID, RedirectURL: sess.URL}, nil
}
