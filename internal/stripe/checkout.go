// Package stripe wraps the Stripe checkout and webhook APIs used for card payments.
package stripe

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v84"
)

// Client creates hosted checkout sessions for storefront orders.
type Client struct {
	client *stripeapi.Client
}

func NewClient(secretKey string) *Client {
	return &Client{client: stripeapi.NewClient(secretKey)}
}

type LineItem struct {
	Name           string
	UnitPriceCents int64
	Quantity       int64
}

type CheckoutSessionParams struct {
	OrderID       uuid.UUID
	CustomerEmail string
	Items         []LineItem
	SuccessURL    string
	CancelURL     string
}

// CreateCheckoutSession creates a USD checkout session tagged with the order id.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*stripeapi.CheckoutSession, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if len(params.Items) == 0 {
		return nil, fmt.Errorf("checkout session needs at least one line item")
	}

	lineItems := make([]*stripeapi.CheckoutSessionCreateLineItemParams, 0, len(params.Items))
	for _, item := range params.Items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		lineItems = append(lineItems, &stripeapi.CheckoutSessionCreateLineItemParams{
			PriceData: &stripeapi.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripeapi.String("usd"),
				ProductData: &stripeapi.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripeapi.String(item.Name),
				},
				UnitAmount: stripeapi.Int64(item.UnitPriceCents),
			},
			Quantity: stripeapi.Int64(quantity),
		})
	}

	orderID := params.OrderID.String()
	sessionParams := &stripeapi.CheckoutSessionCreateParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL:        stripeapi.String(params.SuccessURL),
		CancelURL:         stripeapi.String(params.CancelURL),
		ClientReferenceID: stripeapi.String(orderID),
		LineItems:         lineItems,
		Metadata:          map[string]string{"order_id": orderID},
		PaymentIntentData: &stripeapi.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: map[string]string{"order_id": orderID},
		},
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripeapi.String(params.CustomerEmail)
	}

	sess, err := c.client.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess, nil
}
