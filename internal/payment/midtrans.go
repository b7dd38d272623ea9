package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

const (
	maxMidtransItemName = 50
	midtransCurrency    = "IDR"
)

// ErrUnsupportedCurrency is returned when the shop is not set up to charge
// in the currency the gateway settles in.
var ErrUnsupportedCurrency = errors.New("payment currency not supported by gateway")

// MidtransProvider mints Snap tokens.
type MidtransProvider struct {
	client snap.Client
}

func NewMidtransProvider(serverKey string, production bool) *MidtransProvider {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	p := &MidtransProvider{}
	p.client.New(serverKey, env)
	return p
}

func (p *MidtransProvider) Name() string {
	return ProviderMidtrans
}

func (p *MidtransProvider) CreateToken(ctx context.Context, req TokenRequest) (*Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapReq, err := buildSnapRequest(req)
	if err != nil {
		return nil, err
	}

	resp, midtransErr := p.client.CreateTransaction(snapReq)
	if midtransErr != nil {
		return nil, fmt.Errorf("midtrans snap (status %d): %s", midtransErr.StatusCode, midtransErr.Message)
	}
	if resp == nil || resp.Token == "" {
		return nil, errors.New("midtrans snap returned an empty token")
	}

	return &Token{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// buildSnapRequest prices every line in whole rupiah so that gross amount
// equals the sum of the item lines, which Snap requires.
func buildSnapRequest(req TokenRequest) (*snap.Request, error) {
	order := req.Order
	if order == nil {
		return nil, errors.New("order is required")
	}
	if len(order.Items) == 0 {
		return nil, errors.New("order has no items")
	}

	// Snap only charges rupiah, so USD prices need a configured IDR rate.
	if !strings.EqualFold(strings.TrimSpace(req.LocalCurrency), midtransCurrency) {
		return nil, fmt.Errorf("%w: local currency is %q, want %s", ErrUnsupportedCurrency, req.LocalCurrency, midtransCurrency)
	}
	rate := req.LocalRate
	if !rate.IsPositive() {
		return nil, fmt.Errorf("%w: no positive %s rate configured", ErrUnsupportedCurrency, midtransCurrency)
	}

	items := make([]midtrans.ItemDetails, 0, len(order.Items))
	var gross int64
	for _, item := range order.Items {
		price := decimal.New(item.UnitPriceCents, -2).Mul(rate).Round(0).IntPart()
		if price <= 0 {
			return nil, fmt.Errorf("item %s converts to a non-positive price", item.ProductName)
		}
		itemID := ""
		if item.ProductID.Valid {
			itemID = item.ProductID.UUID.String()
		}
		items = append(items, midtrans.ItemDetails{
			ID:    itemID,
			Name:  truncate(item.ProductName, maxMidtransItemName),
			Price: price,
			Qty:   int32(item.Quantity),
		})
		gross += price * int64(item.Quantity)
	}

	return &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  order.ID.String(),
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: order.CustomerName,
			Email: order.CustomerEmail,
			Phone: order.CustomerPhone,
		},
		Items: &items,
	}, nil
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
