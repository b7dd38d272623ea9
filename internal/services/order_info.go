package services

import (
	"strings"

	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/email"
	"github.com/verdantshop/verdant/internal/settings"
)

// BuildOrderInfo builds a consistent OrderInfo payload for email templates.
func BuildOrderInfo(site settings.Site, baseURL string, order *db.Order) *email.OrderInfo {
	info := &email.OrderInfo{
		SiteName: strings.TrimSpace(site.SiteName),
		SiteURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
	if order == nil {
		return info
	}

	info.OrderNumber = shortOrderNumber(order)
	info.CustomerName = strings.TrimSpace(order.CustomerName)
	info.CustomerEmail = strings.TrimSpace(order.CustomerEmail)
	info.ShippingAddress = strings.TrimSpace(order.ShippingAddress)
	info.Country = strings.TrimSpace(order.Country)
	info.OrderDate = order.CreatedAt.Format("January 2, 2006")
	info.Total = formatUSD(order.TotalUSDCents)
	if order.LocalTotal.Valid && order.LocalCurrency != "" {
		info.LocalTotal = order.LocalCurrency + " " + order.LocalTotal.Decimal.StringFixed(2)
	}
	info.Courier = order.Courier
	info.TrackingNumber = order.TrackingNumber
	info.TrackingURL = BuildTrackingURL(order.Courier, order.TrackingNumber)
	info.PhytoCertificate = order.PhytoCertificate
	if info.SiteURL != "" {
		info.TrackURL = info.SiteURL + "/track/" + order.ID.String()
	}

	info.Items = make([]email.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		info.Items = append(info.Items, email.OrderItem{
			Name:       item.ProductName,
			Quantity:   item.Quantity,
			UnitPrice:  formatUSD(item.UnitPriceCents),
			TotalPrice: formatUSD(item.LineTotalCents()),
		})
	}
	return info
}

// shortOrderNumber is the first block of the order id, upper-cased.
func shortOrderNumber(order *db.Order) string {
	id := order.ID.String()
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		id = id[:idx]
	}
	return "#" + strings.ToUpper(id)
}

func formatUSD(cents int64) string {
	return "$" + catalog.FormatCents(cents)
}
