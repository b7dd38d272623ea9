// Package export writes back-office reports as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/models"
)

const dateLayout = "2006-01-02 15:04"

var (
	OrderColumns = []string{
		"Order ID", "Date", "Customer", "Email", "Phone", "Country",
		"Total USD", "Local Total", "Status", "Payment Status",
		"Courier", "Tracking Number", "Phyto Certificate", "Items",
	}
	CustomerColumns = []string{"User ID", "Name", "Email", "Role", "Orders", "Joined"}
)

// WriteOrders writes a header line followed by one line per order.
// Items are summarised as "name xN" joined with "; ".
func WriteOrders(w io.Writer, orders []models.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OrderColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := range orders {
		order := &orders[i]
		record := []string{
			order.ID.String(),
			order.CreatedAt.UTC().Format(dateLayout),
			order.CustomerName,
			order.CustomerEmail,
			order.CustomerPhone,
			order.Country,
			catalog.FormatCents(order.TotalUSDCents),
			localTotal(order),
			string(order.Status),
			string(order.PaymentStatus),
			order.Courier,
			order.TrackingNumber,
			order.PhytoCertificate,
			itemSummary(order.Items),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write order %s: %w", order.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func WriteCustomers(w io.Writer, customers []models.Customer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CustomerColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, customer := range customers {
		record := []string{
			customer.ID.String(),
			customer.Name,
			customer.Email,
			customer.Role,
			strconv.Itoa(customer.OrderCount),
			customer.CreatedAt.UTC().Format(dateLayout),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write customer %s: %w", customer.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Filename returns a dated attachment name such as "orders-2024-05-01.csv".
func Filename(report string, now time.Time) string {
	return fmt.Sprintf("%s-%s.csv", report, now.UTC().Format("2006-01-02"))
}

func localTotal(order *models.Order) string {
	if !order.LocalTotal.Valid {
		return ""
	}
	amount := order.LocalTotal.Decimal.StringFixed(2)
	if order.LocalCurrency == "" {
		return amount
	}
	return order.LocalCurrency + " " + amount
}

func itemSummary(items []models.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", item.ProductName, item.Quantity))
	}
	return strings.Join(parts, "; ")
}
