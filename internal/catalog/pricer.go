package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParsePriceCents parses a USD amount such as "49.99" into cents.
// Amounts with more than two decimal places are rejected.
func ParsePriceCents(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("price is required")
	}

	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", value)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("price must not be negative")
	}

	cents := amount.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("price %q has more than two decimal places", value)
	}
	return cents.IntPart(), nil
}

// FormatCents renders cents as a plain USD amount, e.g. 4999 -> "49.99".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// LocalTotal converts a USD amount into the configured local currency.
// A non-positive rate, or a USD local currency, yields an invalid (null) amount.
func LocalTotal(usdCents int64, rate decimal.Decimal, currency string) decimal.NullDecimal {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == "USD" || !rate.IsPositive() {
		return decimal.NullDecimal{}
	}

	local := decimal.New(usdCents, -2).Mul(rate).Round(2)
	return decimal.NewNullDecimal(local)
}
