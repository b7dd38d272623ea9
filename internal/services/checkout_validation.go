package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/verdantshop/verdant/internal/catalog"
)

var hundred = decimal.NewFromInt(100)

func newCheckoutValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateCheckoutAmounts, CreateOrderInput{})
	return v
}

// validateCheckoutAmounts enforces positive whole-cent prices and a total that
// equals the sum of the lines. Prices are compared in cents.
func validateCheckoutAmounts(sl validator.StructLevel) {
	input := sl.Current().Interface().(CreateOrderInput)

	var sum int64
	for i, line := range input.Items {
		if !line.UnitPrice.IsPositive() || !wholeCents(line.UnitPrice) {
			sl.ReportError(line.UnitPrice, fmt.Sprintf("Items[%d].UnitPrice", i), "UnitPrice", "price", "")
			return
		}
		sum += catalog.DollarsToCents(line.UnitPrice) * int64(line.Quantity)
	}

	if !input.Total.IsPositive() || !wholeCents(input.Total) {
		sl.ReportError(input.Total, "Total", "Total", "price", "")
		return
	}
	if len(input.Items) > 0 && catalog.DollarsToCents(input.Total) != sum {
		sl.ReportError(input.Total, "Total", "Total", "total_matches_items", "")
	}
}

func wholeCents(amount decimal.Decimal) bool {
	cents := amount.Mul(hundred)
	return cents.Equal(cents.Truncate(0))
}

// checkoutValidationError turns validator output into a UserError that names
// the first problem in plain words.
func checkoutValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return UserError{Message: "Invalid order"}
	}

	fe := validationErrs[0]
	field := fe.Field()
	switch {
	case fe.Tag() == "total_matches_items":
		return UserError{Message: "Order total does not match the cart"}
	case fe.Tag() == "price" && field == "Total":
		return UserError{Message: "Order total must be greater than zero"}
	case fe.Tag() == "price":
		return UserError{Message: "Every item needs a price greater than zero"}
	case field == "Items":
		return UserError{Message: "Your cart is empty"}
	case field == "Quantity":
		return UserError{Message: "Every item needs a quantity of at least 1"}
	case field == "Email":
		return UserError{Message: "A valid email address is required"}
	case fe.Tag() == "required":
		return UserError{Message: fmt.Sprintf("%s is required", strings.ToLower(field))}
	default:
		return UserError{Message: fmt.Sprintf("%s is invalid", strings.ToLower(field))}
	}
}
