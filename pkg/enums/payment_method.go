package enums

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PaymentMethod describes how the customer settled a sale.
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodCard  PaymentMethod = "card"
	PaymentMethodMixed PaymentMethod = "mixed"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodMixed,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// PaymentMethodFor derives the method from the tendered split. A sale paid
// with nothing (full debt) counts as cash.
func PaymentMethodFor(cash, card decimal.Decimal) PaymentMethod {
	switch {
	case cash.IsPositive() && card.IsPositive():
		return PaymentMethodMixed
	case card.IsPositive():
		return PaymentMethodCard
	default:
		return PaymentMethodCash
	}
}
