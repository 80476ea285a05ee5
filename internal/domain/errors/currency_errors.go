package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UnknownCurrencyError is returned when an amount's currency has no rate
type UnknownCurrencyError struct {
	Currency   string
	Amount     decimal.Decimal
	CustomerID string
}

func (e *UnknownCurrencyError) Error() string {
	if e.CustomerID != "" {
		return fmt.Sprintf("unknown currency %q for amount %s (customer %s)", e.Currency, e.Amount.String(), e.CustomerID)
	}
	return fmt.Sprintf("unknown currency %q for amount %s", e.Currency, e.Amount.String())
}

// NewUnknownCurrencyError creates a new UnknownCurrencyError
func NewUnknownCurrencyError(currency string, amount decimal.Decimal) *UnknownCurrencyError {
	return &UnknownCurrencyError{
		Currency: currency,
		Amount:   amount,
	}
}
