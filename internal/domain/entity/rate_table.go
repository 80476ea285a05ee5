package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RateTable maps currency codes to their conversion factor into Base.
// It is a snapshot valid for a whole reconciliation run.
type RateTable struct {
	Base  string                     `json:"base" yaml:"base"`
	Rates map[string]decimal.Decimal `json:"rates" yaml:"-"`
}

// NormalizeCurrency canonicalizes a currency code
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Rate returns the factor for currency
func (t RateTable) Rate(currency string) (decimal.Decimal, bool) {
	rate, ok := t.Rates[NormalizeCurrency(currency)]
	return rate, ok
}
