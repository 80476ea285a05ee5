package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/errors"
)

// Normalize converts amount in currency into the base currency of rates.
// It has no side effects; an unknown currency is an error, never a zero.
func Normalize(amount decimal.Decimal, currency string, rates entity.RateTable) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("normalize %s %s: %w", amount.String(), currency, domainErrors.ErrNegativeAmount)
	}

	rate, ok := rates.Rate(currency)
	if !ok {
		return decimal.Zero, domainErrors.NewUnknownCurrencyError(entity.NormalizeCurrency(currency), amount)
	}

	return amount.Mul(rate), nil
}

// ValidateRateTable rejects rate tables that cannot support a run
func ValidateRateTable(rates entity.RateTable) error {
	if len(rates.Rates) == 0 {
		return domainErrors.ErrEmptyRateTable
	}
	if rates.Base == "" {
		return domainErrors.ErrMissingBaseCurrency
	}
	for currency, rate := range rates.Rates {
		if !rate.IsPositive() {
			return fmt.Errorf("%s=%s: %w", currency, rate.String(), domainErrors.ErrInvalidRate)
		}
	}
	return nil
}
