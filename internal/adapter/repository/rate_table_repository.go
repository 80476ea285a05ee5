package repository

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/repository"
)

// rateFile is the on-disk rate table layout:
//
//	base: RUB
//	rates:
//	  RUB: 1
//	  USD: 80.0
type rateFile struct {
	Base  string               `yaml:"base"`
	Rates map[string]yaml.Node `yaml:"rates"`
}

type yamlRateTableRepository struct {
	path string
}

// NewYAMLRateTableRepository creates a rate table repository reading path on
// every load, so an operator can update rates between runs
func NewYAMLRateTableRepository(path string) repository.RateTableRepository {
	return &yamlRateTableRepository{path: path}
}

func (r *yamlRateTableRepository) LoadRateTable(ctx context.Context) (entity.RateTable, error) {
	if err := ctx.Err(); err != nil {
		return entity.RateTable{}, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return entity.RateTable{}, fmt.Errorf("failed to read rate table: %w", err)
	}
	return ParseRateTable(data)
}

// ParseRateTable decodes a YAML rate table. Rates are read from their literal
// text so no precision is lost to floating point.
func ParseRateTable(data []byte) (entity.RateTable, error) {
	var file rateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return entity.RateTable{}, fmt.Errorf("failed to parse rate table: %w", err)
	}

	table := entity.RateTable{
		Base:  entity.NormalizeCurrency(file.Base),
		Rates: make(map[string]decimal.Decimal, len(file.Rates)),
	}
	for currency, node := range file.Rates {
		if node.Kind != yaml.ScalarNode {
			return entity.RateTable{}, fmt.Errorf("rate for %s is not a scalar", currency)
		}
		rate, err := decimal.NewFromString(node.Value)
		if err != nil {
			return entity.RateTable{}, fmt.Errorf("rate for %s: %w", currency, err)
		}
		table.Rates[entity.NormalizeCurrency(currency)] = rate
	}
	return table, nil
}

type staticRateTableRepository struct {
	table entity.RateTable
}

// NewStaticRateTableRepository serves a fixed rate table, e.g. one embedded
// in the service configuration
func NewStaticRateTableRepository(base string, rates map[string]string) (repository.RateTableRepository, error) {
	table := entity.RateTable{
		Base:  entity.NormalizeCurrency(base),
		Rates: make(map[string]decimal.Decimal, len(rates)),
	}
	for currency, value := range rates {
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", currency, err)
		}
		table.Rates[entity.NormalizeCurrency(currency)] = rate
	}
	return &staticRateTableRepository{table: table}, nil
}

func (r *staticRateTableRepository) LoadRateTable(ctx context.Context) (entity.RateTable, error) {
	rates := make(map[string]decimal.Decimal, len(r.table.Rates))
	for currency, rate := range r.table.Rates {
		rates[currency] = rate
	}
	return entity.RateTable{Base: r.table.Base, Rates: rates}, ctx.Err()
}
