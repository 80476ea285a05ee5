package usecase

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
)

var (
	testAsOf  = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	testRunID = uuid.MustParse("7b0e4c7e-3f1a-4d6e-9a51-2c8f0b6d1e42")
)

func testRates() entity.RateTable {
	return entity.RateTable{
		Base: "RUB",
		Rates: map[string]decimal.Decimal{
			"RUB": decimal.NewFromInt(1),
			"USD": decimal.NewFromInt(80),
			"EUR": decimal.RequireFromString("95.5"),
		},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func tsPtr(s string) *time.Time {
	t := ts(s)
	return &t
}

func payment(id string, amount, currency, at string) entity.RawRecord {
	return entity.RawRecord{
		"customer_id": id,
		"amount":      amount,
		"currency":    currency,
		"timestamp":   at,
		"source":      "telegram",
		"method":      "card",
	}
}

func subscription(id, status, amount, currency, startedAt, expiresAt string) entity.RawRecord {
	raw := entity.RawRecord{
		"customer_id": id,
		"plan":        "pro",
		"status":      status,
		"started_at":  startedAt,
		"expires_at":  expiresAt,
	}
	if amount != "" {
		raw["amount"] = amount
		raw["currency"] = currency
	}
	return raw
}

func legacyMembership(id, plan, createdAt, expiresAt string) entity.RawRecord {
	raw := entity.RawRecord{
		"customer_id": id,
		"plan":        plan,
		"created_at":  createdAt,
	}
	if expiresAt != "" {
		raw["expires_at"] = expiresAt
	}
	return raw
}

// scenarioInput covers the worked examples: A pays in RUB, B pays in USD and
// RUB, C has a cancelled and an active subscription, D is legacy only.
func scenarioInput() RunInput {
	return RunInput{
		Payments: []entity.RawRecord{
			payment("A", "1000", "RUB", "2024-01-10T10:00:00Z"),
			payment("B", "10", "USD", "2024-02-01T10:00:00Z"),
			payment("B", "500", "RUB", "2024-03-01T10:00:00Z"),
		},
		Subscriptions: []entity.RawRecord{
			subscription("C", "cancelled", "", "", "2023-01-01T00:00:00Z", "2023-02-01T00:00:00Z"),
			subscription("C", "active", "", "", "2024-01-01T00:00:00Z", "2024-07-01T00:00:00Z"),
		},
		LegacyMemberships: []entity.RawRecord{
			legacyMembership("D", "FREE", "2022-05-01T00:00:00Z", "2023-05-01T00:00:00Z"),
		},
		Rates: testRates(),
	}
}

func fixedEngineOptions(mode entity.ReconcileMode) EngineOptions {
	return EngineOptions{
		Mode:        mode,
		Workers:     4,
		Clock:       func() time.Time { return testAsOf },
		IDGenerator: func() uuid.UUID { return testRunID },
	}
}
