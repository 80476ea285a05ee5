package usecase

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/errors"
)

type typedInput struct {
	payments      []entity.PaymentRecord
	subscriptions []entity.SubscriptionRecord
	legacy        []entity.LegacyMembershipRecord
}

func ingestTyped(t *testing.T, in RunInput) typedInput {
	t.Helper()
	ingestor := NewRecordIngestor(zap.NewNop())
	p := ingestor.IngestPayments(in.Payments)
	s := ingestor.IngestSubscriptions(in.Subscriptions)
	l := ingestor.IngestLegacyMemberships(in.LegacyMemberships)
	require.Empty(t, p.Rejected)
	require.Empty(t, s.Rejected)
	require.Empty(t, l.Rejected)
	return typedInput{payments: p.Records, subscriptions: s.Records, legacy: l.Records}
}

func newTestMerger(t *testing.T, mode entity.ReconcileMode) *ProfileMerger {
	t.Helper()
	merger, err := NewProfileMerger(testRates(), mode, zap.NewNop())
	require.NoError(t, err)
	return merger
}

func profileByID(t *testing.T, profiles []entity.UnifiedCustomerProfile, id string) entity.UnifiedCustomerProfile {
	t.Helper()
	for _, p := range profiles {
		if p.CustomerID == entity.CustomerID(id) {
			return p
		}
	}
	t.Fatalf("profile %s not found", id)
	return entity.UnifiedCustomerProfile{}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestProfileMerger_Scenarios(t *testing.T) {
	typed := ingestTyped(t, scenarioInput())
	result, err := newTestMerger(t, entity.ReconcileModeStrict).Merge(typed.payments, typed.subscriptions, typed.legacy)
	require.NoError(t, err)
	require.Len(t, result.Profiles, 4)

	t.Run("single payment in base currency", func(t *testing.T) {
		a := profileByID(t, result.Profiles, "A")
		assert.Len(t, a.RevenueByCurrency, 1)
		assert.True(t, dec("1000").Equal(a.RevenueByCurrency["RUB"]))
		assert.True(t, dec("1000").Equal(a.TotalRevenueNormalized))
		assert.Equal(t, 1, a.TransactionCount)
		assert.Nil(t, a.ActiveSubscription)
	})

	t.Run("payments in two currencies", func(t *testing.T) {
		b := profileByID(t, result.Profiles, "B")
		assert.True(t, dec("10").Equal(b.RevenueByCurrency["USD"]))
		assert.True(t, dec("500").Equal(b.RevenueByCurrency["RUB"]))
		assert.True(t, dec("1300").Equal(b.TotalRevenueNormalized))
		assert.Equal(t, 2, b.TransactionCount)
		require.NotNil(t, b.FirstActivityAt)
		require.NotNil(t, b.LastActivityAt)
		assert.Equal(t, ts("2024-02-01T10:00:00Z"), *b.FirstActivityAt)
		assert.Equal(t, ts("2024-03-01T10:00:00Z"), *b.LastActivityAt)
	})

	t.Run("active subscription beats cancelled history", func(t *testing.T) {
		c := profileByID(t, result.Profiles, "C")
		require.NotNil(t, c.ActiveSubscription)
		assert.Equal(t, ts("2024-01-01T00:00:00Z"), c.ActiveSubscription.StartedAt)
		assert.Equal(t, entity.SubscriptionStatusActive, c.ActiveSubscription.Status)
		assert.Equal(t, 2, c.TransactionCount)
		assert.True(t, c.TotalRevenueNormalized.IsZero())
		assert.Equal(t, ts("2023-01-01T00:00:00Z"), *c.FirstActivityAt)
	})

	t.Run("legacy only customer", func(t *testing.T) {
		d := profileByID(t, result.Profiles, "D")
		assert.True(t, d.TotalRevenueNormalized.IsZero())
		assert.Empty(t, d.RevenueByCurrency)
		assert.Equal(t, 0, d.TransactionCount)
		assert.Nil(t, d.FirstActivityAt)
		assert.Nil(t, d.ActiveSubscription)
		require.NotNil(t, d.LegacyMembership)
		assert.Equal(t, "FREE", d.LegacyMembership.Plan)
	})

	t.Run("profiles sorted by id", func(t *testing.T) {
		ids := make([]entity.CustomerID, 0, len(result.Profiles))
		for _, p := range result.Profiles {
			ids = append(ids, p.CustomerID)
		}
		assert.Equal(t, []entity.CustomerID{"A", "B", "C", "D"}, ids)
	})
}

func TestProfileMerger_UnknownCurrency(t *testing.T) {
	in := RunInput{
		Payments: []entity.RawRecord{
			payment("E", "100", "RUB", "2024-01-10T10:00:00Z"),
			payment("E", "7", "XYZ", "2024-01-11T10:00:00Z"),
		},
	}
	typed := ingestTyped(t, in)

	t.Run("strict mode aborts", func(t *testing.T) {
		_, err := newTestMerger(t, entity.ReconcileModeStrict).Merge(typed.payments, nil, nil)
		require.Error(t, err)

		var unknown *domainErrors.UnknownCurrencyError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "XYZ", unknown.Currency)
		assert.Equal(t, "E", unknown.CustomerID)
	})

	t.Run("lenient mode excludes and flags", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		merger, err := NewProfileMerger(testRates(), entity.ReconcileModeLenient, zap.New(core))
		require.NoError(t, err)

		result, err := merger.Merge(typed.payments, nil, nil)
		require.NoError(t, err)
		require.Len(t, result.Profiles, 1)

		e := result.Profiles[0]
		assert.True(t, dec("100").Equal(e.TotalRevenueNormalized))
		assert.True(t, dec("7").Equal(e.RevenueByCurrency["XYZ"]), "raw amount is kept")
		assert.Equal(t, 2, e.TransactionCount)
		assert.True(t, e.Flagged())
		assert.Equal(t, []string{"unknown_currency:XYZ"}, e.Warnings)

		require.Len(t, result.Warnings, 1)
		assert.Equal(t, entity.WarningUnknownCurrency, result.Warnings[0].Kind)
		assert.Equal(t, entity.CustomerID("E"), result.Warnings[0].CustomerID)
		assert.Equal(t, 1, logs.FilterMessage("Excluding amount in unknown currency from totals").Len())
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := NewProfileMerger(testRates(), entity.ReconcileMode("loose"), zap.NewNop())
		assert.ErrorIs(t, err, domainErrors.ErrInvalidMode)
	})
}

func TestProfileMerger_ActiveSubscriptionTieBreak(t *testing.T) {
	first := subscription("F", "active", "", "", "2024-01-01T00:00:00Z", "2024-02-01T00:00:00Z")
	first["plan"] = "basic"
	second := subscription("F", "active", "", "", "2024-01-01T00:00:00Z", "2024-03-01T00:00:00Z")
	second["plan"] = "vip"
	older := subscription("F", "active", "", "", "2023-06-01T00:00:00Z", "2024-06-01T00:00:00Z")
	older["plan"] = "elite"

	merge := func(raws ...entity.RawRecord) *entity.SubscriptionRecord {
		typed := ingestTyped(t, RunInput{Subscriptions: raws})
		result, err := newTestMerger(t, entity.ReconcileModeStrict).Merge(nil, typed.subscriptions, nil)
		require.NoError(t, err)
		require.Len(t, result.Profiles, 1)
		require.NotNil(t, result.Profiles[0].ActiveSubscription)
		return result.Profiles[0].ActiveSubscription
	}

	t.Run("latest start wins regardless of order", func(t *testing.T) {
		assert.Equal(t, "basic", merge(older, first).Plan)
		assert.Equal(t, "basic", merge(first, older).Plan)
	})

	t.Run("equal start falls back to first encountered", func(t *testing.T) {
		assert.Equal(t, "basic", merge(first, second, older).Plan)
		assert.Equal(t, "vip", merge(second, first, older).Plan)
		assert.Equal(t, "vip", merge(older, second, first).Plan)
	})

	t.Run("no active record", func(t *testing.T) {
		cancelled := subscription("F", "cancelled", "", "", "2024-01-01T00:00:00Z", "2024-02-01T00:00:00Z")
		typed := ingestTyped(t, RunInput{Subscriptions: []entity.RawRecord{cancelled}})
		result, err := newTestMerger(t, entity.ReconcileModeStrict).Merge(nil, typed.subscriptions, nil)
		require.NoError(t, err)
		assert.Nil(t, result.Profiles[0].ActiveSubscription)
	})
}

func TestProfileMerger_DuplicateLegacyMembership(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	merger, err := NewProfileMerger(testRates(), entity.ReconcileModeStrict, zap.New(core))
	require.NoError(t, err)

	typed := ingestTyped(t, RunInput{LegacyMemberships: []entity.RawRecord{
		legacyMembership("G", "BASIC", "2022-01-01T00:00:00Z", ""),
		legacyMembership("H", "PRO", "2022-01-01T00:00:00Z", ""),
		legacyMembership("G", "VIP", "2021-01-01T00:00:00Z", ""),
	}})

	// Reversing the typed slice keeps source positions, so the winner must not change.
	reversed := []entity.LegacyMembershipRecord{typed.legacy[2], typed.legacy[1], typed.legacy[0]}

	for _, legacy := range [][]entity.LegacyMembershipRecord{typed.legacy, reversed} {
		result, err := merger.Merge(nil, nil, legacy)
		require.NoError(t, err)

		g := profileByID(t, result.Profiles, "G")
		require.NotNil(t, g.LegacyMembership)
		assert.Equal(t, "VIP", g.LegacyMembership.Plan, "last ingested wins")

		require.Len(t, result.Warnings, 1)
		assert.Equal(t, entity.WarningDuplicateLegacyMembership, result.Warnings[0].Kind)
		assert.Equal(t, entity.CustomerID("G"), result.Warnings[0].CustomerID)
	}
	assert.Equal(t, 2, logs.FilterMessage("Duplicate legacy membership, keeping the last ingested").Len())
}

func TestProfileMerger_DisplayMetadata(t *testing.T) {
	p := payment("K", "10", "RUB", "2024-02-01T00:00:00Z")
	p["first_name"] = ""

	sub := subscription("K", "active", "", "", "2024-01-01T00:00:00Z", "2024-02-01T00:00:00Z")
	sub["username"] = "from_subscriptions"
	sub["first_name"] = "Kate"

	legacy := legacyMembership("K", "PRO", "2021-01-01T00:00:00Z", "")
	legacy["username"] = "from_legacy"

	latePayment := payment("K", "10", "RUB", "2024-03-01T00:00:00Z")
	latePayment["username"] = "late_payment"
	earlyPayment := payment("K", "10", "RUB", "2024-01-15T00:00:00Z")
	earlyPayment["username"] = "@early_payment"

	t.Run("source priority wins over later sources", func(t *testing.T) {
		typed := ingestTyped(t, RunInput{
			Payments:          []entity.RawRecord{p},
			Subscriptions:     []entity.RawRecord{sub},
			LegacyMemberships: []entity.RawRecord{legacy},
		})
		result, err := newTestMerger(t, entity.ReconcileModeStrict).Merge(typed.payments, typed.subscriptions, typed.legacy)
		require.NoError(t, err)
		assert.Equal(t, "from_subscriptions", result.Profiles[0].Display.Username)
		assert.Equal(t, "Kate", result.Profiles[0].Display.FirstName, "empty payment value never overwrites")
	})

	t.Run("earliest record within a source", func(t *testing.T) {
		typed := ingestTyped(t, RunInput{
			Payments:          []entity.RawRecord{latePayment, earlyPayment},
			LegacyMemberships: []entity.RawRecord{legacy},
		})
		result, err := newTestMerger(t, entity.ReconcileModeStrict).Merge(typed.payments, nil, typed.legacy)
		require.NoError(t, err)
		assert.Equal(t, "early_payment", result.Profiles[0].Display.Username)
	})
}

func TestProfileMerger_OrderIndependence(t *testing.T) {
	in := scenarioInput()
	in.Payments = append(in.Payments,
		payment("B", "2.5", "EUR", "2024-04-01T10:00:00Z"),
		payment("A", "0", "RUB", "2024-05-01T10:00:00Z"),
	)
	in.Subscriptions = append(in.Subscriptions,
		subscription("A", "active", "299", "RUB", "2024-02-01T00:00:00Z", "2024-06-05T00:00:00Z"),
	)
	typed := ingestTyped(t, in)
	merger := newTestMerger(t, entity.ReconcileModeStrict)

	baseline, err := merger.Merge(typed.payments, typed.subscriptions, typed.legacy)
	require.NoError(t, err)
	expected := mustJSON(t, baseline)

	t.Run("permuted records", func(t *testing.T) {
		payments := make([]entity.PaymentRecord, len(typed.payments))
		for i := range typed.payments {
			payments[len(payments)-1-i] = typed.payments[i]
		}
		legacy := append([]entity.LegacyMembershipRecord(nil), typed.legacy...)

		result, err := merger.Merge(payments, typed.subscriptions, legacy)
		require.NoError(t, err)
		assert.Equal(t, expected, mustJSON(t, result))
	})

	t.Run("sources folded in another order and in chunks", func(t *testing.T) {
		acc := NewProfileAccumulator()
		acc.AddLegacyMemberships(typed.legacy)
		acc.AddSubscriptions(typed.subscriptions[:1])
		acc.AddPayments(typed.payments[2:])
		acc.AddSubscriptions(typed.subscriptions[1:])
		acc.AddPayments(typed.payments[:2])

		result, err := merger.Finalize(acc)
		require.NoError(t, err)
		assert.Equal(t, expected, mustJSON(t, result))
	})

	t.Run("repeated merge is byte identical", func(t *testing.T) {
		result, err := merger.Merge(typed.payments, typed.subscriptions, typed.legacy)
		require.NoError(t, err)
		assert.Equal(t, expected, mustJSON(t, result))
	})
}

func TestProfileMerger_Conservation(t *testing.T) {
	in := scenarioInput()
	in.Payments = append(in.Payments, payment("C", "3", "USD", "2024-02-01T10:00:00Z"))
	in.Subscriptions = append(in.Subscriptions,
		subscription("B", "cancelled", "299", "RUB", "2023-03-01T00:00:00Z", "2023-04-01T00:00:00Z"),
		subscription("D", "active", "5", "USD", "2024-05-01T00:00:00Z", "2024-06-01T00:00:00Z"),
	)
	typed := ingestTyped(t, in)

	expected := map[string]decimal.Decimal{}
	for _, p := range typed.payments {
		expected[p.Currency] = expected[p.Currency].Add(p.Amount)
	}
	for _, s := range typed.subscriptions {
		if s.Amount.Valid {
			expected[s.Currency] = expected[s.Currency].Add(s.Amount.Decimal)
		}
	}

	result, err := newTestMerger(t, entity.ReconcileModeStrict).Merge(typed.payments, typed.subscriptions, typed.legacy)
	require.NoError(t, err)

	actual := map[string]decimal.Decimal{}
	for _, p := range result.Profiles {
		for currency, amount := range p.RevenueByCurrency {
			actual[currency] = actual[currency].Add(amount)
		}
	}

	require.Len(t, actual, len(expected))
	for currency, amount := range expected {
		assert.True(t, amount.Equal(actual[currency]), "currency %s: expected %s, got %s", currency, amount, actual[currency])
	}
}

// withTiesAndDuplicates adds records whose outcome depends on source order:
// two active subscriptions for F starting together, two legacy rows for G and
// two same-instant payments for K with different usernames.
func withTiesAndDuplicates(in RunInput) RunInput {
	tieBasic := subscription("F", "active", "", "", "2024-01-01T00:00:00Z", "2024-02-01T00:00:00Z")
	tieBasic["plan"] = "basic"
	tieVIP := subscription("F", "active", "", "", "2024-01-01T00:00:00Z", "2024-03-01T00:00:00Z")
	tieVIP["plan"] = "vip"

	kFirst := payment("K", "10", "RUB", "2024-02-01T00:00:00Z")
	kFirst["username"] = "k_first"
	kSecond := payment("K", "20", "RUB", "2024-02-01T00:00:00Z")
	kSecond["username"] = "k_second"

	in.Payments = append(append([]entity.RawRecord(nil), in.Payments...), kFirst, kSecond)
	in.Subscriptions = append(append([]entity.RawRecord(nil), in.Subscriptions...), tieBasic, tieVIP)
	in.LegacyMemberships = append(append([]entity.RawRecord(nil), in.LegacyMemberships...),
		legacyMembership("G", "FIRST", "2022-01-01T00:00:00Z", ""),
		legacyMembership("G", "SECOND", "2021-01-01T00:00:00Z", ""),
	)
	return in
}

func reversedRecords(raws []entity.RawRecord) []entity.RawRecord {
	out := make([]entity.RawRecord, len(raws))
	for i, raw := range raws {
		out[len(raws)-1-i] = raw
	}
	return out
}

type rawChunk struct {
	offset int
	raws   []entity.RawRecord
}

func chunksOf(raws []entity.RawRecord, size int) []rawChunk {
	var chunks []rawChunk
	for start := 0; start < len(raws); start += size {
		end := start + size
		if end > len(raws) {
			end = len(raws)
		}
		chunks = append(chunks, rawChunk{offset: start, raws: raws[start:end]})
	}
	return chunks
}

func TestProfileMerger_ChunkedIngestion(t *testing.T) {
	in := withTiesAndDuplicates(scenarioInput())
	ingestor := NewRecordIngestor(zap.NewNop())
	merger := newTestMerger(t, entity.ReconcileModeStrict)

	typed := ingestTyped(t, in)
	whole, err := merger.Merge(typed.payments, typed.subscriptions, typed.legacy)
	require.NoError(t, err)
	assert.Equal(t, "basic", profileByID(t, whole.Profiles, "F").ActiveSubscription.Plan)
	assert.Equal(t, "SECOND", profileByID(t, whole.Profiles, "G").LegacyMembership.Plan)
	assert.Equal(t, "k_first", profileByID(t, whole.Profiles, "K").Display.Username)

	fold := func(t *testing.T, withOffsets, reverse bool) *MergeResult {
		t.Helper()
		offset := func(c rawChunk) int {
			if withOffsets {
				return c.offset
			}
			return 0
		}
		ordered := func(chunks []rawChunk) []rawChunk {
			if !reverse {
				return chunks
			}
			out := make([]rawChunk, len(chunks))
			for i, c := range chunks {
				out[len(chunks)-1-i] = c
			}
			return out
		}

		acc := NewProfileAccumulator()
		for _, c := range ordered(chunksOf(in.LegacyMemberships, 1)) {
			acc.AddLegacyMemberships(ingestor.IngestLegacyMembershipsFrom(offset(c), c.raws).Records)
		}
		for _, c := range ordered(chunksOf(in.Payments, 1)) {
			acc.AddPayments(ingestor.IngestPaymentsFrom(offset(c), c.raws).Records)
		}
		for _, c := range ordered(chunksOf(in.Subscriptions, 1)) {
			acc.AddSubscriptions(ingestor.IngestSubscriptionsFrom(offset(c), c.raws).Records)
		}

		result, err := merger.Finalize(acc)
		require.NoError(t, err)
		return result
	}

	t.Run("chunks folded in reverse order match the whole list", func(t *testing.T) {
		assert.Equal(t, mustJSON(t, whole), mustJSON(t, fold(t, true, true)))
	})

	t.Run("chunks without offsets folded in source order keep the same winners", func(t *testing.T) {
		result := fold(t, false, false)
		assert.Equal(t, "basic", profileByID(t, result.Profiles, "F").ActiveSubscription.Plan)
		assert.Equal(t, "SECOND", profileByID(t, result.Profiles, "G").LegacyMembership.Plan)
		assert.Equal(t, "k_first", profileByID(t, result.Profiles, "K").Display.Username)
		assert.Equal(t, mustJSON(t, whole.Profiles), mustJSON(t, result.Profiles))
	})

	t.Run("rejection indexes refer to the full list", func(t *testing.T) {
		bad := entity.RawRecord{"amount": "5", "currency": "RUB", "timestamp": "2024-01-01T00:00:00Z"}
		result := ingestor.IngestPaymentsFrom(40, []entity.RawRecord{payment("A", "1", "RUB", "2024-01-01T00:00:00Z"), bad})
		require.Len(t, result.Rejected, 1)
		assert.Equal(t, 41, result.Rejected[0].Index)
		require.Len(t, result.Records, 1)
		assert.Equal(t, 40, result.Records[0].Position)
	})
}

func TestProfileMerger_ShuffledRawLists(t *testing.T) {
	in := withTiesAndDuplicates(scenarioInput())
	shuffled := in
	shuffled.Payments = reversedRecords(in.Payments)
	shuffled.Subscriptions = reversedRecords(in.Subscriptions)
	shuffled.LegacyMemberships = reversedRecords(in.LegacyMemberships)

	merger := newTestMerger(t, entity.ReconcileModeStrict)
	typed := ingestTyped(t, in)
	baseline, err := merger.Merge(typed.payments, typed.subscriptions, typed.legacy)
	require.NoError(t, err)
	typedShuffled := ingestTyped(t, shuffled)
	result, err := merger.Merge(typedShuffled.payments, typedShuffled.subscriptions, typedShuffled.legacy)
	require.NoError(t, err)
	require.Len(t, result.Profiles, len(baseline.Profiles))

	orderSensitive := map[entity.CustomerID]bool{"F": true, "G": true, "K": true}
	for i, want := range baseline.Profiles {
		got := result.Profiles[i]
		require.Equal(t, want.CustomerID, got.CustomerID)
		if orderSensitive[want.CustomerID] {
			continue
		}
		assert.Equal(t, mustJSON(t, want), mustJSON(t, got), "customer %s", want.CustomerID)
	}

	t.Run("only tie-breaks follow the source order", func(t *testing.T) {
		assert.Equal(t, "basic", profileByID(t, baseline.Profiles, "F").ActiveSubscription.Plan)
		assert.Equal(t, "vip", profileByID(t, result.Profiles, "F").ActiveSubscription.Plan)

		assert.Equal(t, "SECOND", profileByID(t, baseline.Profiles, "G").LegacyMembership.Plan)
		assert.Equal(t, "FIRST", profileByID(t, result.Profiles, "G").LegacyMembership.Plan)

		assert.Equal(t, "k_first", profileByID(t, baseline.Profiles, "K").Display.Username)
		assert.Equal(t, "k_second", profileByID(t, result.Profiles, "K").Display.Username)
	})

	t.Run("everything else about tied customers is unchanged", func(t *testing.T) {
		for id := range orderSensitive {
			want := profileByID(t, baseline.Profiles, string(id))
			got := profileByID(t, result.Profiles, string(id))
			assert.True(t, want.TotalRevenueNormalized.Equal(got.TotalRevenueNormalized), "customer %s", id)
			assert.Equal(t, want.TransactionCount, got.TransactionCount, "customer %s", id)
			assert.Equal(t, want.FirstActivityAt, got.FirstActivityAt, "customer %s", id)
			assert.Equal(t, want.LastActivityAt, got.LastActivityAt, "customer %s", id)
		}
		assert.Len(t, result.Warnings, len(baseline.Warnings))
	})
}
