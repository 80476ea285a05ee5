package usecase

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/errors"
)

// MergeResult is the output of the merge phase
type MergeResult struct {
	Profiles []entity.UnifiedCustomerProfile
	Warnings []entity.Warning
}

// ProfileMerger folds the three typed record streams into one profile per
// customer id.
type ProfileMerger struct {
	rates  entity.RateTable
	mode   entity.ReconcileMode
	logger *zap.Logger
}

// NewProfileMerger creates a new profile merger. The rate table must already
// be validated.
func NewProfileMerger(rates entity.RateTable, mode entity.ReconcileMode, logger *zap.Logger) (*ProfileMerger, error) {
	if !mode.Valid() {
		return nil, domainErrors.ErrInvalidMode
	}
	return &ProfileMerger{
		rates:  rates,
		mode:   mode,
		logger: logger,
	}, nil
}

// Merge folds all records at once. Feeding the same records through a
// ProfileAccumulator in any chunking yields the identical result.
func (m *ProfileMerger) Merge(
	payments []entity.PaymentRecord,
	subscriptions []entity.SubscriptionRecord,
	legacy []entity.LegacyMembershipRecord,
) (*MergeResult, error) {
	acc := NewProfileAccumulator()
	acc.AddPayments(payments)
	acc.AddSubscriptions(subscriptions)
	acc.AddLegacyMemberships(legacy)
	return m.Finalize(acc)
}

// Finalize normalizes revenue and emits the sorted profile set. In strict
// mode the first unknown currency aborts with *errors.UnknownCurrencyError.
func (m *ProfileMerger) Finalize(acc *ProfileAccumulator) (*MergeResult, error) {
	ids := make([]entity.CustomerID, 0, len(acc.customers))
	for id := range acc.customers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := &MergeResult{
		Profiles: make([]entity.UnifiedCustomerProfile, 0, len(ids)),
	}
	for _, id := range ids {
		profile, warnings, err := m.buildProfile(id, acc.customers[id])
		if err != nil {
			return nil, err
		}
		result.Profiles = append(result.Profiles, profile)
		result.Warnings = append(result.Warnings, warnings...)
	}
	return result, nil
}

func (m *ProfileMerger) buildProfile(id entity.CustomerID, st *customerState) (entity.UnifiedCustomerProfile, []entity.Warning, error) {
	profile := entity.UnifiedCustomerProfile{
		CustomerID:        id,
		RevenueByCurrency: make(map[string]decimal.Decimal, len(st.revenue)),
		TransactionCount:  st.transactions,
		FirstActivityAt:   copyTime(st.firstActivity),
		LastActivityAt:    copyTime(st.lastActivity),
		Display:           st.display(),
	}
	for currency, amount := range st.revenue {
		profile.RevenueByCurrency[currency] = amount
	}

	var warnings []entity.Warning
	total := decimal.Zero
	for _, currency := range profile.Currencies() {
		amount := profile.RevenueByCurrency[currency]
		normalized, err := Normalize(amount, currency, m.rates)
		if err != nil {
			var unknown *domainErrors.UnknownCurrencyError
			if !errors.As(err, &unknown) {
				return profile, nil, err
			}
			unknown.CustomerID = string(id)
			if m.mode == entity.ReconcileModeStrict {
				return profile, nil, unknown
			}
			m.logger.Warn("Excluding amount in unknown currency from totals",
				zap.String("customer_id", string(id)),
				zap.String("currency", currency),
				zap.String("amount", amount.String()))
			profile.Warnings = append(profile.Warnings, entity.WarningUnknownCurrency+":"+currency)
			warnings = append(warnings, entity.Warning{
				Kind:       entity.WarningUnknownCurrency,
				CustomerID: id,
				Detail:     fmt.Sprintf("%s %s excluded from totals", amount.String(), currency),
			})
			continue
		}
		total = total.Add(normalized)
	}
	profile.TotalRevenueNormalized = total

	if st.active != nil {
		active := *st.active
		profile.ActiveSubscription = &active
	}

	if st.legacy != nil {
		legacy := *st.legacy
		profile.LegacyMembership = &legacy
		if st.legacyCount > 1 {
			m.logger.Warn("Duplicate legacy membership, keeping the last ingested",
				zap.String("customer_id", string(id)),
				zap.Int("records", st.legacyCount),
				zap.Int("kept_position", st.legacy.Position))
			warnings = append(warnings, entity.Warning{
				Kind:       entity.WarningDuplicateLegacyMembership,
				CustomerID: id,
				Detail:     fmt.Sprintf("%d legacy records, kept position %d", st.legacyCount, st.legacy.Position),
			})
		}
	}

	return profile, warnings, nil
}

// ProfileAccumulator is the incremental state of a merge. Records may be added
// in any order and in any number of chunks, as long as each chunk was ingested
// with its offset in the full source list.
type ProfileAccumulator struct {
	customers map[entity.CustomerID]*customerState
}

// NewProfileAccumulator creates an empty accumulator
func NewProfileAccumulator() *ProfileAccumulator {
	return &ProfileAccumulator{customers: make(map[entity.CustomerID]*customerState)}
}

func (a *ProfileAccumulator) state(id entity.CustomerID) *customerState {
	st, ok := a.customers[id]
	if !ok {
		st = &customerState{revenue: make(map[string]decimal.Decimal)}
		a.customers[id] = st
	}
	return st
}

// AddPayments folds payment records
func (a *ProfileAccumulator) AddPayments(payments []entity.PaymentRecord) {
	for i := range payments {
		p := &payments[i]
		st := a.state(p.CustomerID)
		st.addRevenue(p.Currency, p.Amount)
		st.addActivity(p.PaidAt)
		st.offerDisplay(entity.SourcePayments, p.Display, p.PaidAt, p.Position)
	}
}

// AddSubscriptions folds subscription records. Each record contributes its
// period amount once, whatever its status.
func (a *ProfileAccumulator) AddSubscriptions(subscriptions []entity.SubscriptionRecord) {
	for i := range subscriptions {
		s := &subscriptions[i]
		st := a.state(s.CustomerID)
		if s.Amount.Valid {
			st.addRevenue(s.Currency, s.Amount.Decimal)
		}
		st.addActivity(s.StartedAt)
		st.offerDisplay(entity.SourceSubscriptions, s.Display, s.StartedAt, s.Position)
		if s.IsActive() && s.Outranks(st.active) {
			st.active = s
		}
	}
}

// AddLegacyMemberships folds legacy registry records. When an id appears more
// than once, the record with the highest source position wins; equal
// positions go to the later arrival.
func (a *ProfileAccumulator) AddLegacyMemberships(legacy []entity.LegacyMembershipRecord) {
	for i := range legacy {
		l := &legacy[i]
		st := a.state(l.CustomerID)
		st.legacyCount++
		if st.legacy == nil || l.Position >= st.legacy.Position {
			st.legacy = l
		}
		st.offerDisplay(entity.SourceLegacyMemberships, l.Display, l.CreatedAt, l.Position)
	}
}

type displayCandidate struct {
	value    string
	at       time.Time
	position int
}

// earlier orders candidates inside one source by (timestamp, position)
func (c *displayCandidate) earlier(at time.Time, position int) bool {
	if !at.Equal(c.at) {
		return at.Before(c.at)
	}
	return position < c.position
}

type customerState struct {
	revenue       map[string]decimal.Decimal
	transactions  int
	firstActivity *time.Time
	lastActivity  *time.Time
	active        *entity.SubscriptionRecord
	legacy        *entity.LegacyMembershipRecord
	legacyCount   int

	// per source, per field: the earliest non-empty value seen
	usernames  [3]*displayCandidate
	firstNames [3]*displayCandidate
}

func (st *customerState) addRevenue(currency string, amount decimal.Decimal) {
	st.revenue[currency] = st.revenue[currency].Add(amount)
}

func (st *customerState) addActivity(at time.Time) {
	st.transactions++
	if st.firstActivity == nil || at.Before(*st.firstActivity) {
		t := at
		st.firstActivity = &t
	}
	if st.lastActivity == nil || at.After(*st.lastActivity) {
		t := at
		st.lastActivity = &t
	}
}

func (st *customerState) offerDisplay(source entity.Source, d entity.DisplayMetadata, at time.Time, position int) {
	slot := sourcePriority(source)
	offerCandidate(&st.usernames[slot], d.Username, at, position)
	offerCandidate(&st.firstNames[slot], d.FirstName, at, position)
}

func offerCandidate(current **displayCandidate, value string, at time.Time, position int) {
	if value == "" {
		return
	}
	if *current == nil || (*current).earlier(at, position) {
		*current = &displayCandidate{value: value, at: at, position: position}
	}
}

// display resolves each field from the highest-priority source that has it
func (st *customerState) display() entity.DisplayMetadata {
	return entity.DisplayMetadata{
		Username:  firstCandidate(st.usernames),
		FirstName: firstCandidate(st.firstNames),
	}
}

func firstCandidate(candidates [3]*displayCandidate) string {
	for _, c := range candidates {
		if c != nil {
			return c.value
		}
	}
	return ""
}

func sourcePriority(source entity.Source) int {
	for i, s := range entity.Sources {
		if s == source {
			return i
		}
	}
	return len(entity.Sources) - 1
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
