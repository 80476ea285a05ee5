package entity

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconcileMode selects how an unknown currency is handled
type ReconcileMode string

const (
	// ReconcileModeStrict aborts the run on the first unknown currency
	ReconcileModeStrict ReconcileMode = "strict"
	// ReconcileModeLenient drops the amount from totals and flags the profile
	ReconcileModeLenient ReconcileMode = "lenient"
)

// Valid reports whether m is a known mode
func (m ReconcileMode) Valid() bool {
	return m == ReconcileModeStrict || m == ReconcileModeLenient
}

// Warning kinds
const (
	WarningDuplicateLegacyMembership = "duplicate_legacy_membership"
	WarningUnknownCurrency           = "unknown_currency"
)

// Warning is a non-fatal data-quality finding attached to a snapshot
type Warning struct {
	Kind       string     `json:"kind"`
	CustomerID CustomerID `json:"customer_id"`
	Detail     string     `json:"detail"`
}

// SourceStats counts what happened to one source's records during ingestion
type SourceStats struct {
	Ingested int            `json:"ingested"`
	Rejected int            `json:"rejected"`
	Reasons  map[string]int `json:"reasons,omitempty"`
}

// ReconciliationSnapshot is the terminal output of a run. Consumers must
// treat it as read-only.
type ReconciliationSnapshot struct {
	RunID                  uuid.UUID                  `json:"run_id"`
	AsOf                   time.Time                  `json:"as_of"`
	Mode                   ReconcileMode              `json:"mode"`
	BaseCurrency           string                     `json:"base_currency"`
	Profiles               []UnifiedCustomerProfile   `json:"profiles"`
	Cohorts                Cohorts                    `json:"cohorts"`
	RejectedRecordCounts   map[Source]int             `json:"rejected_record_counts"`
	SourceStats            map[Source]SourceStats     `json:"source_stats"`
	Warnings               []Warning                  `json:"warnings"`
	RevenueByCurrency      map[string]decimal.Decimal `json:"revenue_by_currency"`
	TotalRevenueNormalized decimal.Decimal            `json:"total_revenue_normalized"`
}

// Profile looks up a profile by customer id. Profiles are sorted by id.
func (s *ReconciliationSnapshot) Profile(id CustomerID) (*UnifiedCustomerProfile, bool) {
	i := sort.Search(len(s.Profiles), func(i int) bool { return s.Profiles[i].CustomerID >= id })
	if i < len(s.Profiles) && s.Profiles[i].CustomerID == id {
		return &s.Profiles[i], true
	}
	return nil, false
}

// SnapshotSummary is a snapshot without its profile list
type SnapshotSummary struct {
	RunID                  uuid.UUID                  `json:"run_id"`
	AsOf                   time.Time                  `json:"as_of"`
	Mode                   ReconcileMode              `json:"mode"`
	BaseCurrency           string                     `json:"base_currency"`
	ProfileCount           int                        `json:"profile_count"`
	CohortSizes            map[string]int             `json:"cohort_sizes"`
	RejectedRecordCounts   map[Source]int             `json:"rejected_record_counts"`
	SourceStats            map[Source]SourceStats     `json:"source_stats"`
	WarningCount           int                        `json:"warning_count"`
	RevenueByCurrency      map[string]decimal.Decimal `json:"revenue_by_currency"`
	TotalRevenueNormalized decimal.Decimal            `json:"total_revenue_normalized"`
}

func (s *ReconciliationSnapshot) Summary() SnapshotSummary {
	sizes := make(map[string]int, len(s.Cohorts))
	for name, members := range s.Cohorts {
		sizes[name] = len(members)
	}
	return SnapshotSummary{
		RunID:                  s.RunID,
		AsOf:                   s.AsOf,
		Mode:                   s.Mode,
		BaseCurrency:           s.BaseCurrency,
		ProfileCount:           len(s.Profiles),
		CohortSizes:            sizes,
		RejectedRecordCounts:   s.RejectedRecordCounts,
		SourceStats:            s.SourceStats,
		WarningCount:           len(s.Warnings),
		RevenueByCurrency:      s.RevenueByCurrency,
		TotalRevenueNormalized: s.TotalRevenueNormalized,
	}
}
