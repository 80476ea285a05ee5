package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
)

// Predicate decides cohort membership for a single profile. It must be pure:
// time-dependent rules read asOf, never the wall clock.
type Predicate func(profile *entity.UnifiedCustomerProfile, asOf time.Time) bool

// PredicateOptions tunes the built-in predicates
type PredicateOptions struct {
	// ExpiringWindow is how far ahead of asOf an expiry counts as "expiring"
	ExpiringWindow time.Duration
	// Plans adds one "plan:<PLAN>" cohort per label
	Plans []string
}

// DefaultExpiringWindow matches the console's "expiring soon" audience
const DefaultExpiringWindow = 7 * 24 * time.Hour

// DefaultPredicates returns the built-in cohort predicates
func DefaultPredicates(opts PredicateOptions) map[string]Predicate {
	window := opts.ExpiringWindow
	if window <= 0 {
		window = DefaultExpiringWindow
	}

	predicates := map[string]Predicate{
		entity.CohortAll: func(*entity.UnifiedCustomerProfile, time.Time) bool {
			return true
		},
		entity.CohortHasAnyRevenue: func(p *entity.UnifiedCustomerProfile, _ time.Time) bool {
			return p.TotalRevenueNormalized.IsPositive()
		},
		entity.CohortActiveSubscriber: func(p *entity.UnifiedCustomerProfile, _ time.Time) bool {
			return p.ActiveSubscription != nil
		},
		entity.CohortLegacyMember: func(p *entity.UnifiedCustomerProfile, _ time.Time) bool {
			return p.LegacyMembership != nil
		},
		entity.CohortLapsed: func(p *entity.UnifiedCustomerProfile, asOf time.Time) bool {
			return p.LegacyMembership != nil &&
				p.LegacyMembership.ExpiredAt(asOf) &&
				p.ActiveSubscription == nil
		},
		entity.CohortExpiring: func(p *entity.UnifiedCustomerProfile, asOf time.Time) bool {
			expiry := p.EffectiveExpiry()
			return expiry != nil && expiry.After(asOf) && !expiry.After(asOf.Add(window))
		},
	}

	for _, plan := range opts.Plans {
		label := strings.ToUpper(strings.TrimSpace(plan))
		if label == "" {
			continue
		}
		predicates[entity.PlanCohortPrefix+label] = func(p *entity.UnifiedCustomerProfile, _ time.Time) bool {
			return p.EffectivePlan() == label
		}
	}

	return predicates
}

// CohortClassifier evaluates named predicates over a profile set
type CohortClassifier struct {
	workers int
	logger  *zap.Logger
}

// NewCohortClassifier creates a classifier evaluating profiles on up to
// workers goroutines. workers <= 1 runs sequentially.
func NewCohortClassifier(workers int, logger *zap.Logger) *CohortClassifier {
	if workers < 1 {
		workers = 1
	}
	return &CohortClassifier{
		workers: workers,
		logger:  logger,
	}
}

// classifyChunk is the number of profiles evaluated per goroutine task
const classifyChunk = 256

// Classify returns every cohort named in predicates with its members sorted by
// customer id. The output does not depend on the worker count.
func (c *CohortClassifier) Classify(
	profiles []entity.UnifiedCustomerProfile,
	predicates map[string]Predicate,
	asOf time.Time,
) (entity.Cohorts, error) {
	names := make([]string, 0, len(predicates))
	for name, predicate := range predicates {
		if predicate == nil {
			return nil, fmt.Errorf("cohort %q has no predicate", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	// matches[i][j] reports whether profile i satisfies predicate names[j]
	matches := make([][]bool, len(profiles))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for start := 0; start < len(profiles); start += classifyChunk {
		end := start + classifyChunk
		if end > len(profiles) {
			end = len(profiles)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				row := make([]bool, len(names))
				for j, name := range names {
					row[j] = predicates[name](&profiles[i], asOf)
				}
				matches[i] = row
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cohorts := make(entity.Cohorts, len(names))
	for j, name := range names {
		members := make([]entity.CustomerID, 0)
		for i := range profiles {
			if matches[i][j] {
				members = append(members, profiles[i].CustomerID)
			}
		}
		sort.Slice(members, func(a, b int) bool { return members[a] < members[b] })
		cohorts[name] = members
	}

	c.logger.Debug("Classified profiles",
		zap.Int("profiles", len(profiles)),
		zap.Int("cohorts", len(names)))

	return cohorts, nil
}
