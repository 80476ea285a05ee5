package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
)

// Run phases, used to wrap errors
const (
	PhaseMerge    = "merge"
	PhaseClassify = "classify"
)

// RunInput is everything one reconciliation run reads
type RunInput struct {
	Payments          []entity.RawRecord
	Subscriptions     []entity.RawRecord
	LegacyMemberships []entity.RawRecord
	Rates             entity.RateTable
}

// EngineOptions configures a ReconciliationEngine
type EngineOptions struct {
	Mode       entity.ReconcileMode
	Workers    int
	Predicates map[string]Predicate

	// Clock supplies the run's as-of instant. Defaults to time.Now.
	Clock func() time.Time
	// IDGenerator supplies the run id. Defaults to uuid.New.
	IDGenerator func() uuid.UUID
}

// ReconciliationEngine runs Ingest, Merge and Classify over one input and
// produces an immutable snapshot.
type ReconciliationEngine struct {
	opts       EngineOptions
	ingestor   *RecordIngestor
	classifier *CohortClassifier
	logger     *zap.Logger
}

// NewReconciliationEngine creates a new reconciliation engine
func NewReconciliationEngine(opts EngineOptions, logger *zap.Logger) *ReconciliationEngine {
	if opts.Predicates == nil {
		opts.Predicates = DefaultPredicates(PredicateOptions{})
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = uuid.New
	}

	return &ReconciliationEngine{
		opts:       opts,
		ingestor:   NewRecordIngestor(logger),
		classifier: NewCohortClassifier(opts.Workers, logger),
		logger:     logger,
	}
}

// Run executes one reconciliation. Per-record problems are counted in the
// snapshot; only a bad rate table, an invalid mode or a strict-mode unknown
// currency fail the run.
func (e *ReconciliationEngine) Run(in RunInput) (*entity.ReconciliationSnapshot, error) {
	if err := ValidateRateTable(in.Rates); err != nil {
		return nil, fmt.Errorf("invalid rate table: %w", err)
	}
	merger, err := NewProfileMerger(in.Rates, e.opts.Mode, e.logger)
	if err != nil {
		return nil, err
	}

	runID := e.opts.IDGenerator()
	asOf := e.opts.Clock().UTC()
	log := e.logger.With(zap.String("run_id", runID.String()))
	log.Info("Starting reconciliation run",
		zap.String("mode", string(e.opts.Mode)),
		zap.Time("as_of", asOf),
		zap.Int("payments", len(in.Payments)),
		zap.Int("subscriptions", len(in.Subscriptions)),
		zap.Int("legacy_memberships", len(in.LegacyMemberships)))

	// Ingest
	var (
		payments      IngestResult[entity.PaymentRecord]
		subscriptions IngestResult[entity.SubscriptionRecord]
		legacy        IngestResult[entity.LegacyMembershipRecord]
	)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		payments = e.ingestor.IngestPayments(in.Payments)
	}()
	go func() {
		defer wg.Done()
		subscriptions = e.ingestor.IngestSubscriptions(in.Subscriptions)
	}()
	go func() {
		defer wg.Done()
		legacy = e.ingestor.IngestLegacyMemberships(in.LegacyMemberships)
	}()
	wg.Wait()

	// Merge
	merged, err := merger.Merge(payments.Records, subscriptions.Records, legacy.Records)
	if err != nil {
		log.Error("Reconciliation run aborted", zap.String("phase", PhaseMerge), zap.Error(err))
		return nil, fmt.Errorf("%s phase failed: %w", PhaseMerge, err)
	}

	// Classify
	cohorts, err := e.classifier.Classify(merged.Profiles, e.opts.Predicates, asOf)
	if err != nil {
		log.Error("Reconciliation run aborted", zap.String("phase", PhaseClassify), zap.Error(err))
		return nil, fmt.Errorf("%s phase failed: %w", PhaseClassify, err)
	}

	snapshot := &entity.ReconciliationSnapshot{
		RunID:        runID,
		AsOf:         asOf,
		Mode:         e.opts.Mode,
		BaseCurrency: entity.NormalizeCurrency(in.Rates.Base),
		Profiles:     merged.Profiles,
		Cohorts:      cohorts,
		RejectedRecordCounts: map[entity.Source]int{
			entity.SourcePayments:          len(payments.Rejected),
			entity.SourceSubscriptions:     len(subscriptions.Rejected),
			entity.SourceLegacyMemberships: len(legacy.Rejected),
		},
		SourceStats: map[entity.Source]entity.SourceStats{
			entity.SourcePayments:          payments.Stats(),
			entity.SourceSubscriptions:     subscriptions.Stats(),
			entity.SourceLegacyMemberships: legacy.Stats(),
		},
		Warnings:               merged.Warnings,
		RevenueByCurrency:      make(map[string]decimal.Decimal),
		TotalRevenueNormalized: decimal.Zero,
	}
	if snapshot.Warnings == nil {
		snapshot.Warnings = []entity.Warning{}
	}
	for i := range snapshot.Profiles {
		p := &snapshot.Profiles[i]
		for currency, amount := range p.RevenueByCurrency {
			snapshot.RevenueByCurrency[currency] = snapshot.RevenueByCurrency[currency].Add(amount)
		}
		snapshot.TotalRevenueNormalized = snapshot.TotalRevenueNormalized.Add(p.TotalRevenueNormalized)
	}

	log.Info("Reconciliation run completed",
		zap.Int("profiles", len(snapshot.Profiles)),
		zap.Int("cohorts", len(snapshot.Cohorts)),
		zap.Int("warnings", len(snapshot.Warnings)),
		zap.String("total_revenue_normalized", snapshot.TotalRevenueNormalized.String()))

	return snapshot, nil
}
