package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/errors"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/repository"
)

// ReconciliationService loads the ledgers, runs the engine and publishes the
// resulting snapshot. Runs are serialized.
type ReconciliationService struct {
	sources   repository.SourceRepository
	rates     repository.RateTableRepository
	store     repository.SnapshotStore
	archive   repository.SnapshotArchive
	publisher repository.SnapshotPublisher
	engine    *ReconciliationEngine
	logger    *zap.Logger

	runMu sync.Mutex
}

// NewReconciliationService creates a new reconciliation service. archive and
// publisher are optional.
func NewReconciliationService(
	sources repository.SourceRepository,
	rates repository.RateTableRepository,
	store repository.SnapshotStore,
	archive repository.SnapshotArchive,
	publisher repository.SnapshotPublisher,
	engine *ReconciliationEngine,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		sources:   sources,
		rates:     rates,
		store:     store,
		archive:   archive,
		publisher: publisher,
		engine:    engine,
		logger:    logger,
	}
}

// Reconcile performs one full run and stores the snapshot as the latest.
// A concurrent call returns ErrRunInProgress instead of queueing.
func (s *ReconciliationService) Reconcile(ctx context.Context) (*entity.ReconciliationSnapshot, error) {
	if !s.runMu.TryLock() {
		return nil, domainErrors.ErrRunInProgress
	}
	defer s.runMu.Unlock()

	input, err := s.loadInput(ctx)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.engine.Run(input)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if s.archive != nil {
		location, err := s.archive.Archive(ctx, snapshot)
		if err != nil {
			// The snapshot is already live; archiving is best effort.
			s.logger.Error("Failed to archive snapshot",
				zap.String("run_id", snapshot.RunID.String()),
				zap.Error(err))
		} else {
			s.logger.Info("Archived snapshot",
				zap.String("run_id", snapshot.RunID.String()),
				zap.String("location", location))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(ctx, snapshot.Summary()); err != nil {
			s.logger.Error("Failed to publish snapshot event",
				zap.String("run_id", snapshot.RunID.String()),
				zap.Error(err))
		}
	}

	return snapshot, nil
}

func (s *ReconciliationService) loadInput(ctx context.Context) (RunInput, error) {
	var input RunInput
	var err error

	if input.Rates, err = s.rates.LoadRateTable(ctx); err != nil {
		return input, fmt.Errorf("failed to load rate table: %w", err)
	}
	// Fail before touching the ledgers
	if err := ValidateRateTable(input.Rates); err != nil {
		return input, fmt.Errorf("invalid rate table: %w", err)
	}

	if input.Payments, err = s.sources.FetchPayments(ctx); err != nil {
		return input, fmt.Errorf("failed to fetch payments: %w", err)
	}
	if input.Subscriptions, err = s.sources.FetchSubscriptions(ctx); err != nil {
		return input, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	if input.LegacyMemberships, err = s.sources.FetchLegacyMemberships(ctx); err != nil {
		return input, fmt.Errorf("failed to fetch legacy memberships: %w", err)
	}

	return input, nil
}

// LatestSnapshot returns the most recently stored snapshot
func (s *ReconciliationService) LatestSnapshot(ctx context.Context) (*entity.ReconciliationSnapshot, error) {
	return s.store.Latest(ctx)
}

// ListProfiles returns one page of the latest snapshot's profiles
func (s *ReconciliationService) ListProfiles(ctx context.Context, req entity.PaginationParams) (*entity.PaginatedProfilesResponse, error) {
	req.Validate()

	snapshot, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}

	total := len(snapshot.Profiles)
	start, end := req.Window(total)
	return &entity.PaginatedProfilesResponse{
		RunID:      snapshot.RunID.String(),
		Data:       snapshot.Profiles[start:end],
		Pagination: entity.NewPaginationMeta(req.Page, req.Limit, int64(total)),
	}, nil
}

// GetProfile returns one customer's profile from the latest snapshot
func (s *ReconciliationService) GetProfile(ctx context.Context, id entity.CustomerID) (*entity.UnifiedCustomerProfile, error) {
	snapshot, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}

	profile, ok := snapshot.Profile(id)
	if !ok {
		return nil, domainErrors.ErrProfileNotFound
	}
	return profile, nil
}

// GetCohort returns the members of a cohort in the latest snapshot
func (s *ReconciliationService) GetCohort(ctx context.Context, name string) (*entity.CohortMembersResponse, error) {
	snapshot, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}

	members, ok := snapshot.Cohorts[name]
	if !ok {
		return nil, domainErrors.ErrCohortNotFound
	}
	return &entity.CohortMembersResponse{
		RunID:   snapshot.RunID.String(),
		Name:    name,
		Count:   len(members),
		Members: members,
	}, nil
}
