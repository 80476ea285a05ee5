package repository

import (
	"context"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
)

// SourceRepository reads the three raw ledgers. Implementations return rows
// untouched; shaping and validation happen in the ingestor.
type SourceRepository interface {
	FetchPayments(ctx context.Context) ([]entity.RawRecord, error)
	FetchSubscriptions(ctx context.Context) ([]entity.RawRecord, error)
	FetchLegacyMemberships(ctx context.Context) ([]entity.RawRecord, error)
}

// RateTableRepository loads the conversion rates for a run
type RateTableRepository interface {
	LoadRateTable(ctx context.Context) (entity.RateTable, error)
}
