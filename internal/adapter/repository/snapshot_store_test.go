package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/errors"
)

func testSnapshot() *entity.ReconciliationSnapshot {
	expires := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	return &entity.ReconciliationSnapshot{
		RunID:        uuid.MustParse("7b0e4c7e-3f1a-4d6e-9a51-2c8f0b6d1e42"),
		AsOf:         time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Mode:         entity.ReconcileModeLenient,
		BaseCurrency: "RUB",
		Profiles: []entity.UnifiedCustomerProfile{
			{
				CustomerID:             "A",
				RevenueByCurrency:      map[string]decimal.Decimal{"RUB": decimal.NewFromInt(1000)},
				TotalRevenueNormalized: decimal.NewFromInt(1000),
				TransactionCount:       1,
			},
			{
				CustomerID:        "D",
				RevenueByCurrency: map[string]decimal.Decimal{},
				LegacyMembership: &entity.LegacyMembershipRecord{
					CustomerID: "D",
					Plan:       "FREE",
					CreatedAt:  time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC),
					ExpiresAt:  &expires,
				},
			},
		},
		Cohorts: entity.Cohorts{
			entity.CohortAll:          {"A", "D"},
			entity.CohortLegacyMember: {"D"},
		},
		RejectedRecordCounts: map[entity.Source]int{entity.SourcePayments: 2},
		Warnings:             []entity.Warning{},
		RevenueByCurrency:    map[string]decimal.Decimal{"RUB": decimal.NewFromInt(1000)},
	}
}

func TestRedisSnapshotStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisSnapshotStore(client, "reconciler:snapshot:", time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, domainErrors.ErrSnapshotNotFound)

	snapshot := testSnapshot()
	require.NoError(t, store.Save(ctx, snapshot))

	assert.True(t, mr.Exists("reconciler:snapshot:latest"))
	runKey := "reconciler:snapshot:run:" + snapshot.RunID.String()
	assert.True(t, mr.Exists(runKey))
	assert.Equal(t, time.Hour, mr.TTL(runKey))

	loaded, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot.RunID, loaded.RunID)
	assert.True(t, snapshot.AsOf.Equal(loaded.AsOf))
	assert.Equal(t, snapshot.Cohorts, loaded.Cohorts)
	assert.Equal(t, snapshot.RejectedRecordCounts, loaded.RejectedRecordCounts)
	require.Len(t, loaded.Profiles, 2)
	assert.True(t, decimal.NewFromInt(1000).Equal(loaded.Profiles[0].TotalRevenueNormalized))
	require.NotNil(t, loaded.Profiles[1].LegacyMembership)
	assert.Equal(t, "FREE", loaded.Profiles[1].LegacyMembership.Plan)

	mr.Set("reconciler:snapshot:latest", "{broken")
	_, err = store.Latest(ctx)
	assert.Error(t, err)
}

func TestMemorySnapshotStore(t *testing.T) {
	store := NewMemorySnapshotStore()
	ctx := context.Background()

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, domainErrors.ErrSnapshotNotFound)

	snapshot := testSnapshot()
	require.NoError(t, store.Save(ctx, snapshot))

	loaded, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Same(t, snapshot, loaded)
}
