package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/model"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/repository"
)

type postgresSourceRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPostgresSourceRepository creates a source repository reading the
// payments, user_subscriptions and premium_clients tables
func NewPostgresSourceRepository(db *gorm.DB, logger *zap.Logger) repository.SourceRepository {
	return &postgresSourceRepository{
		db:     db,
		logger: logger,
	}
}

// FetchPayments loads every payment row in insertion order
func (r *postgresSourceRepository) FetchPayments(ctx context.Context) ([]entity.RawRecord, error) {
	var rows []model.Payment
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		r.logger.Error("Failed to fetch payments", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch payments: %w", err)
	}

	records := make([]entity.RawRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].ToRawRecord())
	}
	return records, nil
}

// FetchSubscriptions loads every subscription row in insertion order
func (r *postgresSourceRepository) FetchSubscriptions(ctx context.Context) ([]entity.RawRecord, error) {
	var rows []model.UserSubscription
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		r.logger.Error("Failed to fetch subscriptions", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}

	records := make([]entity.RawRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].ToRawRecord())
	}
	return records, nil
}

// FetchLegacyMemberships loads the legacy registry ordered by creation
func (r *postgresSourceRepository) FetchLegacyMemberships(ctx context.Context) ([]entity.RawRecord, error) {
	var rows []model.PremiumClient
	if err := r.db.WithContext(ctx).Order("created_at ASC, telegram_id ASC").Find(&rows).Error; err != nil {
		r.logger.Error("Failed to fetch legacy memberships", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch legacy memberships: %w", err)
	}

	records := make([]entity.RawRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].ToRawRecord())
	}
	return records, nil
}
