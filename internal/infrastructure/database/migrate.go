package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/model"
)

// ledgerIndexes back the ordered scans the source repository issues
var ledgerIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_payments_telegram_created ON payments (telegram_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_user_subscriptions_telegram_started ON user_subscriptions (telegram_id, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_premium_clients_created ON premium_clients (created_at, telegram_id)`,
}

// Migrate creates the ledger tables. Production ledgers are owned by the
// platform; this exists for local and staging databases.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := db.AutoMigrate(
		&model.Payment{},
		&model.UserSubscription{},
		&model.PremiumClient{},
	); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	for _, stmt := range ledgerIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Error("Failed to create index", zap.String("statement", stmt), zap.Error(err))
			return err
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}
