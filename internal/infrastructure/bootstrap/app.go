// Package bootstrap assembles the reconciliation service from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	adapterRepo "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/adapter/repository"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/repository"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/infrastructure/database"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/usecase"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/pkg/messaging"
)

// App holds the assembled service and the resources it owns
type App struct {
	Service *usecase.ReconciliationService
	Engine  *usecase.ReconciliationEngine

	closers []func() error
	logger  *zap.Logger
}

// New wires sources, rates, snapshot storage, archive and publishers from cfg.
// extraPublishers are notified after the configured ones, e.g. the gRPC
// health server.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, extraPublishers ...repository.SnapshotPublisher) (*App, error) {
	app := &App{logger: logger}

	sources, err := app.newSources(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	rates, err := newRates(cfg.Reconcile)
	if err != nil {
		app.Close()
		return nil, err
	}

	var store repository.SnapshotStore
	publishers := make([]repository.SnapshotPublisher, 0, len(extraPublishers)+1)

	if cfg.Redis.Addr != "" {
		client, err := app.newRedis(ctx, cfg.Redis)
		if err != nil {
			app.Close()
			return nil, err
		}
		store = adapterRepo.NewRedisSnapshotStore(client, cfg.Redis.SnapshotPrefix, cfg.Redis.SnapshotTTL, logger)
		publishers = append(publishers, adapterRepo.NewRedisSnapshotPublisher(messaging.NewRedisClientFrom(client), cfg.Redis.Channel))
	} else {
		logger.Info("Redis not configured, keeping snapshots in memory")
		store = adapterRepo.NewMemorySnapshotStore()
	}
	publishers = append(publishers, extraPublishers...)

	var archive repository.SnapshotArchive
	if cfg.Storage.Bucket != "" {
		archive, err = adapterRepo.NewS3SnapshotArchive(ctx, adapterRepo.S3ArchiveConfig{
			Endpoint:     cfg.Storage.Endpoint,
			Region:       cfg.Storage.Region,
			Bucket:       cfg.Storage.Bucket,
			Prefix:       cfg.Storage.Prefix,
			AccessKey:    cfg.Storage.AccessKey,
			SecretKey:    cfg.Storage.SecretKey,
			UsePathStyle: cfg.Storage.UsePathStyle,
		}, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	app.Engine = usecase.NewReconciliationEngine(EngineOptions(cfg.Reconcile), logger)
	app.Service = usecase.NewReconciliationService(
		sources,
		rates,
		store,
		archive,
		adapterRepo.NewFanoutSnapshotPublisher(publishers...),
		app.Engine,
		logger,
	)

	logger.Info("Reconciler assembled",
		zap.String("mode", cfg.Reconcile.Mode),
		zap.String("source_kind", cfg.Source.Kind),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Bool("archive", archive != nil))

	return app, nil
}

// EngineOptions maps reconcile configuration onto engine options
func EngineOptions(cfg config.ReconcileConfig) usecase.EngineOptions {
	return usecase.EngineOptions{
		Mode:    entity.ReconcileMode(cfg.Mode),
		Workers: cfg.Workers,
		Predicates: usecase.DefaultPredicates(usecase.PredicateOptions{
			ExpiringWindow: cfg.ExpiringWindow,
			Plans:          cfg.Cohorts.Plans,
		}),
	}
}

func (a *App) newSources(cfg *config.Config) (repository.SourceRepository, error) {
	switch cfg.Source.Kind {
	case config.SourceKindPostgres:
		db, err := database.NewConnection(&cfg.Database, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return database.Close(db, a.logger) })

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db, a.logger); err != nil {
				return nil, fmt.Errorf("failed to migrate ledger tables: %w", err)
			}
		}
		return adapterRepo.NewPostgresSourceRepository(db, a.logger), nil
	case config.SourceKindFile, "":
		return adapterRepo.NewFileSourceRepository(adapterRepo.FileSourcePaths{
			Payments:          cfg.Source.Payments,
			Subscriptions:     cfg.Source.Subscriptions,
			LegacyMemberships: cfg.Source.LegacyMemberships,
		}, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

func newRates(cfg config.ReconcileConfig) (repository.RateTableRepository, error) {
	if cfg.RatesFile != "" {
		return adapterRepo.NewYAMLRateTableRepository(cfg.RatesFile), nil
	}
	repo, err := adapterRepo.NewStaticRateTableRepository(cfg.BaseCurrency, cfg.Rates)
	if err != nil {
		return nil, fmt.Errorf("invalid inline rates: %w", err)
	}
	return repo, nil
}

func (a *App) newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	a.closers = append(a.closers, client.Close)
	return client, nil
}

// Close releases owned resources in reverse order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("Failed to release resource", zap.Error(err))
		}
	}
	a.closers = nil
}
