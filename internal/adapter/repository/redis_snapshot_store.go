package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/errors"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/repository"
)

const (
	latestSnapshotKey = "latest"
	runSnapshotPrefix = "run:"
)

type redisSnapshotStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSnapshotStore creates a snapshot store keeping the latest snapshot
// under "<prefix>latest" and each run under "<prefix>run:<id>" for ttl.
// A zero ttl keeps run keys forever.
func NewRedisSnapshotStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) repository.SnapshotStore {
	return &redisSnapshotStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// Save writes the run key and swaps the latest pointer in one transaction
func (s *redisSnapshotStore) Save(ctx context.Context, snapshot *entity.ReconciliationSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+runSnapshotPrefix+snapshot.RunID.String(), payload, s.ttl)
		pipe.Set(ctx, s.prefix+latestSnapshotKey, payload, 0)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to save snapshot",
			zap.String("run_id", snapshot.RunID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.Debug("Saved snapshot",
		zap.String("run_id", snapshot.RunID.String()),
		zap.Int("bytes", len(payload)))
	return nil
}

// Latest loads the latest snapshot
func (s *redisSnapshotStore) Latest(ctx context.Context) (*entity.ReconciliationSnapshot, error) {
	payload, err := s.client.Get(ctx, s.prefix+latestSnapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domainErrors.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot entity.ReconciliationSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}
