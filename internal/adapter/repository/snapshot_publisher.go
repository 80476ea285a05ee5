package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/repository"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/pkg/messaging"
)

// SnapshotCompletedEvent is published after every successful run
type SnapshotCompletedEvent struct {
	Event   string                 `json:"event"`
	Summary entity.SnapshotSummary `json:"summary"`
}

const snapshotCompletedEvent = "reconciliation.completed"

type redisSnapshotPublisher struct {
	client  messaging.RedisClient
	channel string
}

// NewRedisSnapshotPublisher announces finished runs on a redis channel
func NewRedisSnapshotPublisher(client messaging.RedisClient, channel string) repository.SnapshotPublisher {
	return &redisSnapshotPublisher{
		client:  client,
		channel: channel,
	}
}

func (p *redisSnapshotPublisher) PublishSnapshot(ctx context.Context, summary entity.SnapshotSummary) error {
	event := SnapshotCompletedEvent{
		Event:   snapshotCompletedEvent,
		Summary: summary,
	}
	if err := p.client.Publish(ctx, p.channel, event); err != nil {
		return fmt.Errorf("failed to publish snapshot event: %w", err)
	}
	return nil
}

type fanoutSnapshotPublisher struct {
	publishers []repository.SnapshotPublisher
}

// NewFanoutSnapshotPublisher publishes to every non-nil publisher. All
// publishers are tried and their errors joined.
func NewFanoutSnapshotPublisher(publishers ...repository.SnapshotPublisher) repository.SnapshotPublisher {
	kept := make([]repository.SnapshotPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &fanoutSnapshotPublisher{publishers: kept}
}

func (p *fanoutSnapshotPublisher) PublishSnapshot(ctx context.Context, summary entity.SnapshotSummary) error {
	var errs []error
	for _, publisher := range p.publishers {
		if err := publisher.PublishSnapshot(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
