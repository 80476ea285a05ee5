package repository

import (
	"context"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
)

// SnapshotStore keeps the most recent published snapshot
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *entity.ReconciliationSnapshot) error
	// Latest returns errors.ErrSnapshotNotFound before the first Save
	Latest(ctx context.Context) (*entity.ReconciliationSnapshot, error)
}

// SnapshotArchive keeps every snapshot for audit
type SnapshotArchive interface {
	Archive(ctx context.Context, snapshot *entity.ReconciliationSnapshot) (string, error)
}

// SnapshotPublisher announces a finished run to downstream consumers
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, summary entity.SnapshotSummary) error
}
