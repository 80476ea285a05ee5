package repository

import (
	"context"
	"sync"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/errors"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/repository"
)

type memorySnapshotStore struct {
	mu     sync.RWMutex
	latest *entity.ReconciliationSnapshot
}

// NewMemorySnapshotStore creates a process-local snapshot store, used when no
// redis is configured
func NewMemorySnapshotStore() repository.SnapshotStore {
	return &memorySnapshotStore{}
}

func (s *memorySnapshotStore) Save(_ context.Context, snapshot *entity.ReconciliationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snapshot
	return nil
}

func (s *memorySnapshotStore) Latest(_ context.Context) (*entity.ReconciliationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, domainErrors.ErrSnapshotNotFound
	}
	return s.latest, nil
}
