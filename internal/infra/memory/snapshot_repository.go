package memory

import (
	"context"
	"sync"

	"team-quiz-service/internal/domain"
)

// SnapshotRepository keeps the answer snapshot in process memory. It does not
// survive a restart and is meant for tests and throwaway runs.
type SnapshotRepository struct {
	mu    sync.RWMutex
	snap  domain.Snapshot
	saves int
	err   error
}

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{}
}

// NewSeededSnapshotRepository starts from an existing snapshot.
func NewSeededSnapshotRepository(snap domain.Snapshot) *SnapshotRepository {
	return &SnapshotRepository{snap: snap.Clone()}
}

func (r *SnapshotRepository) LoadSnapshot(_ context.Context) (domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return domain.Snapshot{}, nil
	}
	return r.snap.Clone(), nil
}

func (r *SnapshotRepository) SaveSnapshot(_ context.Context, snap domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.snap = snap.Clone()
	r.saves++
	return nil
}

// Saves reports how many snapshots have been written.
func (r *SnapshotRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

// FailWith makes every following save return err. Pass nil to recover.
func (r *SnapshotRepository) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}
