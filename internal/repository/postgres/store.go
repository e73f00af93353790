package postgres

import "github.com/andresuchdata/chainplan/internal/repository"

// Store combines the snapshot and plan repositories over one pool.
type Store struct {
	*snapshotRepository
	*planRepository
}

func NewStore(db *DB) *Store {
	return &Store{
		snapshotRepository: NewSnapshotRepository(db),
		planRepository:     NewPlanRepository(db),
	}
}

var _ repository.Store = (*Store)(nil)
