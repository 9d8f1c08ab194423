package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"trimborder/types"
)

// MemoryStore keeps jobs in process. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]types.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]types.Job)}
}

func (m *MemoryStore) SaveJob(_ context.Context, job types.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.jobs[job.ID]; ok {
		job.Pages = old.Pages
	} else {
		job.Pages = nil
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryStore) SavePageResults(_ context.Context, id uuid.UUID, recs []types.PageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Pages = slices.Clone(recs)
	slices.SortFunc(job.Pages, func(a, b types.PageRecord) int { return a.PageID - b.PageID })
	m.jobs[id] = job
	return nil
}

func (m *MemoryStore) GetJobByID(_ context.Context, id uuid.UUID) (*types.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	job.Pages = slices.Clone(job.Pages)
	return &job, nil
}

func (m *MemoryStore) Close() error { return nil }
