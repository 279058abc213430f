package repositoryimpl

import (
	"context"
	"sync"

	"github.com/chainagent/chainagent/internal/execution"
	"github.com/chainagent/chainagent/pkg/cerr"
)

// MemoryRepository is a slice-backed Repository for tests and ephemeral
// deployments.
type MemoryRepository struct {
	mu   sync.RWMutex
	recs []*execution.Record
	ids  map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{ids: make(map[string]struct{})}
}

var _ execution.Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Append(_ context.Context, rec *execution.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[rec.ID]; ok {
		return cerr.NewError(cerr.AlreadyExists, "execution record already exists", nil)
	}
	copied := *rec
	r.recs = append(r.recs, &copied)
	r.ids[rec.ID] = struct{}{}
	return nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*execution.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*execution.Record, 0, len(r.recs))
	for _, rec := range r.recs {
		copied := *rec
		all = append(all, &copied)
	}
	return all, nil
}
