package repositoryimpl

import (
	"context"
	"sync"

	"github.com/chainagent/chainagent/internal/delegation"
)

type pairKey struct {
	user     string
	executor string
}

// MemoryRepository is a map-backed Repository for tests and ephemeral
// deployments.
type MemoryRepository struct {
	mu     sync.RWMutex
	delegs map[pairKey]delegation.Delegation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{delegs: make(map[pairKey]delegation.Delegation)}
}

var _ delegation.Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Get(_ context.Context, user, executor string) (*delegation.Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.delegs[pairKey{user, executor}]
	if !ok {
		return nil, nil
	}
	copied := d
	return &copied, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, d *delegation.Delegation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delegs[pairKey{d.User, d.Executor}] = *d
	return nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, user string) ([]*delegation.Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*delegation.Delegation
	for k, d := range r.delegs {
		if k.user != user {
			continue
		}
		copied := d
		all = append(all, &copied)
	}
	return all, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*delegation.Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*delegation.Delegation, 0, len(r.delegs))
	for _, d := range r.delegs {
		copied := d
		all = append(all, &copied)
	}
	return all, nil
}
