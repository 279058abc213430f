package repositoryimpl

import (
	"context"
	"sync"

	"github.com/chainagent/chainagent/internal/permission"
)

// MemoryRepository is a map-backed Repository for tests and ephemeral
// deployments.
type MemoryRepository struct {
	mu    sync.RWMutex
	perms map[string]permission.Permission
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{perms: make(map[string]permission.Permission)}
}

var _ permission.Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Get(_ context.Context, user string) (*permission.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.perms[user]
	if !ok {
		return nil, nil
	}
	copied := p
	return &copied, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, p *permission.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perms[p.User] = *p
	return nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*permission.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*permission.Permission, 0, len(r.perms))
	for _, p := range r.perms {
		copied := p
		all = append(all, &copied)
	}
	return all, nil
}
