package delegation

import (
	"context"
	"sync"
	"time"

	"github.com/chainagent/chainagent/internal/eventbus"
	"github.com/chainagent/chainagent/internal/permission"
	"github.com/chainagent/chainagent/pkg/cerr"
)

// IssuedPayload is emitted when a sub-delegation is issued.
type IssuedPayload struct {
	User       string `json:"user"`
	Executor   string `json:"executor"`
	DailyLimit int64  `json:"dailyLimit"`
}

// RevokedPayload is emitted when a delegation is revoked.
type RevokedPayload struct {
	User     string `json:"user"`
	Executor string `json:"executor"`
}

// Registry owns the delegation rows. A delegation holds only the
// (user) key of its parent permission, never the permission itself;
// consumers re-check the parent's status on every use.
type Registry struct {
	mu     sync.RWMutex
	repo   Repository
	perms  *permission.Registry
	bus    *eventbus.Bus
	delegs map[pairKey]*Delegation
	now    func() time.Time
}

type pairKey struct {
	user     string
	executor string
}

func NewRegistry(repo Repository, perms *permission.Registry, bus *eventbus.Bus) *Registry {
	return &Registry{
		repo:   repo,
		perms:  perms,
		bus:    bus,
		delegs: make(map[pairKey]*Delegation),
		now:    time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (r *Registry) SetNowFunc(now func() time.Time) {
	r.now = now
}

// Load warms the in-memory working set from the repository.
func (r *Registry) Load(ctx context.Context) error {
	all, err := r.repo.List(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range all {
		r.delegs[pairKey{d.User, d.Executor}] = d
	}
	return nil
}

// Issue hands a slice of the caller's daily limit to an executor,
// overwriting any prior delegation for the pair. The parent permission
// must be active and the slice must fit inside its current daily limit.
func (r *Registry) Issue(ctx context.Context, caller, user, executor string, dailyLimit int64) (*Delegation, error) {
	if caller != user {
		return nil, cerr.NewError(cerr.PermissionDenied, "only the permission owner may delegate", nil)
	}
	if executor == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "executor is required", nil)
	}

	parent, err := r.perms.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	if parent == nil || !parent.Active {
		return nil, cerr.NewError(cerr.FailedPrecondition, "permission not active", nil)
	}
	if dailyLimit <= 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "daily limit must be positive", nil)
	}
	if dailyLimit > parent.DailyLimit {
		return nil, cerr.NewError(cerr.InvalidArgument, "delegated daily limit exceeds the permission's daily limit", nil)
	}

	d := &Delegation{
		User:       user,
		Executor:   executor,
		DailyLimit: dailyLimit,
		Active:     true,
		CreatedAt:  r.now(),
	}

	r.mu.Lock()
	if err := r.repo.Upsert(ctx, d); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.delegs[pairKey{user, executor}] = d
	copied := *d
	r.mu.Unlock()

	r.bus.PublishNew(eventbus.TypeSubDelegationIssued, user, IssuedPayload{
		User:       user,
		Executor:   executor,
		DailyLimit: dailyLimit,
	})
	return &copied, nil
}

// Revoke deactivates the delegation for a pair. Revoking an absent or
// already-inactive delegation is a no-op.
func (r *Registry) Revoke(ctx context.Context, user, executor string) error {
	r.mu.Lock()
	d, ok := r.delegs[pairKey{user, executor}]
	if !ok || !d.Active {
		r.mu.Unlock()
		return nil
	}
	now := r.now()
	d.Active = false
	d.RevokedAt = &now
	if err := r.repo.Upsert(ctx, d); err != nil {
		d.Active = true
		d.RevokedAt = nil
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.bus.PublishNew(eventbus.TypeDelegationRevoked, user, RevokedPayload{
		User:     user,
		Executor: executor,
	})
	return nil
}

// DeactivateAllForUser revokes every delegation a user has issued. It
// implements the cascade the permission registry runs on revoke.
func (r *Registry) DeactivateAllForUser(ctx context.Context, user string) error {
	r.mu.RLock()
	var executors []string
	for k, d := range r.delegs {
		if k.user == user && d.Active {
			executors = append(executors, k.executor)
		}
	}
	r.mu.RUnlock()

	for _, executor := range executors {
		if err := r.Revoke(ctx, user, executor); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a copy of the delegation for a pair, or nil if none
// exists.
func (r *Registry) Get(_ context.Context, user, executor string) (*Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.delegs[pairKey{user, executor}]
	if !ok {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}
