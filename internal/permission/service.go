package permission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chainagent/chainagent/internal/eventbus"
	"github.com/chainagent/chainagent/pkg/cerr"
)

const bpsDenominator = 10000

// ReceivedPayload is emitted when a permission is granted or replaced.
type ReceivedPayload struct {
	User         string `json:"user"`
	Token        string `json:"token"`
	DailyLimit   int64  `json:"dailyLimit"`
	TotalLimit   int64  `json:"totalLimit"`
	Duration     int64  `json:"duration"` // seconds
	TargetDipBps int64  `json:"targetDipBps"`
}

// RevokedPayload is emitted when a permission is revoked by its owner.
type RevokedPayload struct {
	User string `json:"user"`
}

// DelegationCascade deactivates every delegation issued by a user. It
// is implemented by the delegation registry and wired in at startup;
// an interface here keeps the dependency pointing one way.
type DelegationCascade interface {
	DeactivateAllForUser(ctx context.Context, user string) error
}

// Registry owns the permission rows. All mutation goes through it; the
// in-memory map is the authoritative working set and the repository is
// a write-through copy for durability.
type Registry struct {
	mu      sync.RWMutex
	repo    Repository
	bus     *eventbus.Bus
	perms   map[string]*Permission
	cascade DelegationCascade
	now     func() time.Time
}

func NewRegistry(repo Repository, bus *eventbus.Bus) *Registry {
	return &Registry{
		repo:  repo,
		bus:   bus,
		perms: make(map[string]*Permission),
		now:   time.Now,
	}
}

// SetCascade wires the delegation registry for cascading revokes.
func (r *Registry) SetCascade(c DelegationCascade) {
	r.cascade = c
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
	for _, p := range all {
		r.perms[p.User] = p
	}
	return nil
}

// Grant creates a fresh permission for user, replacing any prior one.
// TotalSpent resets to zero and the duration restarts at now.
func (r *Registry) Grant(ctx context.Context, user, token string, dailyLimit, totalLimit, durationDays, targetDipBps int64) (*Permission, error) {
	if user == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "user is required", nil)
	}
	if dailyLimit <= 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "daily limit must be positive", nil)
	}
	if totalLimit < dailyLimit {
		return nil, cerr.NewError(cerr.InvalidArgument, "total limit must be at least the daily limit", nil)
	}
	if durationDays <= 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "duration must be positive", nil)
	}
	if targetDipBps <= 0 || targetDipBps >= bpsDenominator {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("target dip must be between 1 and %d bps", bpsDenominator-1), nil)
	}

	now := r.now()
	p := &Permission{
		User:         user,
		Token:        token,
		DailyLimit:   dailyLimit,
		TotalLimit:   totalLimit,
		StartTime:    now,
		DurationDays: durationDays,
		TargetDipBps: targetDipBps,
		Active:       true,
		TotalSpent:   0,
		CreatedAt:    now,
	}

	r.mu.Lock()
	if err := r.repo.Upsert(ctx, p); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.perms[user] = p
	copied := *p
	r.mu.Unlock()

	r.bus.PublishNew(eventbus.TypePermissionReceived, user, ReceivedPayload{
		User:         user,
		Token:        token,
		DailyLimit:   dailyLimit,
		TotalLimit:   totalLimit,
		Duration:     durationDays * 86400,
		TargetDipBps: targetDipBps,
	})
	return &copied, nil
}

// Revoke deactivates the user's permission and cascades to every
// delegation the user has issued. Revoking an already-inactive
// permission is a no-op.
func (r *Registry) Revoke(ctx context.Context, caller, user string) error {
	if caller != user {
		return cerr.NewError(cerr.PermissionDenied, "only the permission owner may revoke it", nil)
	}

	r.mu.Lock()
	p, ok := r.perms[user]
	if !ok {
		r.mu.Unlock()
		return cerr.NewError(cerr.NotFound, "permission not found", nil)
	}
	if !p.Active {
		r.mu.Unlock()
		return nil
	}
	now := r.now()
	p.Active = false
	p.RevokedAt = &now
	if err := r.repo.Upsert(ctx, p); err != nil {
		p.Active = true
		p.RevokedAt = nil
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	if r.cascade != nil {
		if err := r.cascade.DeactivateAllForUser(ctx, user); err != nil {
			return err
		}
	}
	r.bus.PublishNew(eventbus.TypePermissionRevoked, user, RevokedPayload{User: user})
	return nil
}

// Get returns a copy of the user's permission with Active computed
// lazily against the clock, or nil if the user has none.
func (r *Registry) Get(_ context.Context, user string) (*Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.perms[user]
	if !ok {
		return nil, nil
	}
	copied := *p
	copied.Active = p.ActiveAt(r.now())
	return &copied, nil
}

// SpendLimits reports the bounds the quota ledger enforces. The
// permission must be effectively active.
func (r *Registry) SpendLimits(_ context.Context, user string) (daily, total, spent int64, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.perms[user]
	if !ok || !p.ActiveAt(r.now()) {
		return 0, 0, 0, cerr.NewError(cerr.FailedPrecondition, "permission not active", nil)
	}
	return p.DailyLimit, p.TotalLimit, p.TotalSpent, nil
}

// AddSpent moves the lifetime spend counter forward. It re-checks the
// total bound so the counter can never pass TotalLimit regardless of
// what the caller validated.
func (r *Registry) AddSpent(ctx context.Context, user string, amount int64) error {
	if amount <= 0 {
		return cerr.NewError(cerr.InvalidArgument, "amount must be positive", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.perms[user]
	if !ok || !p.ActiveAt(r.now()) {
		return cerr.NewError(cerr.FailedPrecondition, "permission not active", nil)
	}
	if p.TotalSpent+amount > p.TotalLimit {
		return cerr.NewError(cerr.ResourceExhausted, "lifetime limit exceeded", nil)
	}
	p.TotalSpent += amount
	if err := r.repo.Upsert(ctx, p); err != nil {
		p.TotalSpent -= amount
		return err
	}
	return nil
}

// TotalSpent returns the lifetime spend for a user, zero if no
// permission exists.
func (r *Registry) TotalSpent(_ context.Context, user string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.perms[user]; ok {
		return p.TotalSpent
	}
	return 0
}
