package delegation

import "context"

// Repository provides persistence for delegations, keyed by the
// (user, executor) pair.
type Repository interface {
	// Get returns the delegation for a pair, or nil (not an error) if
	// none exists.
	Get(ctx context.Context, user, executor string) (*Delegation, error)

	// Upsert creates or replaces the delegation for its pair.
	Upsert(ctx context.Context, d *Delegation) error

	// ListByUser returns every delegation issued by a user.
	ListByUser(ctx context.Context, user string) ([]*Delegation, error)

	// List returns every stored delegation.
	List(ctx context.Context) ([]*Delegation, error)
}
