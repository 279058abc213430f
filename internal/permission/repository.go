package permission

import "context"

// Repository provides persistence for permissions.
type Repository interface {
	// Get returns the permission for a user, or nil (not an error) if
	// none exists.
	Get(ctx context.Context, user string) (*Permission, error)

	// Upsert creates or replaces the permission for a user.
	Upsert(ctx context.Context, p *Permission) error

	// List returns every stored permission.
	List(ctx context.Context) ([]*Permission, error)
}
