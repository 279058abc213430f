package execution

import "context"

// Repository provides append-only persistence for execution records.
type Repository interface {
	// Append stores a new record. Records are never rewritten.
	Append(ctx context.Context, rec *Record) error

	// List returns every stored record in append order.
	List(ctx context.Context) ([]*Record, error)
}
