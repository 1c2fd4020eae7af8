// Package repo provides a small generic repository abstraction plus a
// Neo4j-backed implementation used by the graph layer for node CRUD.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound reports a lookup that matched no node. Callers branch on
// it with errors.Is.
var ErrNotFound = errors.New("not found")

// Repository is generic CRUD over entities of type T keyed by ID.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts paginates List calls. Filter is implementation-defined.
type ListOpts struct {
	Offset int
	Limit  int
	Filter map[string]any
}
