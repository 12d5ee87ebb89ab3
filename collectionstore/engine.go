package collectionstore

import (
	"context"
)

// Engine persists records. Implementations translate the Predicate tree into their query language
// and must honour the semantics of Predicate.Matches.
//
// Get, Update and Delete return ErrNotFound for an unknown id. Insert and Update return an error
// matching ErrDuplicateKey when a unique field would be duplicated.
type Engine interface {
	// Prepare creates whatever the engine needs for specs, e.g. unique indexes.
	Prepare(ctx context.Context, specs []CollectionSpec) error
	Find(ctx context.Context, query StoreQuery) ([]Record, error)
	Count(ctx context.Context, collection string, where Predicate) (int, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Insert(ctx context.Context, collection string, record Record) error
	// Update merges patch into the stored record atomically and returns the result.
	Update(ctx context.Context, collection, id string, patch Record) (Record, error)
	Delete(ctx context.Context, collection, id string) (Record, error)
	Close() error
}
