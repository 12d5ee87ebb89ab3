package adapters

import "context"

// DBAdapter is the subset of database operations the engine needs.
type DBAdapter interface {
	// Query runs a read. Adapters with a replica use it here.
	Query(ctx context.Context, query string, args ...any) (DBRows, error)
	// QueryPrimary runs a statement that returns rows on the primary, e.g. UPDATE ... RETURNING.
	QueryPrimary(ctx context.Context, query string, args ...any) (DBRows, error)
	Exec(ctx context.Context, query string, args ...any) (DBResult, error)
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
