package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXAdapter runs statements on a pgx pool, reads optionally on a replica pool.
type PGXAdapter struct {
	primary *pgxpool.Pool
	replica *pgxpool.Pool
}

func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{primary: pool}
}

// NewPGXAdapterWithReplica routes Query to replica and everything else to pool.
func NewPGXAdapterWithReplica(pool *pgxpool.Pool, replica *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{primary: pool, replica: replica}
}

func (a *PGXAdapter) Query(ctx context.Context, query string, args ...any) (DBRows, error) {
	if a.replica != nil {
		return queryPool(ctx, a.replica, query, args)
	}

	return queryPool(ctx, a.primary, query, args)
}

func (a *PGXAdapter) QueryPrimary(ctx context.Context, query string, args ...any) (DBRows, error) {
	return queryPool(ctx, a.primary, query, args)
}

func (a *PGXAdapter) Exec(ctx context.Context, query string, args ...any) (DBResult, error) {
	tag, err := a.primary.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return affected(tag.RowsAffected()), nil
}

func queryPool(ctx context.Context, pool *pgxpool.Pool, query string, args []any) (DBRows, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return pgxRows{Rows: rows}, nil
}

// pgxRows adapts pgx.Rows, whose Close has no error result.
type pgxRows struct {
	pgx.Rows
}

func (r pgxRows) Close() error {
	r.Rows.Close()
	return nil
}

type affected int64

func (n affected) RowsAffected() (int64, error) {
	return int64(n), nil
}
