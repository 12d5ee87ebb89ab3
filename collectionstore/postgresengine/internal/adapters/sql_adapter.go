package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// SQLAdapter runs statements on a database/sql handle. sqlx handles share it through their
// embedded *sql.DB; the engine only uses plain statements, so nothing sqlx specific is needed.
type SQLAdapter struct {
	db *sql.DB
}

func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

func NewSQLXAdapter(db *sqlx.DB) *SQLAdapter {
	return &SQLAdapter{db: db.DB}
}

func (a *SQLAdapter) Query(ctx context.Context, query string, args ...any) (DBRows, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// QueryPrimary is Query: a database/sql handle has no replica.
func (a *SQLAdapter) QueryPrimary(ctx context.Context, query string, args ...any) (DBRows, error) {
	return a.Query(ctx, query, args...)
}

func (a *SQLAdapter) Exec(ctx context.Context, query string, args ...any) (DBResult, error) {
	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return result, nil
}
