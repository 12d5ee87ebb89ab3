// Package postgreswrapper runs Postgres engine tests against pgxpool.Pool, sql.DB or sqlx.DB,
// selected with the ADAPTER_TYPE environment variable. Tests are skipped when
// CARHIRE_TEST_POSTGRES_DSN is not set.
package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver for sqlx
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/postgresengine"
)

const (
	envDSN         = "CARHIRE_TEST_POSTGRES_DSN"
	envAdapterType = "ADAPTER_TYPE"
	typePGXPool    = "pgxpool"
	typeSQLDB      = "sqldb"
	typeSQLX       = "sqlx"
	truncateTable  = "TRUNCATE TABLE records RESTART IDENTITY"
)

// Wrapper abstracts over the connection types an Engine can be built from.
type Wrapper interface {
	GetEngine() postgresengine.Engine
	Exec(ctx context.Context, query string) error
	Close()
}

type PGXPoolWrapper struct {
	pool   *pgxpool.Pool
	engine postgresengine.Engine
}

func (w *PGXPoolWrapper) GetEngine() postgresengine.Engine {
	return w.engine
}

func (w *PGXPoolWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.pool.Exec(ctx, query)
	return err
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

type SQLDBWrapper struct {
	db     *sql.DB
	engine postgresengine.Engine
}

func (w *SQLDBWrapper) GetEngine() postgresengine.Engine {
	return w.engine
}

func (w *SQLDBWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close()
}

type SQLXWrapper struct {
	db     *sqlx.DB
	engine postgresengine.Engine
}

func (w *SQLXWrapper) GetEngine() postgresengine.Engine {
	return w.engine
}

func (w *SQLXWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close()
}

// CreateWrapperWithTestConfig connects, migrates the schema and empties the records table.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	dsn := os.Getenv(envDSN)
	if dsn == "" {
		t.Skipf("%s not set, skipping postgres tests", envDSN)
	}

	ctx := context.Background()
	var wrapper Wrapper

	switch adapterType := strings.ToLower(os.Getenv(envAdapterType)); adapterType {
	case typePGXPool, "":
		pool, err := pgxpool.New(ctx, dsn)
		require.NoError(t, err, "error connecting to DB pool in test setup")

		migrateDB := stdlib.OpenDBFromPool(pool)
		require.NoError(t, postgresengine.Migrate(migrateDB, nil), "error migrating in test setup")
		_ = migrateDB.Close()

		engine, err := postgresengine.NewEngineFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating engine in test setup")
		wrapper = &PGXPoolWrapper{pool: pool, engine: engine}

	case typeSQLDB:
		db, err := sql.Open("pgx", dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		require.NoError(t, postgresengine.Migrate(db, nil), "error migrating in test setup")

		engine, err := postgresengine.NewEngineFromSQLDB(db, options...)
		require.NoError(t, err, "error creating engine in test setup")
		wrapper = &SQLDBWrapper{db: db, engine: engine}

	case typeSQLX:
		db, err := sqlx.Open("postgres", dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		require.NoError(t, postgresengine.Migrate(db.DB, nil), "error migrating in test setup")

		engine, err := postgresengine.NewEngineFromSQLX(db, options...)
		require.NoError(t, err, "error creating engine in test setup")
		wrapper = &SQLXWrapper{db: db, engine: engine}

	default:
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	CleanUp(t, wrapper)

	return wrapper
}

// CleanUp empties the records table.
func CleanUp(t testing.TB, wrapper Wrapper) {
	require.NoError(t, wrapper.Exec(context.Background(), truncateTable), "error cleaning up the records table")
}
