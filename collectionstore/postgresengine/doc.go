// Package postgresengine provides a PostgreSQL implementation of collectionstore.Engine.
//
// All collections share one table: every record is a row keyed by (collection, id) with its
// fields in a JSONB column. Dates are stored as fixed-width UTC text so they compare and sort
// chronologically as strings. Predicates are translated to parameterized SQL with goqu.
//
// Supported connection types:
//   - pgxpool.Pool, optionally with a read replica
//   - sql.DB
//   - sqlx.DB
//
// Usage:
//
//	pool, _ := pgxpool.New(ctx, dsn)
//	engine, err := postgresengine.NewEngineFromPGXPool(pool, postgresengine.WithLogger(logger))
//	if err != nil { ... }
//	service, err := collectionstore.NewService(registry, engine)
//
// The schema is created by Migrate; Prepare adds one partial unique index per unique field.
package postgresengine
