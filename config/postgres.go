package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

const (
	defaultMaxConnIdleTime   = time.Minute * 5
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = time.Second * 5
)

// PGXPoolConfig parses the DSN and applies the pool limits.
func (p Postgres) PGXPoolConfig() (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(p.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}

	dbConfig.MaxConns = int32(p.MaxConns) //nolint:gosec // validated range
	dbConfig.MinConns = int32(p.MinConns) //nolint:gosec // validated range
	dbConfig.MaxConnLifetime = p.MaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return dbConfig, nil
}

// OpenPGXPool connects a pool and pings it.
func (p Postgres) OpenPGXPool(ctx context.Context) (*pgxpool.Pool, error) {
	dbConfig, err := p.PGXPoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return pool, nil
}

// OpenSQLDB opens a database/sql handle over the pgx driver.
func (p Postgres) OpenSQLDB(ctx context.Context) (*sql.DB, error) {
	dbConfig, err := p.PGXPoolConfig()
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*dbConfig.ConnConfig)
	p.limit(db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return db, nil
}

// OpenSQLX opens a sqlx handle over lib/pq.
func (p Postgres) OpenSQLX(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", p.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	p.limit(db.DB)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return db, nil
}

func (p Postgres) limit(db *sql.DB) {
	db.SetMaxOpenConns(p.MaxConns)
	db.SetMaxIdleConns(p.MinConns)
	db.SetConnMaxLifetime(p.MaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
}
