package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/postgresengine/internal/adapters"
)

const (
	defaultTableName = "records"
	dialectPostgres  = "postgres"
	uniqueViolation  = "23505"

	logMsgBuildQueryFailed = "failed to build query"
	logMsgDBQueryFailed    = "database query execution failed"
	logMsgDBExecFailed     = "database execution failed"
	logMsgCloseRowsFailed  = "failed to close database rows"
	logMsgScanRowFailed    = "failed to scan database row"
	logMsgDecodeFailed     = "failed to decode record data"
	logMsgDuplicateKey     = "unique constraint violated"
	logMsgSQLExecuted      = "executed sql for: "
	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrCollection      = "collection"
	logAttrDurationMS      = "duration_ms"
	logAttrRecordID        = "record_id"
	logActionFind          = "find"
	logActionCount         = "count"
	logActionGet           = "get"
	logActionInsert        = "insert"
	logActionUpdate        = "update"
	logActionDelete        = "delete"
	logActionPrepare       = "prepare"
	aliasCount             = "cnt"
	indexNameMaxLength     = 63
	indexNameSuffix        = "_uniq"
)

// Engine stores records of all collections in one PostgreSQL table.
type Engine struct {
	db               adapters.DBAdapter
	tableName        string
	logger           collectionstore.Logger
	contextualLogger collectionstore.ContextualLogger
	closer           func() error
}

// NewEngineFromPGXPool creates a new Engine using a pgx Pool with optional configuration.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, collectionstore.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), func() error { db.Close(); return nil }, options)
}

// NewEngineFromPGXPoolWithReplica routes reads to replica and writes to primary.
func NewEngineFromPGXPoolWithReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Engine, error) {
	if primary == nil || replica == nil {
		return Engine{}, collectionstore.ErrNilDatabaseConnection
	}

	closer := func() error {
		replica.Close()
		primary.Close()
		return nil
	}

	return newEngine(adapters.NewPGXAdapterWithReplica(primary, replica), closer, options)
}

// NewEngineFromSQLDB creates a new Engine using a sql.DB with optional configuration.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, collectionstore.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), db.Close, options)
}

// NewEngineFromSQLX creates a new Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, collectionstore.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), db.Close, options)
}

func newEngine(db adapters.DBAdapter, closer func() error, options []Option) (Engine, error) {
	e := Engine{
		db:        db,
		tableName: defaultTableName,
		closer:    closer,
	}

	for _, option := range options {
		if err := option(&e); err != nil {
			return Engine{}, err
		}
	}

	return e, nil
}

// Prepare creates a partial unique index for every unique field of every collection.
func (e Engine) Prepare(ctx context.Context, specs []collectionstore.CollectionSpec) error {
	for _, spec := range specs {
		for _, field := range spec.UniqueFields() {
			stmt := fmt.Sprintf(
				"CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ((%s->>%s)) WHERE %s = %s",
				pq.QuoteIdentifier(e.indexName(spec.Name, field)),
				pq.QuoteIdentifier(e.tableName),
				colData,
				pq.QuoteLiteral(field),
				colCollection,
				pq.QuoteLiteral(spec.Name),
			)

			if _, _, err := e.exec(ctx, logActionPrepare, spec.Name, stmt); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e Engine) indexName(collection, field string) string {
	name := strings.ToLower(fmt.Sprintf("%s_%s_%s", e.tableName, collection, field))
	if len(name)+len(indexNameSuffix) > indexNameMaxLength {
		name = name[:indexNameMaxLength-len(indexNameSuffix)]
	}

	return name + indexNameSuffix
}

// Find returns the records matching the query in the requested order.
func (e Engine) Find(ctx context.Context, query collectionstore.StoreQuery) ([]collectionstore.Record, error) {
	sqlQuery, args, err := e.buildFindQuery(query)
	if err != nil {
		e.logError(ctx, logMsgBuildQueryFailed, logAttrError, err.Error(), logAttrCollection, query.Collection)
		return nil, err
	}

	rows, _, err := e.executeQuery(ctx, e.db.Query, logActionFind, query.Collection, sqlQuery, args)
	if err != nil {
		return nil, err
	}
	defer e.closeRows(ctx, rows)

	records, err := e.scanRecords(ctx, rows)
	if err != nil {
		return nil, err
	}

	for i, rec := range records {
		records[i] = rec.Project(query.Fields)
	}

	return records, nil
}

func (e Engine) buildFindQuery(query collectionstore.StoreQuery) (string, []any, error) {
	where, err := translate(query.Where)
	if err != nil {
		return "", nil, errors.Join(collectionstore.ErrBuildingQueryFailed, err)
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(e.tableName).
		Prepared(true).
		Select(colID, colData).
		Where(goqu.C(colCollection).Eq(query.Collection), where).
		Order(orderBy(query.Sort)...)

	if query.Limit > 0 {
		selectStmt = selectStmt.Limit(uint(query.Limit))
	}

	if query.Skip > 0 {
		selectStmt = selectStmt.Offset(uint(query.Skip))
	}

	sqlQuery, args, err := selectStmt.ToSQL()
	if err != nil {
		return "", nil, errors.Join(collectionstore.ErrBuildingQueryFailed, err)
	}

	return sqlQuery, args, nil
}

// Count returns the number of records in collection matching where.
func (e Engine) Count(ctx context.Context, collection string, where collectionstore.Predicate) (int, error) {
	sqlQuery, args, err := e.buildCountQuery(collection, where)
	if err != nil {
		e.logError(ctx, logMsgBuildQueryFailed, logAttrError, err.Error(), logAttrCollection, collection)
		return 0, err
	}

	rows, _, err := e.executeQuery(ctx, e.db.Query, logActionCount, collection, sqlQuery, args)
	if err != nil {
		return 0, err
	}
	defer e.closeRows(ctx, rows)

	var count int64
	for rows.Next() {
		if err := rows.Scan(&count); err != nil {
			e.logError(ctx, logMsgScanRowFailed, logAttrError, err.Error())
			return 0, errors.Join(collectionstore.ErrScanningDBRowFailed, err)
		}
	}

	if err := rows.Err(); err != nil {
		return 0, errors.Join(collectionstore.ErrQueryingRecordsFailed, err)
	}

	return int(count), nil
}

func (e Engine) buildCountQuery(collection string, where collectionstore.Predicate) (string, []any, error) {
	expr, err := translate(where)
	if err != nil {
		return "", nil, errors.Join(collectionstore.ErrBuildingQueryFailed, err)
	}

	sqlQuery, args, err := goqu.Dialect(dialectPostgres).
		From(e.tableName).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star()).As(aliasCount)).
		Where(goqu.C(colCollection).Eq(collection), expr).
		ToSQL()
	if err != nil {
		return "", nil, errors.Join(collectionstore.ErrBuildingQueryFailed, err)
	}

	return sqlQuery, args, nil
}

// Get returns one record or collectionstore.ErrNotFound.
func (e Engine) Get(ctx context.Context, collection, id string) (collectionstore.Record, error) {
	sqlQuery, args, err := goqu.Dialect(dialectPostgres).
		From(e.tableName).
		Prepared(true).
		Select(colID, colData).
		Where(goqu.C(colCollection).Eq(collection), goqu.C(colID).Eq(id)).
		ToSQL()
	if err != nil {
		return nil, errors.Join(collectionstore.ErrBuildingQueryFailed, err)
	}

	rows, _, err := e.executeQuery(ctx, e.db.Query, logActionGet, collection, sqlQuery, args)
	if err != nil {
		return nil, err
	}
	defer e.closeRows(ctx, rows)

	return e.scanOne(ctx, rows)
}

// Insert writes a new record. A clashing id or unique field value yields collectionstore.ErrDuplicateKey.
func (e Engine) Insert(ctx context.Context, collection string, record collectionstore.Record) error {
	payload, err := toWire(record)
	if err != nil {
		return errors.Join(collectionstore.ErrEncodingRecordFailed, err)
	}

	sqlQuery, args, err := goqu.Dialect(dialectPostgres).
		Insert(e.tableName).
		Prepared(true).
		Rows(goqu.Record{
			colCollection: collection,
			colID:         record.ID(),
			colData:       goqu.L(castJSONB, string(payload)),
		}).
		ToSQL()
	if err != nil {
		return errors.Join(collectionstore.ErrBuildingQueryFailed, err)
	}

	_, _, err = e.exec(ctx, logActionInsert, collection, sqlQuery, args...)

	return err
}

// Update merges patch into the stored data in one statement and returns the result.
func (e Engine) Update(
	ctx context.Context,
	collection string,
	id string,
	patch collectionstore.Record,
) (collectionstore.Record, error) {

	payload, err := toWire(patch)
	if err != nil {
		return nil, errors.Join(collectionstore.ErrEncodingRecordFailed, err)
	}

	sqlQuery, args, err := goqu.Dialect(dialectPostgres).
		Update(e.tableName).
		Prepared(true).
		Set(goqu.Record{colData: goqu.L("? || "+castJSONB, goqu.I(colData), string(payload))}).
		Where(goqu.C(colCollection).Eq(collection), goqu.C(colID).Eq(id)).
		Returning(colID, colData).
		ToSQL()
	if err != nil {
		return nil, errors.Join(collectionstore.ErrBuildingQueryFailed, err)
	}

	rows, _, err := e.executeQuery(ctx, e.db.QueryPrimary, logActionUpdate, collection, sqlQuery, args)
	if err != nil {
		return nil, err
	}
	defer e.closeRows(ctx, rows)

	return e.scanOne(ctx, rows)
}

// Delete removes a record and returns it.
func (e Engine) Delete(ctx context.Context, collection, id string) (collectionstore.Record, error) {
	sqlQuery, args, err := goqu.Dialect(dialectPostgres).
		Delete(e.tableName).
		Prepared(true).
		Where(goqu.C(colCollection).Eq(collection), goqu.C(colID).Eq(id)).
		Returning(colID, colData).
		ToSQL()
	if err != nil {
		return nil, errors.Join(collectionstore.ErrBuildingQueryFailed, err)
	}

	rows, _, err := e.executeQuery(ctx, e.db.QueryPrimary, logActionDelete, collection, sqlQuery, args)
	if err != nil {
		return nil, err
	}
	defer e.closeRows(ctx, rows)

	return e.scanOne(ctx, rows)
}

// Close releases the connection pool the engine was created with.
func (e Engine) Close() error {
	if e.closer == nil {
		return nil
	}

	return e.closer()
}

type queryFunc func(ctx context.Context, query string, args ...any) (adapters.DBRows, error)

// executeQuery runs a statement that returns rows and logs it with its timing.
func (e Engine) executeQuery(
	ctx context.Context,
	query queryFunc,
	action string,
	collection string,
	sqlQuery string,
	args []any,
) (adapters.DBRows, time.Duration, error) {

	start := time.Now()
	rows, err := query(ctx, sqlQuery, args...)
	duration := time.Since(start)
	e.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if err != nil {
		return nil, duration, e.classify(ctx, logMsgDBQueryFailed, collection, sqlQuery, err, collectionstore.ErrQueryingRecordsFailed)
	}

	return rows, duration, nil
}

func (e Engine) exec(ctx context.Context, action, collection, sqlQuery string, args ...any) (int64, time.Duration, error) {
	start := time.Now()
	result, err := e.db.Exec(ctx, sqlQuery, args...)
	duration := time.Since(start)
	e.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if err != nil {
		return 0, duration, e.classify(ctx, logMsgDBExecFailed, collection, sqlQuery, err, collectionstore.ErrWritingRecordFailed)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, duration, errors.Join(collectionstore.ErrWritingRecordFailed, err)
	}

	return affected, duration, nil
}

// classify maps unique violations to ErrDuplicateKey and wraps everything else in fallback.
func (e Engine) classify(ctx context.Context, msg, collection, sqlQuery string, err error, fallback error) error {
	if isUniqueViolation(err) {
		e.logDebug(ctx, logMsgDuplicateKey, logAttrCollection, collection, logAttrError, err.Error())
		return errors.Join(collectionstore.ErrDuplicateKey, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	e.logError(ctx, msg, logAttrError, err.Error(), logAttrQuery, sqlQuery)

	return errors.Join(fallback, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}

	return false
}

func (e Engine) scanRecords(ctx context.Context, rows adapters.DBRows) ([]collectionstore.Record, error) {
	records := make([]collectionstore.Record, 0)

	for rows.Next() {
		var id string
		var data []byte

		if err := rows.Scan(&id, &data); err != nil {
			e.logError(ctx, logMsgScanRowFailed, logAttrError, err.Error())
			return nil, errors.Join(collectionstore.ErrScanningDBRowFailed, err)
		}

		rec, err := fromWire(id, data)
		if err != nil {
			e.logError(ctx, logMsgDecodeFailed, logAttrError, err.Error(), logAttrRecordID, id)
			return nil, errors.Join(collectionstore.ErrDecodingRecordFailed, err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Join(collectionstore.ErrDuplicateKey, err)
		}
		return nil, errors.Join(collectionstore.ErrQueryingRecordsFailed, err)
	}

	return records, nil
}

func (e Engine) scanOne(ctx context.Context, rows adapters.DBRows) (collectionstore.Record, error) {
	records, err := e.scanRecords(ctx, rows)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, collectionstore.ErrNotFound
	}

	return records[0], nil
}

// closeRows closes database rows and logs any errors.
func (e Engine) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if e.logger != nil {
			e.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
		if e.contextualLogger != nil {
			e.contextualLogger.WarnContext(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (e Engine) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	e.logDebug(ctx, logMsgSQLExecuted+action, logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
}

func (e Engine) logDebug(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (e Engine) logError(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

var _ collectionstore.Engine = Engine{}
