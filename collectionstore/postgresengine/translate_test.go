package postgresengine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

func renderWhere(t *testing.T, p cs.Predicate) (string, []any) {
	expr, err := translate(p)
	require.NoError(t, err)

	sqlQuery, args, err := goqu.Dialect(dialectPostgres).From(defaultTableName).Prepared(true).Where(expr).ToSQL()
	require.NoError(t, err)

	return sqlQuery, args
}

func Test_Translate(t *testing.T) {
	endOfDay := time.Date(2025, 1, 12, 23, 59, 59, int(999*time.Millisecond), time.UTC)

	testCases := []struct {
		name         string
		predicate    cs.Predicate
		expectedSQL  string
		expectedArgs []any
	}{
		{"string equality", cs.Eq("CarId", "c1"), `(data->>($1::text)) = $2::text`, []any{"CarId", "c1"}},
		{"string inequality", cs.Ne("CarId", "c1"), `(data->>($1::text)) IS DISTINCT FROM $2::text`, []any{"CarId", "c1"}},
		{"date as utc text", cs.Lte("StartDate", endOfDay), `(data->>($1::text)) <= $2::text`, []any{"StartDate", "2025-01-12T23:59:59.999Z"}},
		{"number as jsonb", cs.Gte("Passengers", 5), `(data->($1::text)) >= $2::jsonb`, []any{"Passengers", "5"}},
		{"boolean as jsonb", cs.Eq("Availability", true), `(data->($1::text)) = $2::jsonb`, []any{"Availability", "true"}},
		{"missing", cs.Missing("ReturnDate"), `(data->>($1::text)) IS NULL`, []any{"ReturnDate"}},
		{"contains escapes wildcards", cs.Contains("Make", "50%_"), `(data->>($1::text)) ILIKE $2`, []any{"Make", `%50\%\_%`}},
		{"id equality uses the id column", cs.IDEquals("b1"), `"id" = $1`, []any{"b1"}},
		{"id never missing", cs.Missing(cs.FieldID), `FALSE`, nil},
		{"none", cs.None(), `FALSE`, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sqlQuery, args := renderWhere(t, tc.predicate)

			assert.Contains(t, sqlQuery, tc.expectedSQL)
			if len(tc.expectedArgs) == 0 {
				assert.Empty(t, args)
				return
			}
			assert.Equal(t, tc.expectedArgs, args)
		})
	}
}

func Test_Translate_NestsAndOr(t *testing.T) {
	p := cs.And(
		cs.Eq("CarId", "c1"),
		cs.Or(cs.Gte("ReturnDate", "2025-01-12T00:00:00.000Z"), cs.Missing("ReturnDate")),
	)

	sqlQuery, args := renderWhere(t, p)

	assert.Contains(t, sqlQuery, " AND ")
	assert.Contains(t, sqlQuery, " OR ")
	assert.Equal(t, []any{"CarId", "c1", "ReturnDate", "2025-01-12T00:00:00.000Z", "ReturnDate"}, args)
}

func Test_BuildFindQuery(t *testing.T) {
	e := Engine{tableName: "carhire_records"}

	sqlQuery, args, err := e.buildFindQuery(cs.StoreQuery{
		Collection: "Booking",
		Where:      cs.Eq("CarId", "c1"),
		Sort:       []cs.SortField{{Field: "StartDate", Desc: true}, {Field: cs.FieldID}},
		Skip:       20,
		Limit:      10,
	})

	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `SELECT "id", "data" FROM "carhire_records"`)
	assert.Contains(t, sqlQuery, `"collection" = $1`)
	assert.Contains(t, sqlQuery, `(data->($`)
	assert.Contains(t, sqlQuery, `DESC NULLS LAST`)
	assert.Contains(t, sqlQuery, `"id" ASC, "seq" ASC`)
	assert.Contains(t, sqlQuery, "LIMIT")
	assert.Contains(t, sqlQuery, "OFFSET")
	require.GreaterOrEqual(t, len(args), 3)
	assert.Equal(t, []any{"Booking", "CarId", "c1"}, args[:3])
}

func Test_BuildCountQuery(t *testing.T) {
	e := Engine{tableName: defaultTableName}

	sqlQuery, args, err := e.buildCountQuery("Vehicle", cs.All())

	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `COUNT(*) AS "cnt"`)
	assert.Contains(t, sqlQuery, "TRUE")
	assert.Equal(t, []any{"Vehicle"}, args)
}

func Test_Wire_RoundTripsDatesAsUTCText(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	rec := cs.Record{
		cs.FieldID:   "b1",
		"StartDate":  time.Date(2025, 1, 12, 10, 0, 0, 0, berlin),
		"Passengers": 5,
		"Notes":      nil,
	}

	data, err := toWire(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"StartDate":"2025-01-12T09:00:00.000Z","Passengers":5,"Notes":null}`, string(data))

	decoded, err := fromWire("b1", data)
	require.NoError(t, err)
	assert.Equal(t, cs.Record{
		cs.FieldID:   "b1",
		"StartDate":  "2025-01-12T09:00:00.000Z",
		"Passengers": 5.0,
		"Notes":      nil,
	}, decoded)
}

func Test_IsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("23505")))
}

func Test_IndexName_FitsPostgresLimit(t *testing.T) {
	e := Engine{tableName: defaultTableName}

	assert.Equal(t, "records_booking_bookingid_uniq", e.indexName("Booking", "BookingId"))

	long := e.indexName(strings.Repeat("Collection", 5), strings.Repeat("Field", 5))
	assert.Len(t, long, indexNameMaxLength)
}

func Test_Constructors_RejectNilConnections(t *testing.T) {
	_, err := NewEngineFromPGXPool(nil)
	assert.ErrorIs(t, err, cs.ErrNilDatabaseConnection)

	_, err = NewEngineFromSQLDB(nil)
	assert.ErrorIs(t, err, cs.ErrNilDatabaseConnection)

	_, err = NewEngineFromSQLX(nil)
	assert.ErrorIs(t, err, cs.ErrNilDatabaseConnection)

	_, err = NewEngineFromPGXPoolWithReplica(nil, nil)
	assert.ErrorIs(t, err, cs.ErrNilDatabaseConnection)
}
