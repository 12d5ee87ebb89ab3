package mongoengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

func Test_Translate(t *testing.T) {
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name      string
		predicate cs.Predicate
		expected  bson.D
	}{
		{
			name:      "all matches everything",
			predicate: cs.All(),
			expected:  bson.D{},
		},
		{
			name:      "none matches nothing",
			predicate: cs.None(),
			expected:  bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}},
		},
		{
			name:      "equality",
			predicate: cs.Eq("CarId", "c1"),
			expected:  bson.D{{Key: "CarId", Value: bson.D{{Key: "$eq", Value: "c1"}}}},
		},
		{
			name:      "dates become BSON datetimes",
			predicate: cs.Lte("StartDate", day),
			expected: bson.D{{Key: "StartDate", Value: bson.D{
				{Key: "$lte", Value: primitive.NewDateTimeFromTime(day)},
			}}},
		},
		{
			name:      "missing matches null and absent",
			predicate: cs.Missing("ReturnDate"),
			expected:  bson.D{{Key: "ReturnDate", Value: nil}},
		},
		{
			name:      "contains is a quoted case-insensitive regex",
			predicate: cs.Contains("Make", "a.b"),
			expected: bson.D{{Key: "$expr", Value: bson.D{{Key: "$regexMatch", Value: bson.D{
				{Key: "input", Value: bson.D{{Key: "$toString", Value: "$Make"}}},
				{Key: "regex", Value: `a\.b`},
				{Key: "options", Value: "i"},
			}}}}},
		},
		{
			name:      "and",
			predicate: cs.And(cs.Eq("CarId", "c1"), cs.Missing("ReturnDate")),
			expected: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "CarId", Value: bson.D{{Key: "$eq", Value: "c1"}}}},
				bson.D{{Key: "ReturnDate", Value: nil}},
			}}},
		},
		{
			name:      "or",
			predicate: cs.Or(cs.Gt("Passengers", 4.0), cs.Ne("Make", "VW")),
			expected: bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "Passengers", Value: bson.D{{Key: "$gt", Value: 4.0}}}},
				bson.D{{Key: "Make", Value: bson.D{{Key: "$ne", Value: "VW"}}}},
			}}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			actual, err := Translate(tc.predicate)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func Test_Translate_RejectsOperatorFieldNames(t *testing.T) {
	for _, field := range []string{"$where", "", "a\x00b"} {
		_, err := Translate(cs.Eq(field, "x"))
		assert.ErrorIs(t, err, ErrInvalidFieldName, field)
	}
}

func Test_SortDocument_AppendsIDTiebreaker(t *testing.T) {
	// act
	actual := sortDocument([]cs.SortField{{Field: "StartDate", Desc: true}, {Field: "Make"}})

	// assert
	assert.Equal(t, bson.D{
		{Key: "StartDate", Value: -1},
		{Key: "Make", Value: 1},
		{Key: "_id", Value: 1},
	}, actual)

	assert.Equal(t, bson.D{{Key: "_id", Value: -1}}, sortDocument([]cs.SortField{{Field: "_id", Desc: true}}))
}

func Test_FromDocument_NormalizesDriverTypes(t *testing.T) {
	// arrange
	at := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	doc := bson.M{
		"_id":        "r1",
		"StartDate":  primitive.NewDateTimeFromTime(at),
		"Passengers": int32(5),
		"Mileage":    int64(120000),
		"Tags":       primitive.A{"a", int32(1)},
		"Owner":      bson.M{"Since": primitive.NewDateTimeFromTime(at)},
	}

	// act
	rec := fromDocument(doc)

	// assert
	assert.Equal(t, "r1", rec.ID())
	assert.Equal(t, at, rec["StartDate"])
	assert.InDelta(t, 5.0, rec["Passengers"], 0)
	assert.InDelta(t, 120000.0, rec["Mileage"], 0)
	assert.Equal(t, []any{"a", 1.0}, rec["Tags"])
	assert.Equal(t, map[string]any{"Since": at}, rec["Owner"])
}

func Test_ToDocument_ConvertsTimes(t *testing.T) {
	at := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	doc := toDocument(cs.Record{"_id": "r1", "StartDate": at, "Make": "VW"})

	assert.Equal(t, primitive.NewDateTimeFromTime(at), doc["StartDate"])
	assert.Equal(t, "VW", doc["Make"])
	assert.Equal(t, "r1", doc["_id"])
}

func Test_New_RejectsNilDatabase(t *testing.T) {
	_, err := New(nil)

	assert.ErrorIs(t, err, ErrNilDatabase)
}
