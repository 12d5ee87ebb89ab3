package collectionstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

func Test_Predicate_Matches(t *testing.T) {
	rec := cs.Record{
		cs.FieldID:   "r1",
		"CarId":      "car-1",
		"Passengers": float64(5),
		"StartDate":  day(10),
		"Make":       "Ford",
		"Available":  true,
	}

	testCases := []struct {
		name     string
		build    func() cs.Predicate
		expected bool
	}{
		{"all", cs.All, true},
		{"none", cs.None, false},
		{"eq string", func() cs.Predicate { return cs.Eq("CarId", "car-1") }, true},
		{"eq type mismatch", func() cs.Predicate { return cs.Eq("Passengers", "5") }, false},
		{"ne type mismatch", func() cs.Predicate { return cs.Ne("Passengers", "5") }, true},
		{"ne on missing field", func() cs.Predicate { return cs.Ne("ReturnDate", day(1)) }, true},
		{"gte on missing field", func() cs.Predicate { return cs.Gte("ReturnDate", day(1)) }, false},
		{"number comparison", func() cs.Predicate { return cs.Gt("Passengers", 4) }, true},
		{"date comparison", func() cs.Predicate { return cs.Lte("StartDate", day(10)) }, true},
		{"bool equality", func() cs.Predicate { return cs.Eq("Available", true) }, true},
		{"missing", func() cs.Predicate { return cs.Missing("ReturnDate") }, true},
		{"not missing", func() cs.Predicate { return cs.Missing("StartDate") }, false},
		{"contains case-insensitive", func() cs.Predicate { return cs.Contains("Make", "fO") }, true},
		{"contains on number", func() cs.Predicate { return cs.Contains("Passengers", "5") }, true},
		{"contains is literal", func() cs.Predicate { return cs.Contains("Make", "F.rd") }, false},
		{"id equals", func() cs.Predicate { return cs.IDEquals("r1") }, true},
		{"id not equals", func() cs.Predicate { return cs.IDNotEquals("r1") }, false},
		{"and", func() cs.Predicate { return cs.And(cs.Eq("Make", "Ford"), cs.Missing("ReturnDate")) }, true},
		{"or", func() cs.Predicate { return cs.Or(cs.Eq("Make", "Audi"), cs.Eq("CarId", "car-1")) }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.build().Matches(rec))
		})
	}
}

func Test_And_Or_Simplify(t *testing.T) {
	single := cs.Eq("A", "x")

	assert.True(t, cs.And().IsAll())
	assert.True(t, cs.And(cs.All(), cs.All()).IsAll())
	assert.Equal(t, single, cs.And(cs.All(), single))
	assert.Equal(t, cs.KindNone, cs.And(single, cs.None()).Kind())
	assert.Equal(t, cs.KindNone, cs.Or().Kind())
	assert.True(t, cs.Or(single, cs.All()).IsAll())
	assert.Equal(t, `and(eq(A,"x"),eq(B,"y"),eq(C,"z"))`, cs.And(cs.And(single, cs.Eq("B", "y")), cs.Eq("C", "z")).String())
}
