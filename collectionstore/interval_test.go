package collectionstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

func day(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func Test_Overlaps(t *testing.T) {
	testCases := []struct {
		name     string
		a        collectionstore.Interval
		b        collectionstore.Interval
		expected bool
	}{
		{"disjoint before", collectionstore.Between(day(1), day(5)), collectionstore.Between(day(6), day(9)), false},
		{"disjoint after", collectionstore.Between(day(10), day(15)), collectionstore.Between(day(1), day(9)), false},
		{"touching end to start", collectionstore.Between(day(1), day(5)), collectionstore.Between(day(5), day(9)), true},
		{"enclosing", collectionstore.Between(day(1), day(20)), collectionstore.Between(day(5), day(6)), true},
		{"enclosed", collectionstore.Between(day(12), day(13)), collectionstore.Between(day(10), day(15)), true},
		{"open end overlaps later window", collectionstore.From(day(10)), collectionstore.Between(day(20), day(25)), true},
		{"open end misses earlier window", collectionstore.From(day(10)), collectionstore.Between(day(1), day(9)), false},
		{"open start", collectionstore.Until(day(3)), collectionstore.Between(day(3), day(9)), true},
		{"both unbounded", collectionstore.Interval{}, collectionstore.Interval{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, collectionstore.Overlaps(tc.a, tc.b))
			assert.Equal(t, tc.expected, collectionstore.Overlaps(tc.b, tc.a), "overlap must be symmetric")
		})
	}
}

func Test_PointInside_And_PointOutside(t *testing.T) {
	window := collectionstore.Between(day(10), day(15))

	testCases := []struct {
		name     string
		point    time.Time
		interval collectionstore.Interval
		inside   bool
	}{
		{"on start bound", day(10), window, true},
		{"on end bound", day(15), window, true},
		{"before", day(9), window, false},
		{"after", day(16), window, false},
		{"missing start", day(1), collectionstore.Until(day(15)), true},
		{"missing end", day(30), collectionstore.From(day(10)), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.inside, collectionstore.PointInside(tc.point, tc.interval))
			assert.Equal(t, !tc.inside, collectionstore.PointOutside(tc.point, tc.interval))
		})
	}
}

func Test_PointOutsideAll_RequiresOutsideEveryInterval(t *testing.T) {
	first := collectionstore.Between(day(1), day(5))
	second := collectionstore.Between(day(10), day(15))

	assert.True(t, collectionstore.PointOutsideAll(day(7), first, second))
	assert.False(t, collectionstore.PointOutsideAll(day(3), first, second))
	assert.False(t, collectionstore.PointOutsideAll(day(12), first, second))
	assert.True(t, collectionstore.PointOutsideAll(day(12)), "no intervals means nothing to be inside of")
}

func Test_RecordInterval_WithoutEnd_IsOpenGoingForward(t *testing.T) {
	rec := collectionstore.RecordInterval(ptr(day(10)), nil)

	assert.True(t, collectionstore.Overlaps(rec, collectionstore.Between(day(20), day(21))))
	assert.False(t, collectionstore.Overlaps(rec, collectionstore.Between(day(1), day(9))))
}

func Test_DayBoundaries_UseLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}

	// 23:30 UTC on Jan 11 is already Jan 12 in Berlin
	instant := time.Date(2025, time.January, 11, 23, 30, 0, 0, time.UTC)

	start := collectionstore.StartOfDay(instant, berlin)
	end := collectionstore.EndOfDay(instant, berlin)

	assert.Equal(t, time.Date(2025, time.January, 12, 0, 0, 0, 0, berlin), start)
	assert.Equal(t, time.Date(2025, time.January, 12, 23, 59, 59, 999_000_000, berlin), end)
}

func Test_ParseDate_AcceptedShapes(t *testing.T) {
	expected := time.Date(2025, time.January, 12, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name  string
		input any
	}{
		{"date only", "2025-01-12"},
		{"rfc3339", "2025-01-12T00:00:00Z"},
		{"browser iso", "2025-01-12T00:00:00.000Z"},
		{"zone-less datetime", "2025-01-12T00:00:00"},
		{"unix millis", float64(expected.UnixMilli())},
		{"time value", expected},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := collectionstore.ParseDate(tc.input, time.UTC)

			assert.NoError(t, err)
			assert.True(t, expected.Equal(parsed), "got %s", parsed)
		})
	}

	_, err := collectionstore.ParseDate("next tuesday", time.UTC)
	assert.Error(t, err)
}
