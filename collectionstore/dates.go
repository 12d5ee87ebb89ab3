package collectionstore

import (
	"errors"
	"strings"
	"time"
)

// StorageTimeLayout is a fixed-width RFC 3339 layout; values formatted with it in UTC sort chronologically as text.
const StorageTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var errUnparseableDate = errors.New("unparseable date")

var zonedLayouts = []string{
	time.RFC3339Nano,
	StorageTimeLayout,
	time.RFC3339,
}

var localLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseDate accepts time.Time, date strings as sent by browsers and form inputs,
// and numbers interpreted as Unix milliseconds. Strings without a zone are read in loc.
func ParseDate(v any, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x == nil {
			return time.Time{}, errUnparseableDate
		}
		return *x, nil
	case float64:
		return time.UnixMilli(int64(x)).In(loc), nil
	case int64:
		return time.UnixMilli(x).In(loc), nil
	case int:
		return time.UnixMilli(int64(x)).In(loc), nil
	case string:
		return parseDateString(strings.TrimSpace(x), loc)
	default:
		return time.Time{}, errUnparseableDate
	}
}

func parseDateString(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, errUnparseableDate
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errUnparseableDate
}

// StartOfDay returns 00:00:00.000 of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	y, m, d := t.In(loc).Date()

	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns 23:59:59.999 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	y, m, d := t.In(loc).Date()

	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}
