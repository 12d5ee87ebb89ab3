package collectionstore

import (
	"time"
)

// Interval is a closed time range; a nil bound is unbounded in that direction.
type Interval struct {
	Start *time.Time
	End   *time.Time
}

// Between returns the closed interval [start, end].
func Between(start, end time.Time) Interval {
	return Interval{Start: &start, End: &end}
}

// From returns an interval without an upper bound.
func From(start time.Time) Interval {
	return Interval{Start: &start}
}

// Until returns an interval without a lower bound.
func Until(end time.Time) Interval {
	return Interval{End: &end}
}

// RecordInterval builds the interval covered by a stored record.
// A record without an end date stays open going forward.
func RecordInterval(start, end *time.Time) Interval {
	return Interval{Start: start, End: end}
}

// IsUnbounded reports whether neither bound is set.
func (i Interval) IsUnbounded() bool {
	return i.Start == nil && i.End == nil
}

// IsInverted reports whether both bounds are set and start lies after end.
func (i Interval) IsInverted() bool {
	return i.Start != nil && i.End != nil && i.Start.After(*i.End)
}

// Overlaps reports whether a and b share at least one instant. Touching bounds overlap.
func Overlaps(a, b Interval) bool {
	if a.End != nil && b.Start != nil && a.End.Before(*b.Start) {
		return false
	}

	if b.End != nil && a.Start != nil && b.End.Before(*a.Start) {
		return false
	}

	return true
}

// PointInside reports start <= t <= end with missing bounds treated as unbounded.
func PointInside(t time.Time, i Interval) bool {
	if i.Start != nil && t.Before(*i.Start) {
		return false
	}

	if i.End != nil && t.After(*i.End) {
		return false
	}

	return true
}

// PointOutside is the negation of PointInside.
func PointOutside(t time.Time, i Interval) bool {
	return !PointInside(t, i)
}

// PointOutsideAll reports whether t lies outside the union of all intervals.
func PointOutsideAll(t time.Time, intervals ...Interval) bool {
	for _, i := range intervals {
		if PointInside(t, i) {
			return false
		}
	}

	return true
}

type intervalWire struct {
	Start any `json:"start,omitempty"`
	End   any `json:"end,omitempty"`
}

// MarshalJSON writes {"start": ..., "end": ...} with RFC 3339 timestamps, omitting missing bounds.
func (i Interval) MarshalJSON() ([]byte, error) {
	w := intervalWire{}
	if i.Start != nil {
		w.Start = i.Start.Format(time.RFC3339Nano)
	}
	if i.End != nil {
		w.End = i.End.Format(time.RFC3339Nano)
	}

	return json.Marshal(w)
}

// UnmarshalJSON accepts any date representation understood by ParseDate; null and "" leave a bound open.
func (i *Interval) UnmarshalJSON(data []byte) error {
	var w intervalWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	start, err := optionalDate(w.Start)
	if err != nil {
		return Invalid("invalid date range start: %v", w.Start)
	}

	end, err := optionalDate(w.End)
	if err != nil {
		return Invalid("invalid date range end: %v", w.End)
	}

	i.Start, i.End = start, end

	return nil
}

func optionalDate(v any) (*time.Time, error) {
	if v == nil || v == "" {
		return nil, nil
	}

	t, err := ParseDate(v, time.UTC)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
