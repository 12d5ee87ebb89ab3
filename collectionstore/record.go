package collectionstore

import (
	"strconv"
	"time"
)

// Reserved record keys maintained by the store.
const (
	FieldID        = "_id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Record is a single document of a collection, keyed by field name.
// Values are string, float64, bool, time.Time or nil once they went through the Service.
type Record map[string]any

// ID returns the store-minted identifier or an empty string.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}

	return c
}

// Without returns a copy that lacks the given fields.
func (r Record) Without(fields ...string) Record {
	c := r.Clone()
	for _, f := range fields {
		delete(c, f)
	}

	return c
}

// Project returns a copy restricted to fields; the id is always kept.
// An empty field list returns a full copy.
func (r Record) Project(fields []string) Record {
	if len(fields) == 0 {
		return r.Clone()
	}

	c := make(Record, len(fields)+1)
	if id, ok := r[FieldID]; ok {
		c[FieldID] = id
	}

	for _, f := range fields {
		if v, ok := r[f]; ok {
			c[f] = v
		}
	}

	return c
}

// Time returns the field as time.Time if it holds one.
func (r Record) Time(field string) (time.Time, bool) {
	t, ok := r[field].(time.Time)
	return t, ok
}

// Text renders a scalar field as a string; missing and nil yield "".
func (r Record) Text(field string) string {
	return ScalarText(r[field])
}

// ScalarText renders scalar values the way they are matched by free-text search.
func ScalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return ""
	}
}
