package collectionstore

import (
	"slices"
	"time"
)

// The date pair that availability and range semantics are evaluated against.
const (
	TrackedStartField = "StartDate"
	TrackedEndField   = "ReturnDate"
)

// QueryBuilder translates client requests into StoreQuery values. It performs no I/O.
type QueryBuilder struct {
	registry *Registry
	location *time.Location
}

// NewQueryBuilder creates a builder; day boundaries are computed in location (UTC when nil).
func NewQueryBuilder(registry *Registry, location *time.Location) QueryBuilder {
	if location == nil {
		location = time.UTC
	}

	return QueryBuilder{registry: registry, location: location}
}

// Build combines the id exclusion, equality, single-date, date range and search terms with AND.
func (b QueryBuilder) Build(collection string, req FilterRequest) (StoreQuery, error) {
	spec, err := b.registry.Lookup(collection)
	if err != nil {
		return StoreQuery{}, err
	}

	equality, err := b.equalityTerms(spec, req.Filters)
	if err != nil {
		return StoreQuery{}, err
	}

	singleDate, err := b.singleDateTerm(req.Filters)
	if err != nil {
		return StoreQuery{}, err
	}

	ranges, err := b.rangeTerm(req.DateRanges, req.InsideDateRanges)
	if err != nil {
		return StoreQuery{}, err
	}

	terms := []Predicate{b.ignoreRecordTerm(req.IgnoreRecordID, req.InsideDateRanges)}
	terms = append(terms, equality...)
	terms = append(terms, singleDate, ranges, b.searchTerm(spec, req.Search))

	query := b.shape(spec, req.Page, req.Limit, req.SortBy, req.Fields)
	query.Where = And(terms...)

	return query, nil
}

// BuildList shapes an unfiltered read.
func (b QueryBuilder) BuildList(collection string, req ListRequest) (StoreQuery, error) {
	spec, err := b.registry.Lookup(collection)
	if err != nil {
		return StoreQuery{}, err
	}

	query := b.shape(spec, req.Page, req.Limit, req.SortBy, req.Fields)
	query.Where = All()

	return query, nil
}

func (b QueryBuilder) shape(spec CollectionSpec, page, limit int, sortBy SortSpec, fields []string) StoreQuery {
	_, skip, limit := NormalizePaging(page, limit)

	hidden := spec.HiddenFields()
	projection := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || slices.Contains(hidden, f) || slices.Contains(projection, f) {
			continue
		}
		projection = append(projection, f)
	}

	if len(fields) > 0 && len(projection) == 0 {
		projection = append(projection, FieldID)
	}

	return StoreQuery{
		Collection: spec.Name,
		Sort:       slices.Clone([]SortField(sortBy)),
		Skip:       skip,
		Limit:      limit,
		Fields:     projection,
	}
}

// ignoreRecordTerm excludes the record when inside and selects only it when outside.
func (b QueryBuilder) ignoreRecordTerm(id string, inside bool) Predicate {
	if id == "" {
		return All()
	}

	if inside {
		return IDNotEquals(id)
	}

	return IDEquals(id)
}

func (b QueryBuilder) equalityTerms(spec CollectionSpec, filters map[string]any) ([]Predicate, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		if k == FilterNoAvailableDate || k == FilterAvailableDate {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	terms := make([]Predicate, 0, len(keys))
	for _, k := range keys {
		v := filters[k]
		if v == nil || v == "" {
			continue
		}

		switch v.(type) {
		case map[string]any, []any:
			return nil, Invalid("filter %s must be a scalar value", k)
		}

		if shape, ok := spec.Field(k); ok {
			coerced, err := shape.CoerceValue(v, b.location)
			if err != nil {
				return nil, err
			}
			v = coerced
		}

		terms = append(terms, Eq(k, v))
	}

	return terms, nil
}

// singleDateTerm handles noAvailableDate (booked on that day) and availableDate (free on that day).
// noAvailableDate wins when both are present.
func (b QueryBuilder) singleDateTerm(filters map[string]any) (Predicate, error) {
	if v, ok := filters[FilterNoAvailableDate]; ok && v != nil && v != "" {
		day, err := ParseDate(v, b.location)
		if err != nil {
			return Predicate{}, Invalid("%s must be a date", FilterNoAvailableDate)
		}

		return And(
			Lte(TrackedStartField, EndOfDay(day, b.location)),
			Or(Gte(TrackedEndField, StartOfDay(day, b.location)), Missing(TrackedEndField)),
		), nil
	}

	if v, ok := filters[FilterAvailableDate]; ok && v != nil && v != "" {
		day, err := ParseDate(v, b.location)
		if err != nil {
			return Predicate{}, Invalid("%s must be a date", FilterAvailableDate)
		}

		return Or(
			Gt(TrackedStartField, EndOfDay(day, b.location)),
			Lt(TrackedEndField, StartOfDay(day, b.location)),
		), nil
	}

	return All(), nil
}

func (b QueryBuilder) rangeTerm(ranges map[string]Interval, inside bool) (Predicate, error) {
	if len(ranges) == 0 {
		return All(), nil
	}

	fields := make([]string, 0, len(ranges))
	for field, iv := range ranges {
		if iv.IsInverted() {
			return Predicate{}, Invalid("date range for %s starts after it ends", field)
		}
		fields = append(fields, field)
	}
	slices.Sort(fields)

	window, hasWindow := trackedWindow(ranges)
	if hasWindow && window.IsInverted() {
		return Predicate{}, Invalid("%s.start lies after %s.end", TrackedStartField, TrackedEndField)
	}

	if !inside {
		if !hasWindow {
			return Predicate{}, Invalid("outside date ranges require %s.start and %s.end", TrackedStartField, TrackedEndField)
		}

		return And(
			Or(Lt(TrackedStartField, *window.Start), Gt(TrackedStartField, *window.End)),
			Or(
				Lt(TrackedEndField, *window.Start),
				Gt(TrackedEndField, *window.End),
				// open-ended records run forever, so only those starting after the window stay outside
				And(Missing(TrackedEndField), Gt(TrackedStartField, *window.End)),
			),
		), nil
	}

	alternatives := make([]Predicate, 0, len(fields)+1)
	for _, field := range fields {
		iv := ranges[field]
		if iv.IsUnbounded() {
			continue
		}

		var bounds []Predicate
		if iv.Start != nil {
			bounds = append(bounds, Gte(field, *iv.Start))
		}
		if iv.End != nil {
			bounds = append(bounds, Lte(field, *iv.End))
		}
		alternatives = append(alternatives, And(bounds...))
	}

	if hasWindow {
		alternatives = append(alternatives, And(
			Lte(TrackedStartField, *window.End),
			Or(Gte(TrackedEndField, *window.Start), Missing(TrackedEndField)),
		))
	}

	if len(alternatives) == 0 {
		return All(), nil
	}

	return Or(alternatives...), nil
}

// trackedWindow spans from the start bound of the start field to the end bound of the end field.
func trackedWindow(ranges map[string]Interval) (Interval, bool) {
	start, end := ranges[TrackedStartField].Start, ranges[TrackedEndField].End
	if start == nil || end == nil {
		return Interval{}, false
	}

	return Interval{Start: start, End: end}, true
}

func (b QueryBuilder) searchTerm(spec CollectionSpec, search string) Predicate {
	if search == "" {
		return All()
	}

	fields := spec.SearchableFields()
	if len(fields) == 0 {
		return All()
	}

	alternatives := make([]Predicate, 0, len(fields))
	for _, f := range fields {
		alternatives = append(alternatives, Contains(f, search))
	}

	return Or(alternatives...)
}
