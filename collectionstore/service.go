package collectionstore

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/dynamic-collections-go/retry"
)

const (
	defaultCreateAttempts = 3

	opFind   = "find"
	opCount  = "count"
	opGet    = "get"
	opInsert = "insert"
	opUpdate = "update"
	opDelete = "delete"
)

// Service is the generic collection store: it validates requests against the Registry,
// builds queries and delegates persistence to an Engine. It is safe for concurrent use
// when the Engine is.
type Service struct {
	registry         *Registry
	engine           Engine
	builder          QueryBuilder
	location         *time.Location
	now              func() time.Time
	newID            func() (string, error)
	createAttempts   int
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewService creates a Service over engine for the collections in registry.
func NewService(registry *Registry, engine Engine, options ...Option) (*Service, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	if engine == nil {
		return nil, ErrNilEngine
	}

	s := &Service{
		registry:       registry,
		engine:         engine,
		location:       time.UTC,
		now:            time.Now,
		newID:          newUUIDv7,
		createAttempts: defaultCreateAttempts,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	s.builder = NewQueryBuilder(registry, s.location)

	return s, nil
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// Prepare lets the engine create indexes for the registered collections.
func (s *Service) Prepare(ctx context.Context) error {
	if err := s.engine.Prepare(ctx, s.registry.Specs()); err != nil {
		return &StoreError{Op: "prepare", Err: err}
	}

	return nil
}

// Builder returns the query builder bound to this service's registry and location.
func (s *Service) Builder() QueryBuilder {
	return s.builder
}

// Collections lists the registered collection names.
func (s *Service) Collections() []string {
	return s.registry.Names()
}

// Schema returns the visible field shapes of collection.
func (s *Service) Schema(collection string) ([]FieldShape, error) {
	spec, err := s.registry.Lookup(collection)
	if err != nil {
		return nil, &NotFoundError{Kind: KindModel, Name: collection, Available: s.registry.Names()}
	}

	return spec.VisibleShapes(), nil
}

// Filtered returns one page of records matching req.
func (s *Service) Filtered(ctx context.Context, collection string, req FilterRequest) (Page, error) {
	var page Page

	err := s.observe(ctx, operationFiltered, collection, func(ctx context.Context) (int, error) {
		query, err := s.builder.Build(collection, req)
		if err != nil {
			return 0, err
		}

		s.logQuery(ctx, query)

		page, err = s.fetchPage(ctx, query, req.Page)

		return len(page.Results), err
	})

	return page, err
}

// List returns one page of records without filtering.
func (s *Service) List(ctx context.Context, collection string, req ListRequest) (Page, error) {
	var page Page

	err := s.observe(ctx, operationList, collection, func(ctx context.Context) (int, error) {
		query, err := s.builder.BuildList(collection, req)
		if err != nil {
			return 0, err
		}

		page, err = s.fetchPage(ctx, query, req.Page)

		return len(page.Results), err
	})

	return page, err
}

func (s *Service) fetchPage(ctx context.Context, query StoreQuery, requestedPage int) (Page, error) {
	spec, err := s.registry.Lookup(query.Collection)
	if err != nil {
		return Page{}, err
	}

	records, err := s.engine.Find(ctx, query)
	if err != nil {
		return Page{}, s.storeError(opFind, err)
	}

	total, err := s.engine.Count(ctx, query.Collection, query.Where)
	if err != nil {
		return Page{}, s.storeError(opCount, err)
	}

	results := make([]Record, 0, len(records))
	for _, rec := range records {
		results = append(results, s.present(spec, rec))
	}

	page, _, _ := NormalizePaging(requestedPage, query.Limit)

	return Page{Results: results, Pagination: NewPagination(total, page, query.Limit)}, nil
}

// Get returns one record by id.
func (s *Service) Get(ctx context.Context, collection, id string) (Record, error) {
	var rec Record

	err := s.observe(ctx, operationGet, collection, func(ctx context.Context) (int, error) {
		spec, err := s.registry.Lookup(collection)
		if err != nil {
			return 0, err
		}

		if id == "" {
			return 0, &NotFoundError{Kind: KindDocument, Name: id}
		}

		stored, err := s.engine.Get(ctx, collection, id)
		if err != nil {
			return 0, s.storeError(opGet, err)
		}

		rec = s.present(spec, stored)

		return 1, nil
	})

	return rec, err
}

// FindOne returns the first record matching where, hidden fields included.
// It is meant for in-process consumers such as authentication and is never exposed over the API.
func (s *Service) FindOne(ctx context.Context, collection string, where Predicate) (Record, error) {
	spec, err := s.registry.Lookup(collection)
	if err != nil {
		return nil, err
	}

	records, err := s.engine.Find(ctx, StoreQuery{Collection: collection, Where: where, Limit: 1})
	if err != nil {
		return nil, s.storeError(opFind, err)
	}

	if len(records) == 0 {
		return nil, &NotFoundError{Kind: KindDocument}
	}

	return hydrate(spec, records[0], s.location), nil
}

// Create validates input, runs the collection's create hooks and inserts the record.
// A unique key collision is retried with freshly run hooks.
func (s *Service) Create(ctx context.Context, collection string, input Record) (Record, error) {
	var created Record

	err := s.observe(ctx, operationCreate, collection, func(ctx context.Context) (int, error) {
		spec, err := s.registry.Lookup(collection)
		if err != nil {
			return 0, err
		}

		base, err := spec.Coerce(input.Without(FieldID, FieldCreatedAt, FieldUpdatedAt), s.location)
		if err != nil {
			return 0, err
		}

		options := []retry.Option{retry.On(ErrDuplicateKey), retry.WithMaxAttempts(s.createAttempts)}
		if s.metricsCollector != nil {
			options = append(options, retry.WithMetrics(s.metricsCollector, operationCreate))
		}

		_, err = retry.Do(ctx, func(ctx context.Context) error {
			rec, err := s.prepareCreate(ctx, spec, base)
			if err != nil {
				return err
			}

			if err := s.engine.Insert(ctx, collection, rec); err != nil {
				return s.storeError(opInsert, err)
			}

			created = s.present(spec, rec)

			return nil
		}, options...)
		if err != nil {
			return 0, err
		}

		return 1, nil
	})

	return created, err
}

func (s *Service) prepareCreate(ctx context.Context, spec CollectionSpec, base Record) (Record, error) {
	now := s.now()
	rec := base.Clone()

	for _, f := range spec.Fields {
		if f.Default == nil {
			continue
		}
		if v, ok := rec[f.Name]; !ok || v == nil {
			rec[f.Name] = f.Default(now)
		}
	}

	for _, hook := range spec.BeforeCreate {
		if err := hook(ctx, s, rec); err != nil {
			return nil, err
		}
	}

	if err := validateRequired(spec, rec); err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, &StoreError{Op: "mint id", Err: err}
	}

	rec[FieldID] = id
	rec[FieldCreatedAt] = now
	rec[FieldUpdatedAt] = now

	return rec, nil
}

func validateRequired(spec CollectionSpec, rec Record) error {
	var missing []string
	for _, f := range spec.Fields {
		if !f.Required {
			continue
		}
		if v, ok := rec[f.Name]; !ok || v == nil || v == "" {
			missing = append(missing, f.Name)
		}
	}

	if len(missing) > 0 {
		return Invalid("%s validation failed: missing required fields %s", spec.Name, strings.Join(missing, ", "))
	}

	return nil
}

// Update merges patch into the record with id and returns the updated record.
func (s *Service) Update(ctx context.Context, collection, id string, patch Record) (Record, error) {
	var updated Record

	err := s.observe(ctx, operationUpdate, collection, func(ctx context.Context) (int, error) {
		spec, err := s.registry.Lookup(collection)
		if err != nil {
			return 0, err
		}

		if id == "" {
			return 0, &NotFoundError{Kind: KindDocument}
		}

		changes, err := spec.Coerce(patch.Without(FieldID, FieldCreatedAt, FieldUpdatedAt), s.location)
		if err != nil {
			return 0, err
		}

		for _, hook := range spec.BeforeUpdate {
			if err := hook(ctx, s, changes); err != nil {
				return 0, err
			}
		}

		changes[FieldUpdatedAt] = s.now()

		stored, err := s.engine.Update(ctx, collection, id, changes)
		if err != nil {
			return 0, s.storeError(opUpdate, err)
		}

		updated = s.present(spec, stored)

		return 1, nil
	})

	return updated, err
}

// Delete removes the record with id and returns it.
func (s *Service) Delete(ctx context.Context, collection, id string) (Record, error) {
	var deleted Record

	err := s.observe(ctx, operationDelete, collection, func(ctx context.Context) (int, error) {
		spec, err := s.registry.Lookup(collection)
		if err != nil {
			return 0, err
		}

		if id == "" {
			return 0, &NotFoundError{Kind: KindDocument}
		}

		stored, err := s.engine.Delete(ctx, collection, id)
		if err != nil {
			return 0, s.storeError(opDelete, err)
		}

		deleted = s.present(spec, stored)

		return 1, nil
	})

	return deleted, err
}

// Count implements HookEnv.
func (s *Service) Count(ctx context.Context, collection string, where Predicate) (int, error) {
	n, err := s.engine.Count(ctx, collection, where)
	if err != nil {
		return 0, s.storeError(opCount, err)
	}

	return n, nil
}

// Now implements HookEnv.
func (s *Service) Now() time.Time {
	return s.now()
}

// Location implements HookEnv.
func (s *Service) Location() *time.Location {
	return s.location
}

// Close releases the engine.
func (s *Service) Close() error {
	return s.engine.Close()
}

func (s *Service) storeError(op string, err error) error {
	var notFound *NotFoundError
	var invalid *ValidationError

	switch {
	case errors.As(err, &notFound), errors.As(err, &invalid):
		return err
	case errors.Is(err, ErrNotFound):
		return &NotFoundError{Kind: KindDocument}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &StoreError{Op: op, Err: err}
	}
}

// present converts stored values to their declared types and strips hidden fields.
func (s *Service) present(spec CollectionSpec, rec Record) Record {
	out := hydrate(spec, rec, s.location)
	for _, f := range spec.HiddenFields() {
		delete(out, f)
	}

	return out
}

// hydrate restores Go types for values that engines return in their wire form, e.g. dates as strings.
func hydrate(spec CollectionSpec, rec Record, loc *time.Location) Record {
	out := rec.Clone()

	for _, f := range spec.Fields {
		v, ok := out[f.Name]
		if !ok || v == nil {
			continue
		}
		if coerced, err := f.CoerceValue(v, loc); err == nil && coerced != nil {
			out[f.Name] = coerced
		}
	}

	for _, f := range []string{FieldCreatedAt, FieldUpdatedAt} {
		if v, ok := out[f]; ok && v != nil {
			if t, err := ParseDate(v, loc); err == nil {
				out[f] = t
			}
		}
	}

	return out
}

// shapeNames is used in debug logs.
func shapeNames(fields []SortField) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Desc {
			names = append(names, "-"+f.Field)
		} else {
			names = append(names, f.Field)
		}
	}

	return slices.Clip(names)
}
