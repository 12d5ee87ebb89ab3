// Package memengine provides an in-memory collectionstore.Engine that evaluates predicates with
// collectionstore.Predicate.Matches. It backs tests and the memory store of the server binary.
package memengine

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const (
	logMsgOperation    = "memengine operation: "
	logAttrCollection  = "collection"
	logAttrRecordCount = "record_count"
)

var ErrMissingID = errors.New("record has no id")

type collection struct {
	order   []string
	records map[string]collectionstore.Record
}

// Engine keeps records per collection in insertion order behind a single RWMutex.
type Engine struct {
	mu          sync.RWMutex
	collections map[string]*collection
	unique      map[string][]string
	logger      collectionstore.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger that receives one debug line per operation.
func WithLogger(logger collectionstore.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func New(options ...Option) *Engine {
	e := &Engine{
		collections: make(map[string]*collection),
		unique:      make(map[string][]string),
	}

	for _, option := range options {
		option(e)
	}

	return e
}

// Prepare records the unique fields of every spec.
func (e *Engine) Prepare(_ context.Context, specs []collectionstore.CollectionSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, spec := range specs {
		e.unique[spec.Name] = spec.UniqueFields()
	}

	return nil
}

func (e *Engine) Find(ctx context.Context, query collectionstore.StoreQuery) ([]collectionstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	matches := e.match(query.Collection, query.Where)
	e.mu.RUnlock()

	if len(query.Sort) > 0 {
		slices.SortStableFunc(matches, func(a, b collectionstore.Record) int {
			return compareBy(a, b, query.Sort)
		})
	}

	if query.Skip > 0 {
		if query.Skip >= len(matches) {
			matches = nil
		} else {
			matches = matches[query.Skip:]
		}
	}

	if query.Limit > 0 && len(matches) > query.Limit {
		matches = matches[:query.Limit]
	}

	out := make([]collectionstore.Record, 0, len(matches))
	for _, rec := range matches {
		out = append(out, rec.Project(query.Fields))
	}

	e.log("find", query.Collection, len(out))

	return out, nil
}

func (e *Engine) Count(ctx context.Context, name string, where collectionstore.Predicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.match(name, where)), nil
}

// match returns clones of matching records in insertion order. Callers hold the read lock.
func (e *Engine) match(name string, where collectionstore.Predicate) []collectionstore.Record {
	c, ok := e.collections[name]
	if !ok {
		return nil
	}

	var out []collectionstore.Record
	for _, id := range c.order {
		rec := c.records[id]
		if where.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}

	return out
}

func (e *Engine) Get(ctx context.Context, name, id string) (collectionstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.collections[name]
	if !ok {
		return nil, collectionstore.ErrNotFound
	}

	rec, ok := c.records[id]
	if !ok {
		return nil, collectionstore.ErrNotFound
	}

	return rec.Clone(), nil
}

func (e *Engine) Insert(ctx context.Context, name string, record collectionstore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := record.ID()
	if id == "" {
		return ErrMissingID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.collection(name)
	if _, exists := c.records[id]; exists {
		return collectionstore.ErrDuplicateKey
	}

	if err := e.checkUnique(name, c, "", record); err != nil {
		return err
	}

	c.records[id] = record.Clone()
	c.order = append(c.order, id)

	e.log("insert", name, 1)

	return nil
}

func (e *Engine) Update(ctx context.Context, name, id string, patch collectionstore.Record) (collectionstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.collections[name]
	if !ok {
		return nil, collectionstore.ErrNotFound
	}

	stored, ok := c.records[id]
	if !ok {
		return nil, collectionstore.ErrNotFound
	}

	merged := stored.Clone()
	for k, v := range patch {
		if k == collectionstore.FieldID {
			continue
		}
		merged[k] = v
	}

	if err := e.checkUnique(name, c, id, merged); err != nil {
		return nil, err
	}

	c.records[id] = merged

	e.log("update", name, 1)

	return merged.Clone(), nil
}

func (e *Engine) Delete(ctx context.Context, name, id string) (collectionstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.collections[name]
	if !ok {
		return nil, collectionstore.ErrNotFound
	}

	stored, ok := c.records[id]
	if !ok {
		return nil, collectionstore.ErrNotFound
	}

	delete(c.records, id)
	c.order = slices.DeleteFunc(c.order, func(x string) bool { return x == id })

	e.log("delete", name, 1)

	return stored, nil
}

func (e *Engine) Close() error {
	return nil
}

func (e *Engine) collection(name string) *collection {
	c, ok := e.collections[name]
	if !ok {
		c = &collection{records: make(map[string]collectionstore.Record)}
		e.collections[name] = c
	}

	return c
}

// checkUnique rejects candidate when another record shares a value of a unique field. Nil values never collide.
func (e *Engine) checkUnique(name string, c *collection, selfID string, candidate collectionstore.Record) error {
	for _, field := range e.unique[name] {
		v, ok := candidate[field]
		if !ok || v == nil {
			continue
		}

		for id, other := range c.records {
			if id == selfID {
				continue
			}
			if cmp, ok := collectionstore.CompareValues(other[field], v); ok && cmp == 0 {
				return collectionstore.ErrDuplicateKey
			}
		}
	}

	return nil
}

func (e *Engine) log(action, name string, count int) {
	if e.logger != nil {
		e.logger.Debug(logMsgOperation+action, logAttrCollection, name, logAttrRecordCount, count)
	}
}

// compareBy orders by the sort keys in turn; missing values sort before present ones.
func compareBy(a, b collectionstore.Record, keys []collectionstore.SortField) int {
	for _, key := range keys {
		c := compareField(a[key.Field], b[key.Field])
		if key.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}

	return 0
}

func compareField(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if c, ok := collectionstore.CompareValues(a, b); ok {
		return c
	}

	return 0
}

var _ collectionstore.Engine = (*Engine)(nil)
