// Package availability answers whether a resource, by default a car, is free for a period,
// by looking for bookings whose dates conflict with it.
package availability

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const (
	defaultCollection    = "Booking"
	defaultResourceField = "CarId"

	logMsgChecked     = "availability checked"
	logAttrResource   = "resource_id"
	logAttrAvailable  = "available"
	logAttrConflicts  = "conflicts"
	logAttrInside     = "inside"
	logAttrExcludedID = "excluded_id"
)

var (
	ErrNilFinder       = errors.New("finder must not be nil")
	ErrEmptyResourceID = errors.New("resource id must not be empty")
)

// Finder runs filtered reads; *collectionstore.Service and *client.Client implement it.
type Finder interface {
	Filtered(ctx context.Context, collection string, req collectionstore.FilterRequest) (collectionstore.Page, error)
}

// Resolver checks availability against one booking collection.
type Resolver struct {
	finder        Finder
	collection    string
	resourceField string
	location      *time.Location
	now           func() time.Time
	logger        collectionstore.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCollection sets the collection holding the bookings.
func WithCollection(name string) ResolverOption {
	return func(r *Resolver) { r.collection = name }
}

// WithResourceField sets the booking field referencing the booked resource.
func WithResourceField(field string) ResolverOption {
	return func(r *Resolver) { r.resourceField = field }
}

// WithLocation sets the zone whose calendar days bound a period.
func WithLocation(location *time.Location) ResolverOption {
	return func(r *Resolver) {
		if location != nil {
			r.location = location
		}
	}
}

func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(logger collectionstore.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

func NewResolver(finder Finder, options ...ResolverOption) (*Resolver, error) {
	if finder == nil {
		return nil, ErrNilFinder
	}

	r := &Resolver{
		finder:        finder,
		collection:    defaultCollection,
		resourceField: defaultResourceField,
		location:      time.UTC,
		now:           time.Now,
	}

	for _, option := range options {
		option(r)
	}

	return r, nil
}

type check struct {
	excludeID string
	outside   bool
}

// Option adjusts a single check.
type Option func(*check)

// ExcludingRecord ignores the booking with id, e.g. the one being edited.
func ExcludingRecord(id string) Option {
	return func(c *check) { c.excludeID = id }
}

// WithOutsideSemantics looks for bookings lying entirely outside the period instead of overlapping it.
func WithOutsideSemantics() Option {
	return func(c *check) { c.outside = true }
}

// IsAvailable reports whether no booking of resourceID matches the period.
//
// With both bounds the period spans from the start of the first day to the end of the last
// day. With one bound only that day is checked, and without bounds today is checked.
func (r *Resolver) IsAvailable(
	ctx context.Context,
	resourceID string,
	period collectionstore.Interval,
	options ...Option,
) (bool, error) {

	if resourceID == "" {
		return false, ErrEmptyResourceID
	}

	var c check
	for _, option := range options {
		option(&c)
	}

	req := r.request(resourceID, period, c)

	page, err := r.finder.Filtered(ctx, r.collection, req)
	if err != nil {
		return false, err
	}

	conflicts := page.Pagination.Total
	if conflicts < len(page.Results) {
		conflicts = len(page.Results)
	}
	available := conflicts == 0

	if r.logger != nil {
		r.logger.Debug(logMsgChecked,
			logAttrResource, resourceID,
			logAttrAvailable, available,
			logAttrConflicts, conflicts,
			logAttrInside, !c.outside,
			logAttrExcludedID, c.excludeID,
		)
	}

	return available, nil
}

// request builds the filtered read behind IsAvailable.
func (r *Resolver) request(resourceID string, period collectionstore.Interval, c check) collectionstore.FilterRequest {
	req := collectionstore.NewFilterRequest()
	req.InsideDateRanges = !c.outside
	req.IgnoreRecordID = c.excludeID
	req.Limit = 1
	req.Fields = []string{collectionstore.FieldID}
	req.Filters = map[string]any{r.resourceField: resourceID}

	if period.Start != nil && period.End != nil {
		window := collectionstore.Between(
			collectionstore.StartOfDay(*period.Start, r.location),
			collectionstore.EndOfDay(*period.End, r.location),
		)
		req.DateRanges = map[string]collectionstore.Interval{
			collectionstore.TrackedStartField: window,
			collectionstore.TrackedEndField:   window,
		}

		return req
	}

	day := r.now()
	switch {
	case period.Start != nil:
		day = *period.Start
	case period.End != nil:
		day = *period.End
	}

	key := collectionstore.FilterNoAvailableDate
	if c.outside {
		key = collectionstore.FilterAvailableDate
	}
	req.Filters[key] = collectionstore.StartOfDay(day, r.location)

	return req
}
