package collectionstore

import (
	"bytes"
	"errors"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// Reserved equality filter keys that select the single-date availability branch.
const (
	FilterNoAvailableDate = "noAvailableDate"
	FilterAvailableDate   = "availableDate"
)

// FilterRequest is the client's description of a filtered read.
type FilterRequest struct {
	Filters          map[string]any      `json:"filters,omitempty"`
	DateRanges       map[string]Interval `json:"dateRanges,omitempty"`
	InsideDateRanges bool                `json:"insideDateRanges"`
	Search           string              `json:"search,omitempty"`
	Page             int                 `json:"page,omitempty"`
	Limit            int                 `json:"limit,omitempty"`
	SortBy           SortSpec            `json:"sortBy,omitempty"`
	Fields           []string            `json:"fields,omitempty"`
	IgnoreRecordID   string              `json:"ignoreRecord,omitempty"`
}

// NewFilterRequest returns a request with inside semantics for date ranges.
func NewFilterRequest() FilterRequest {
	return FilterRequest{InsideDateRanges: true}
}

type filterRequestWire struct {
	Filters          map[string]any      `json:"filters"`
	EqualityFilters  map[string]any      `json:"equalityFilters"`
	DateRanges       map[string]Interval `json:"dateRanges"`
	InsideDateRanges *bool               `json:"insideDateRanges"`
	Search           string              `json:"search"`
	Page             int                 `json:"page"`
	Limit            int                 `json:"limit"`
	SortBy           SortSpec            `json:"sortBy"`
	Fields           []string            `json:"fields"`
	IgnoreRecord     string              `json:"ignoreRecord"`
	IgnoreRecordID   string              `json:"ignoreRecordId"`
}

// UnmarshalJSON applies the defaults of an absent field and accepts the
// equalityFilters and ignoreRecordId aliases.
func (r *FilterRequest) UnmarshalJSON(data []byte) error {
	var w filterRequestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	filters := w.Filters
	if len(w.EqualityFilters) > 0 {
		if filters == nil {
			filters = make(map[string]any, len(w.EqualityFilters))
		}
		for k, v := range w.EqualityFilters {
			if _, set := filters[k]; !set {
				filters[k] = v
			}
		}
	}

	*r = FilterRequest{
		Filters:          filters,
		DateRanges:       w.DateRanges,
		InsideDateRanges: w.InsideDateRanges == nil || *w.InsideDateRanges,
		Search:           w.Search,
		Page:             w.Page,
		Limit:            w.Limit,
		SortBy:           w.SortBy,
		Fields:           w.Fields,
		IgnoreRecordID:   w.IgnoreRecord,
	}

	if r.IgnoreRecordID == "" {
		r.IgnoreRecordID = w.IgnoreRecordID
	}

	return nil
}

// ListRequest is an unfiltered paged read.
type ListRequest struct {
	Page   int      `json:"page,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	SortBy SortSpec `json:"sortBy,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

/***** Sorting *****/

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// SortSpec is an ordered list of sort keys. On the wire it is a JSON object
// {"field": "asc"|"desc"} whose key order is significant.
type SortSpec []SortField

// UnmarshalJSON reads the object in document order; any direction other than "desc" sorts ascending.
func (s *SortSpec) UnmarshalJSON(data []byte) error {
	iter := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowIterator(data)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnIterator(iter)

	if iter.WhatIsNext() == jsoniter.NilValue {
		iter.Skip()
		*s = nil
		return nil
	}

	var out SortSpec
	iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		direction := ""
		if it.WhatIsNext() == jsoniter.StringValue {
			direction = it.ReadString()
		} else {
			it.Skip()
		}
		out = append(out, SortField{Field: field, Desc: direction == "desc"})
		return true
	})

	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return iter.Error
	}

	*s = out

	return nil
}

// MarshalJSON writes the keys in order.
func (s SortSpec) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Field)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		if f.Desc {
			buf.WriteString(`:"desc"`)
		} else {
			buf.WriteString(`:"asc"`)
		}
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

/***** StoreQuery *****/

// StoreQuery is what an Engine executes. Limit 0 means unlimited.
type StoreQuery struct {
	Collection string
	Where      Predicate
	Sort       []SortField
	Skip       int
	Limit      int
	Fields     []string
}

/***** Paging *****/

// Pagination describes the page returned together with the total match count.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Limit int `json:"limit"`
}

// Page is one page of results.
type Page struct {
	Results    []Record   `json:"results"`
	Pagination Pagination `json:"pagination"`
}

// NormalizePaging treats page <= 0 as the first page and limit <= 0 as unlimited. Without a limit
// every record is on page 1, whatever page was asked for.
func NormalizePaging(page, limit int) (effectivePage, skip, effectiveLimit int) {
	if page <= 0 || limit <= 0 {
		page = 1
	}
	if limit <= 0 {
		return page, 0, 0
	}

	return page, (page - 1) * limit, limit
}

// NewPagination computes the page count; without a limit everything fits on one page.
func NewPagination(total, page, limit int) Pagination {
	p := Pagination{Total: total, Page: page, Limit: limit}

	switch {
	case limit > 0:
		p.Pages = (total + limit - 1) / limit
	case total > 0:
		p.Pages = 1
	}

	return p
}
