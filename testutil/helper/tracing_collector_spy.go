package helper

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

// SpySpanContext records status and attributes set on a span.
type SpySpanContext struct {
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}
	c.attributes[key] = value
}

// SpySpanRecord is one started span.
type SpySpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	Finished        bool
}

// TracingCollectorSpy captures TracingCollector calls for inspection in tests.
type TracingCollectorSpy struct {
	spans []*SpySpanRecord
	ctxs  map[*SpySpanContext]*SpySpanRecord
	mu    sync.Mutex
}

func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{ctxs: make(map[*SpySpanContext]*SpySpanRecord)}
}

func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, collectionstore.SpanContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spanCtx := &SpySpanContext{}
	record := &SpySpanRecord{Name: name, StartAttributes: maps.Clone(attrs)}
	s.spans = append(s.spans, record)
	s.ctxs[spanCtx] = record

	return ctx, spanCtx
}

func (s *TracingCollectorSpy) FinishSpan(spanCtx collectionstore.SpanContext, status string, attrs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spyCtx, ok := spanCtx.(*SpySpanContext)
	if !ok {
		return
	}

	record, ok := s.ctxs[spyCtx]
	if !ok {
		return
	}

	record.Status = status
	record.EndAttributes = maps.Clone(attrs)
	record.Finished = true
}

// GetSpans returns copies of all recorded spans in start order.
func (s *TracingCollectorSpy) GetSpans() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SpySpanRecord, 0, len(s.spans))
	for _, r := range s.spans {
		out = append(out, *r)
	}

	return out
}

// FindSpan returns the first span with name.
func (s *TracingCollectorSpy) FindSpan(name string) (SpySpanRecord, bool) {
	for _, r := range s.GetSpans() {
		if r.Name == name {
			return r, true
		}
	}

	return SpySpanRecord{}, false
}
