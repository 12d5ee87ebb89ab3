// Package promadapters implements collectionstore.MetricsCollector on a Prometheus registry.
package promadapters

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const (
	helpDuration = "Duration of collection store operations in seconds."
	helpCounter  = "Total count of collection store events."
	helpValue    = "Last value recorded by the collection store."
)

var ErrNilRegisterer = errors.New("prometheus registerer must not be nil")

// MetricsCollector registers one vector per metric name on first use. The label names of a
// metric are fixed by its first measurement; later measurements with other label names are dropped.
type MetricsCollector struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	histograms map[string]*prometheus.HistogramVec
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
}

// Option configures a MetricsCollector.
type Option func(*MetricsCollector)

// WithNamespace prefixes every metric name with namespace and an underscore.
func WithNamespace(namespace string) Option {
	return func(m *MetricsCollector) {
		m.namespace = namespace
	}
}

// WithBuckets sets the histogram buckets (seconds).
func WithBuckets(buckets []float64) Option {
	return func(m *MetricsCollector) {
		m.buckets = buckets
	}
}

func NewMetricsCollector(registerer prometheus.Registerer, options ...Option) (*MetricsCollector, error) {
	if registerer == nil {
		return nil, ErrNilRegisterer
	}

	m := &MetricsCollector{
		registerer: registerer,
		buckets:    prometheus.ExponentialBuckets(0.0005, 2, 14),
		histograms: make(map[string]*prometheus.HistogramVec),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	for _, option := range options {
		option(m)
	}

	return m, nil
}

func (m *MetricsCollector) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	m.mu.Lock()
	vec, ok := m.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      helpDuration,
			Buckets:   m.buckets,
		}, labelNames(labels))
		vec = register(m.registerer, vec)
		m.histograms[name] = vec
	}
	m.mu.Unlock()

	if observer, err := vec.GetMetricWith(labels); err == nil {
		observer.Observe(duration.Seconds())
	}
}

func (m *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      helpCounter,
		}, labelNames(labels))
		vec = register(m.registerer, vec)
		m.counters[name] = vec
	}
	m.mu.Unlock()

	if counter, err := vec.GetMetricWith(labels); err == nil {
		counter.Inc()
	}
}

func (m *MetricsCollector) RecordValue(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	vec, ok := m.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      helpValue,
		}, labelNames(labels))
		vec = register(m.registerer, vec)
		m.gauges[name] = vec
	}
	m.mu.Unlock()

	if gauge, err := vec.GetMetricWith(labels); err == nil {
		gauge.Set(value)
	}
}

// register reuses a vector that is already registered under the same descriptor.
// Any other registration error leaves the vector unregistered; it still accepts measurements.
func register[V prometheus.Collector](registerer prometheus.Registerer, vec V) V {
	err := registerer.Register(vec)

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(V); ok {
			return existing
		}
	}

	return vec
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}

	slices.SortFunc(names, strings.Compare)

	return names
}

var _ collectionstore.MetricsCollector = (*MetricsCollector)(nil)
