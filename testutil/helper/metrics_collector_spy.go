package helper

import (
	"maps"
	"sync"
	"time"
)

type measurementKind int

const (
	kindDuration measurementKind = iota
	kindCounter
	kindValue
)

// Measurement is one call received by a MetricsCollectorSpy.
type Measurement struct {
	kind     measurementKind
	Name     string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
}

// MetricsCollectorSpy keeps every measurement in call order.
type MetricsCollectorSpy struct {
	mu           sync.Mutex
	measurements []Measurement
}

func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

func (s *MetricsCollectorSpy) RecordDuration(name string, d time.Duration, labels map[string]string) {
	s.add(Measurement{kind: kindDuration, Name: name, Duration: d, Labels: labels})
}

func (s *MetricsCollectorSpy) IncrementCounter(name string, labels map[string]string) {
	s.add(Measurement{kind: kindCounter, Name: name, Value: 1, Labels: labels})
}

func (s *MetricsCollectorSpy) RecordValue(name string, v float64, labels map[string]string) {
	s.add(Measurement{kind: kindValue, Name: name, Value: v, Labels: labels})
}

func (s *MetricsCollectorSpy) add(m Measurement) {
	m.Labels = maps.Clone(m.Labels)

	s.mu.Lock()
	s.measurements = append(s.measurements, m)
	s.mu.Unlock()
}

// HasCounter reports whether name was incremented with at least the given labels.
func (s *MetricsCollectorSpy) HasCounter(name string, labels map[string]string) bool {
	return s.has(kindCounter, name, labels)
}

// HasDuration reports whether a duration was recorded for name with at least the given labels.
func (s *MetricsCollectorSpy) HasDuration(name string, labels map[string]string) bool {
	return s.has(kindDuration, name, labels)
}

// HasValue reports whether a value was recorded for name with at least the given labels.
func (s *MetricsCollectorSpy) HasValue(name string, labels map[string]string) bool {
	return s.has(kindValue, name, labels)
}

func (s *MetricsCollectorSpy) has(kind measurementKind, name string, labels map[string]string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.measurements {
		if m.kind != kind || m.Name != name {
			continue
		}
		if matchesLabels(m.Labels, labels) {
			return true
		}
	}

	return false
}

func matchesLabels(have, want map[string]string) bool {
	for k, v := range want {
		if got, ok := have[k]; !ok || got != v {
			return false
		}
	}

	return true
}
