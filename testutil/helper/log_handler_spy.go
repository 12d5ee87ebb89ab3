package helper

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// LogHandlerSpy is a slog.Handler that captures records for inspection in tests.
type LogHandlerSpy struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewLogHandlerSpy creates a spy; logToStdout additionally prints records as JSON while debugging tests.
func NewLogHandlerSpy(logToStdout bool) *LogHandlerSpy {
	return &LogHandlerSpy{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdout,
	}
}

func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)

	if s.logToStdout {
		_ = slog.NewJSONHandler(os.Stdout, nil).Handle(ctx, record)
	}

	return nil
}

func (s *LogHandlerSpy) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (s *LogHandlerSpy) WithAttrs(_ []slog.Attr) slog.Handler {
	return s
}

func (s *LogHandlerSpy) WithGroup(_ string) slog.Handler {
	return s
}

// GetRecordCount returns the number of captured records.
func (s *LogHandlerSpy) GetRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// Reset clears all captured records.
func (s *LogHandlerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}

// SpyLogRecordMatcher checks attributes of the first record found by a Has*LogWithMessage call.
type SpyLogRecordMatcher struct {
	record *slog.Record
	found  bool
}

// HasDebugLogWithMessage starts a matcher chain on the first debug record with message.
func (s *LogHandlerSpy) HasDebugLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.find(slog.LevelDebug, message)
}

// HasInfoLogWithMessage starts a matcher chain on the first info record with message.
func (s *LogHandlerSpy) HasInfoLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.find(slog.LevelInfo, message)
}

// HasWarnLogWithMessage starts a matcher chain on the first warn record with message.
func (s *LogHandlerSpy) HasWarnLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.find(slog.LevelWarn, message)
}

// HasErrorLogWithMessage starts a matcher chain on the first error record with message.
func (s *LogHandlerSpy) HasErrorLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.find(slog.LevelError, message)
}

func (s *LogHandlerSpy) find(level slog.Level, message string) *SpyLogRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].Level == level && s.records[i].Message == message {
			record := s.records[i]
			return &SpyLogRecordMatcher{record: &record, found: true}
		}
	}

	return &SpyLogRecordMatcher{}
}

// WithDurationMS requires a non-negative duration_ms attribute.
func (m *SpyLogRecordMatcher) WithDurationMS() *SpyLogRecordMatcher {
	return m.withAttr("duration_ms", func(v slog.Value) bool {
		switch v.Kind() {
		case slog.KindFloat64:
			return v.Float64() >= 0
		case slog.KindInt64:
			return v.Int64() >= 0
		default:
			return false
		}
	})
}

// WithRecordCount requires a non-negative record_count attribute.
func (m *SpyLogRecordMatcher) WithRecordCount() *SpyLogRecordMatcher {
	return m.withAttr("record_count", func(v slog.Value) bool {
		return v.Kind() == slog.KindInt64 && v.Int64() >= 0
	})
}

// WithAttr requires an attribute whose string rendering equals value.
func (m *SpyLogRecordMatcher) WithAttr(key, value string) *SpyLogRecordMatcher {
	return m.withAttr(key, func(v slog.Value) bool {
		return v.String() == value
	})
}

func (m *SpyLogRecordMatcher) withAttr(key string, accept func(slog.Value) bool) *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	ok := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key && accept(attr.Value) {
			ok = true
			return false
		}

		return true
	})

	m.found = ok

	return m
}

// Assert returns true if all conditions in the chain were met.
func (m *SpyLogRecordMatcher) Assert() bool {
	return m.found
}
