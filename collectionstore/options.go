package collectionstore

import (
	"errors"
	"time"
)

var (
	ErrNilClock        = errors.New("clock must not be nil")
	ErrNilIDGenerator  = errors.New("id generator must not be nil")
	ErrInvalidAttempts = errors.New("create attempts must be positive")
	ErrNilLocation     = errors.New("location must not be nil")
)

// Option configures a Service.
type Option func(*Service) error

// WithLocation sets the time zone used for calendar-day boundaries and zone-less dates.
func WithLocation(location *time.Location) Option {
	return func(s *Service) error {
		if location == nil {
			return ErrNilLocation
		}

		s.location = location

		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return ErrNilClock
		}

		s.now = now

		return nil
	}
}

// WithIDGenerator replaces the UUIDv7 record id generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) error {
		if newID == nil {
			return ErrNilIDGenerator
		}

		s.newID = newID

		return nil
	}
}

// WithCreateAttempts bounds how often a create is attempted when a unique key collides.
// Hooks run again on every attempt, so derived keys are recomputed.
func WithCreateAttempts(attempts int) Option {
	return func(s *Service) error {
		if attempts <= 0 {
			return ErrInvalidAttempts
		}

		s.createAttempts = attempts

		return nil
	}
}

// WithLogger sets the logger for the Service.
//
// Debug level: query shapes
// Info level: operation, collection, record counts and durations
// Warn level: rejected requests (validation, not found)
// Error level: store failures.
func WithLogger(logger Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector. Durations, errors and returned record counts are
// recorded per operation and collection.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Service) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector; every operation gets its own span.
func WithTracing(collector TracingCollector) Option {
	return func(s *Service) error {
		s.tracingCollector = collector
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, used in addition to the plain Logger.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Service) error {
		s.contextualLogger = logger
		return nil
	}
}
