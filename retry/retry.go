// Package retry runs an operation again with exponential backoff when it fails with one of a
// configured set of retryable errors. All other errors fail fast.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3

	metricRetries           = "retry_attempts_total"
	metricRetryDelay        = "retry_delay_seconds"
	metricMaxRetriesReached = "retry_max_attempts_reached_total"

	labelOperation = "operation"
	labelAttempt   = "attempt_number"
	labelErrorType = "error_type"

	errorTypeNone      = "none"
	errorTypeRetryable = "retryable"
	errorTypeCanceled  = "context_canceled"
	errorTypeDeadline  = "context_deadline_exceeded"
	errorTypeOther     = "other"
)

var (
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")
	ErrEmptyOperation      = errors.New("operation must not be empty")
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// MetricsCollector receives retry instrumentation.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
}

// Func is the operation being retried.
type Func func(ctx context.Context) error

// Meta reports what happened during Do.
type Meta struct {
	Attempts      int
	TotalDelay    time.Duration
	LastErrorType string
}

type config struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	retryable    []error
	metrics      MetricsCollector
	operation    string
}

// Do executes fn and retries it while it fails with a retryable error, up to the max attempts.
//
// Schedule with defaults: 0 ms, 10 ms, 20 ms, 40 ms, 80 ms, 160 ms, each plus up to 30% jitter.
// Context cancellation during a backoff returns the context error.
func Do(ctx context.Context, fn Func, options ...Option) (Meta, error) {
	cfg := &config{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return Meta{}, err
		}
	}

	meta := Meta{LastErrorType: errorTypeNone}
	var lastErr error

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // jitter needs no crypto randomness
			backoff := delay + time.Duration(jitter)

			cfg.recordDelay(attempt, backoff)

			select {
			case <-time.After(backoff):
				meta.TotalDelay += backoff
			case <-ctx.Done():
				meta.LastErrorType = errorType(ctx.Err(), cfg)
				return meta, ctx.Err()
			}
		}

		meta.Attempts++
		lastErr = fn(ctx)
		if lastErr == nil {
			meta.LastErrorType = errorTypeNone
			return meta, nil
		}

		meta.LastErrorType = errorType(lastErr, cfg)
		if !cfg.isRetryable(lastErr) {
			return meta, lastErr
		}

		if attempt < cfg.maxAttempts-1 {
			cfg.recordRetry(attempt+1, meta.LastErrorType)
		}
	}

	cfg.recordMaxReached(meta.LastErrorType)

	return meta, lastErr
}

func (c *config) isRetryable(err error) bool {
	for _, target := range c.retryable {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func errorType(err error, c *config) string {
	switch {
	case err == nil:
		return errorTypeNone
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeDeadline
	case c.isRetryable(err):
		return errorTypeRetryable
	default:
		return errorTypeOther
	}
}

func (c *config) recordDelay(attempt int, delay time.Duration) {
	if c.metrics == nil {
		return
	}

	c.metrics.RecordDuration(metricRetryDelay, delay, map[string]string{
		labelOperation: c.operation,
		labelAttempt:   strconv.Itoa(attempt),
	})
}

func (c *config) recordRetry(attempt int, errType string) {
	if c.metrics == nil {
		return
	}

	c.metrics.IncrementCounter(metricRetries, map[string]string{
		labelOperation: c.operation,
		labelAttempt:   strconv.Itoa(attempt),
		labelErrorType: errType,
	})
}

func (c *config) recordMaxReached(errType string) {
	if c.metrics == nil {
		return
	}

	c.metrics.IncrementCounter(metricMaxRetriesReached, map[string]string{
		labelOperation: c.operation,
		labelErrorType: errType,
	})
}

// Option configures Do.
type Option func(*config) error

// On marks errors (matched with errors.Is) as retryable. Without it nothing is retried.
func On(errs ...error) Option {
	return func(c *config) error {
		c.retryable = append(c.retryable, errs...)
		return nil
	}
}

// WithMaxAttempts sets the total number of attempts including the first one.
func WithMaxAttempts(attempts int) Option {
	return func(c *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		c.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the delay before the second attempt; it doubles after each retry.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		c.baseDelay = delay

		return nil
	}
}

// WithJitterFactor adds up to factor times the delay as random jitter. Valid range: 0.0 to 1.0.
func WithJitterFactor(factor float64) Option {
	return func(c *config) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		c.jitterFactor = factor

		return nil
	}
}

// WithMetrics instruments retries, labelled with operation.
func WithMetrics(collector MetricsCollector, operation string) Option {
	return func(c *config) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperation
		}

		c.metrics = collector
		c.operation = operation

		return nil
	}
}
