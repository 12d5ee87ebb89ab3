package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/dynamic-collections-go/retry"
	"github.com/AntonStoeckl/dynamic-collections-go/testutil/helper"
)

var errConflict = errors.New("conflict")

func Test_Do_Success_NoRetries(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return nil
	}

	meta, err := retry.Do(ctx, fn, retry.On(errConflict))

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, 1, meta.Attempts)
	assert.Equal(t, time.Duration(0), meta.TotalDelay)
	assert.Equal(t, "none", meta.LastErrorType)
}

func Test_Do_RetriesOnRetryableError(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return errConflict
		}
		return nil
	}

	meta, err := retry.Do(ctx, fn, retry.On(errConflict), retry.WithBaseDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, meta.Attempts)
	assert.Greater(t, meta.TotalDelay, time.Duration(0))
	assert.Equal(t, "none", meta.LastErrorType)
}

func Test_Do_MatchesWrappedErrors(t *testing.T) {
	callCount := 0

	_, err := retry.Do(context.Background(), func(_ context.Context) error {
		callCount++
		if callCount == 1 {
			return errors.Join(errors.New("insert failed"), errConflict)
		}
		return nil
	}, retry.On(errConflict), retry.WithBaseDelay(0))

	assert.NoError(t, err)
	assert.Equal(t, 2, callCount)
}

func Test_Do_FailsFastOnOtherErrors(t *testing.T) {
	errBoom := errors.New("boom")
	callCount := 0

	meta, err := retry.Do(context.Background(), func(_ context.Context) error {
		callCount++
		return errBoom
	}, retry.On(errConflict))

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, "other", meta.LastErrorType)
}

func Test_Do_NothingIsRetriedWithoutOn(t *testing.T) {
	callCount := 0

	_, err := retry.Do(context.Background(), func(_ context.Context) error {
		callCount++
		return errConflict
	})

	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 1, callCount)
}

func Test_Do_MaxAttemptsReached(t *testing.T) {
	callCount := 0
	metrics := helper.NewMetricsCollectorSpy()

	meta, err := retry.Do(context.Background(), func(_ context.Context) error {
		callCount++
		return errConflict
	},
		retry.On(errConflict),
		retry.WithMaxAttempts(3),
		retry.WithBaseDelay(time.Millisecond),
		retry.WithJitterFactor(0),
		retry.WithMetrics(metrics, "create"),
	)

	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, meta.Attempts)
	assert.Equal(t, "retryable", meta.LastErrorType)
	assert.Equal(t, 3*time.Millisecond, meta.TotalDelay)

	assert.True(t, metrics.HasCounter("retry_attempts_total", map[string]string{"operation": "create", "attempt_number": "1"}))
	assert.True(t, metrics.HasCounter("retry_attempts_total", map[string]string{"operation": "create", "attempt_number": "2"}))
	assert.True(t, metrics.HasCounter("retry_max_attempts_reached_total", map[string]string{"operation": "create", "error_type": "retryable"}))
	assert.True(t, metrics.HasDuration("retry_delay_seconds", map[string]string{"operation": "create", "attempt_number": "2"}))
}

func Test_Do_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	meta, err := retry.Do(ctx, func(_ context.Context) error {
		callCount++
		cancel()
		return errConflict
	}, retry.On(errConflict), retry.WithBaseDelay(time.Second))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, "context_canceled", meta.LastErrorType)
}

func Test_Do_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	fn := func(_ context.Context) error { return nil }

	testCases := []struct {
		name     string
		option   retry.Option
		expected error
	}{
		{"zero max attempts", retry.WithMaxAttempts(0), retry.ErrInvalidMaxAttempts},
		{"negative base delay", retry.WithBaseDelay(-1 * time.Second), retry.ErrNegativeBaseDelay},
		{"jitter above one", retry.WithJitterFactor(1.5), retry.ErrInvalidJitterFactor},
		{"nil metrics collector", retry.WithMetrics(nil, "create"), retry.ErrNilMetricsCollector},
		{"empty operation", retry.WithMetrics(helper.NewMetricsCollectorSpy(), ""), retry.ErrEmptyOperation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := retry.Do(ctx, fn, tc.option)

			assert.ErrorIs(t, err, tc.expected)
		})
	}
}
