package collectionstore

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"
)

const (
	operationFiltered = "filtered"
	operationList     = "list"
	operationGet      = "get"
	operationCreate   = "create"
	operationUpdate   = "update"
	operationDelete   = "delete"

	spanNamePrefix = "collectionstore."

	metricOperationDuration = "collectionstore_operation_duration_seconds"
	metricOperationErrors   = "collectionstore_operation_errors_total"
	metricRecordsReturned   = "collectionstore_records_returned"

	statusSuccess = "success"
	statusError   = "error"

	labelOperation  = "operation"
	labelCollection = "collection"
	labelStatus     = "status"
	labelErrorType  = "error_type"

	errorTypeNotFound     = "not_found"
	errorTypeValidation   = "validation"
	errorTypeDuplicateKey = "duplicate_key"
	errorTypeCanceled     = "canceled"
	errorTypeStore        = "store"

	logMsgOperation     = "collectionstore operation: "
	logMsgRejected      = "collectionstore request rejected: "
	logMsgFailed        = "collectionstore operation failed: "
	logMsgQueryBuilt    = "built query for: "
	logAttrCollection   = "collection"
	logAttrRecordCount  = "record_count"
	logAttrDurationMS   = "duration_ms"
	logAttrError        = "error"
	logAttrWhere        = "where"
	logAttrSort         = "sort"
	logAttrSkip         = "skip"
	logAttrLimit        = "limit"
	spanAttrRecordCount = "record_count"
	spanAttrDurationMS  = "duration_ms"
)

// observe wraps an operation with a span, duration and error metrics, and an operation log line.
// fn returns the number of records it produced.
func (s *Service) observe(
	ctx context.Context,
	operation string,
	collection string,
	fn func(ctx context.Context) (int, error),
) error {

	ctx, span := s.startSpan(ctx, operation, collection)

	start := time.Now()
	count, err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		errType := classify(err)
		s.recordDuration(ctx, operation, collection, statusError, duration)
		s.recordError(ctx, operation, collection, errType)
		s.finishSpan(span, statusError, map[string]string{labelErrorType: errType})
		s.logFailure(ctx, operation, collection, errType, err)

		return err
	}

	s.recordDuration(ctx, operation, collection, statusSuccess, duration)
	s.recordValue(ctx, operation, collection, float64(count))
	s.finishSpan(span, statusSuccess, map[string]string{
		spanAttrRecordCount: strconv.Itoa(count),
		spanAttrDurationMS:  strconv.FormatFloat(toMilliseconds(duration), 'f', 3, 64),
	})
	s.logOperation(ctx, operation, collection, count, duration)

	return nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return errorTypeNotFound
	case errors.Is(err, ErrValidation):
		return errorTypeValidation
	case errors.Is(err, ErrDuplicateKey):
		return errorTypeDuplicateKey
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errorTypeCanceled
	default:
		return errorTypeStore
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (s *Service) startSpan(ctx context.Context, operation, collection string) (context.Context, SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
		labelOperation:  operation,
		labelCollection: collection,
	})
}

func (s *Service) finishSpan(span SpanContext, status string, attrs map[string]string) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(status)
	s.tracingCollector.FinishSpan(span, status, attrs)
}

func (s *Service) recordDuration(ctx context.Context, operation, collection, status string, d time.Duration) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: operation, labelCollection: collection, labelStatus: status}
	if c, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		c.RecordDurationContext(ctx, metricOperationDuration, d, labels)
		return
	}

	s.metricsCollector.RecordDuration(metricOperationDuration, d, labels)
}

func (s *Service) recordError(ctx context.Context, operation, collection, errType string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: operation, labelCollection: collection, labelErrorType: errType}
	if c, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		c.IncrementCounterContext(ctx, metricOperationErrors, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metricOperationErrors, labels)
}

func (s *Service) recordValue(ctx context.Context, operation, collection string, value float64) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: operation, labelCollection: collection}
	if c, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		c.RecordValueContext(ctx, metricRecordsReturned, value, labels)
		return
	}

	s.metricsCollector.RecordValue(metricRecordsReturned, value, labels)
}

func (s *Service) logOperation(ctx context.Context, operation, collection string, count int, d time.Duration) {
	args := []any{logAttrCollection, collection, logAttrRecordCount, count, logAttrDurationMS, toMilliseconds(d)}

	if s.logger != nil {
		s.logger.Info(logMsgOperation+operation, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+operation, args...)
	}
}

// logFailure logs rejected requests at warn and store failures at error level.
func (s *Service) logFailure(ctx context.Context, operation, collection, errType string, err error) {
	args := []any{logAttrCollection, collection, logAttrError, err.Error()}

	switch errType {
	case errorTypeNotFound, errorTypeValidation, errorTypeCanceled:
		if s.logger != nil {
			s.logger.Warn(logMsgRejected+operation, args...)
		}
		if s.contextualLogger != nil {
			s.contextualLogger.WarnContext(ctx, logMsgRejected+operation, args...)
		}

	default:
		if s.logger != nil {
			s.logger.Error(logMsgFailed+operation, args...)
		}
		if s.contextualLogger != nil {
			s.contextualLogger.ErrorContext(ctx, logMsgFailed+operation, args...)
		}
	}
}

func (s *Service) logQuery(ctx context.Context, query StoreQuery) {
	args := []any{
		logAttrCollection, query.Collection,
		logAttrWhere, query.Where.String(),
		logAttrSort, shapeNames(query.Sort),
		logAttrSkip, query.Skip,
		logAttrLimit, query.Limit,
	}

	if s.logger != nil {
		s.logger.Debug(logMsgQueryBuilt+query.Collection, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgQueryBuilt+query.Collection, args...)
	}
}
