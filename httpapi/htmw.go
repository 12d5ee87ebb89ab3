package httpapi

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	htMetrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AntonStoeckl/dynamic-collections-go/logging"
)

func handleHTTPMetrics(reg prometheus.Registerer) mux.MiddlewareFunc {
	metricsMw := middleware.New(
		middleware.Config{
			Recorder: htMetrics.NewRecorder(htMetrics.Config{Registry: reg}),
		})

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wi := intercept(w)
			reporter := &muxReporter{
				w: wi,
				r: r,
			}

			metricsMw.Measure("", reporter, func() {
				h.ServeHTTP(wi, r)
			})
		})
	}
}

type muxReporter struct {
	w *responseWriterInterceptor
	r *http.Request
}

func (m *muxReporter) Method() string { return m.r.Method }

func (m *muxReporter) Context() context.Context { return m.r.Context() }

func (m *muxReporter) URLPath() string { return routeTemplate(m.r) }

func (m *muxReporter) StatusCode() int { return m.w.statusCode }

func (m *muxReporter) BytesWritten() int64 { return int64(m.w.bytesWritten) }

// routeTemplate keeps label cardinality bounded: /api/universalCRUD/{collection}/{id}
// instead of one value per record.
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.URL.Path
	}

	path, err := route.GetPathTemplate()
	if err != nil {
		return r.URL.Path
	}

	return path
}

// handleRequestLogging puts a request scoped zap logger into the context and logs every
// finished request with its status and duration.
func handleRequestLogging(base *zap.Logger, debug bool) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := base.With(
				zap.String("method", r.Method),
				zap.String("endpoint", routeTemplate(r)),
			)

			wi := intercept(w)
			h.ServeHTTP(wi, r.WithContext(logging.NewContextWithLogger(r.Context(), logger, debug)))

			logger.Debug("request handled",
				zap.String("path", r.URL.Path),
				zap.Int("status", wi.statusCode),
				zap.Int("bytes", wi.bytesWritten),
				zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			)
		})
	}
}

// handleTimeout bounds every request context; store calls observe the deadline.
func handleTimeout(timeout time.Duration) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		if timeout <= 0 {
			return h
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// handleSpanName renames the server span started by otelhttp after the matched route.
func handleSpanName(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace.SpanFromContext(r.Context()).SetName(r.Method + " " + routeTemplate(r))
		h.ServeHTTP(w, r)
	})
}

func intercept(w http.ResponseWriter) *responseWriterInterceptor {
	if wi, ok := w.(*responseWriterInterceptor); ok {
		return wi
	}

	return &responseWriterInterceptor{
		statusCode:     http.StatusOK,
		ResponseWriter: w,
	}
}

// responseWriterInterceptor is a simple wrapper to intercept set data on a
// ResponseWriter.
type responseWriterInterceptor struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *responseWriterInterceptor) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterInterceptor) Write(p []byte) (int, error) {
	w.bytesWritten += len(p)
	return w.ResponseWriter.Write(p)
}

func (w *responseWriterInterceptor) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("type assertion failed http.ResponseWriter not a http.Hijacker")
	}
	return h.Hijack()
}

func (w *responseWriterInterceptor) Flush() {
	f, ok := w.ResponseWriter.(http.Flusher)
	if !ok {
		return
	}

	f.Flush()
}
