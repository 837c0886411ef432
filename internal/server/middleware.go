package server

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// requestMetrics records the latency and count of API requests.
type requestMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newRequestMetrics(meter metric.Meter) (*requestMetrics, error) {
	requests, err := meter.Int64Counter("imladris.http.requests",
		metric.WithDescription("HTTP requests served"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("imladris.http.duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &requestMetrics{requests: requests, duration: duration}, nil
}

// LogRequests logs every request and records its metrics. m may be nil.
func LogRequests(m *requestMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			dur := time.Since(start)
			ctx := r.Context()
			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			slog.Log(ctx, level, "http", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", dur)
			if m != nil {
				route := r.Pattern
				if route == "" {
					route = "unmatched"
				}
				attrs := metric.WithAttributes(
					attribute.String("route", route),
					attribute.Int("status", rec.status),
				)
				m.requests.Add(ctx, 1, attrs)
				m.duration.Record(ctx, float64(dur.Microseconds())/1000, attrs)
			}
		})
	}
}
