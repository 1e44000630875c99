package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/covergap/internal/observability"
	"github.com/okian/covergap/pkg/metrics"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// instrument wraps a route handler with correlation, tracing and metrics.
// The request ID is echoed when the caller supplies one and minted otherwise,
// and it is attached to the span so logs and traces line up.
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)

		ctx, span := observability.Tracer().Start(r.Context(), "http "+endpoint,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", endpoint),
				attribute.String("request.id", id),
			))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		elapsed := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))

		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, elapsed)

		if rec.status < http.StatusBadRequest {
			return
		}
		kind, severity := classifyStatus(rec.status)
		if severity == "high" {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
		metrics.RecordErrorByType(kind, severity)
		metrics.RecordErrorLatency("http", kind, elapsed)
	}
}

// classifyStatus maps an error status onto the error_type and severity labels.
func classifyStatus(status int) (kind, severity string) {
	switch {
	case status == http.StatusServiceUnavailable:
		return "unavailable", "high"
	case status >= http.StatusInternalServerError:
		return "server_error", "high"
	case status == http.StatusTooManyRequests:
		return "queue_full", "medium"
	case status == http.StatusNotFound:
		return "not_found", "low"
	case status >= http.StatusBadRequest:
		return "client_error", "medium"
	default:
		return "none", "low"
	}
}

// statusRecorder remembers the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
