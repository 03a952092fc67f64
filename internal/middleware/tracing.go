package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing creates HTTP middleware that instruments requests with OpenTelemetry spans.
// Trace context is propagated with W3C traceparent/tracestate headers.
//
// Span names use the normalized route ("GET /api/civilians/{id}") so civilian
// ids never end up in span names. The request id is attached as an attribute
// when RequestID runs first.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		withRequestID := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := GetRequestID(r.Context()); id != "" {
				trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("request.id", id))
			}
			next.ServeHTTP(w, r)
		})
		return otelhttp.NewHandler(withRequestID, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + normalizePath(r.URL.Path)
			}),
		)
	}
}

// GetTraceID extracts the trace ID from the request context.
// Returns empty string if no trace is active.
func GetTraceID(r *http.Request) string {
	spanCtx := trace.SpanContextFromContext(r.Context())
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// GetSpanID extracts the span ID from the request context.
// Returns empty string if no span is active.
func GetSpanID(r *http.Request) string {
	spanCtx := trace.SpanContextFromContext(r.Context())
	if spanCtx.IsValid() {
		return spanCtx.SpanID().String()
	}
	return ""
}
