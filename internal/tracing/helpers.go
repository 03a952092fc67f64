// Package tracing provides OpenTelemetry distributed tracing setup and utilities.
package tracing

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/civitas/internal/apperr"
)

// DBOperation represents the type of database operation being traced.
type DBOperation string

const (
	DBOperationQuery  DBOperation = "query"
	DBOperationInsert DBOperation = "insert"
	DBOperationUpdate DBOperation = "update"
	DBOperationDelete DBOperation = "delete"
	DBOperationExec   DBOperation = "exec"
)

// StartDBSpan creates a client span for a PostgreSQL statement against table.
// The returned func ends the span; sql.ErrNoRows is recorded as an event,
// not a failure.
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, "civilians", tracing.DBOperationQuery)
//	defer func() { endSpan(err) }()
func StartDBSpan(ctx context.Context, table string, operation DBOperation) (context.Context, func(error)) {
	spanName := string(operation)
	if table != "" {
		spanName += " " + table
	}

	ctx, span := otel.Tracer("civitas/db").Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", string(operation)),
		),
	)
	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}
	return ctx, func(err error) { finish(span, err) }
}

// StartSpan creates a span for an in-process operation such as ranking.
// Errors that map to a 4xx response are tagged with their code but leave the
// span status unset; only server-side failures mark it as an error.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := otel.Tracer("civitas").Start(ctx, name)
	return ctx, func(err error) { finish(span, err) }
}

func finish(span trace.Span, err error) {
	defer span.End()

	switch {
	case err == nil:
		return
	case errors.Is(err, sql.ErrNoRows):
		span.AddEvent("no rows")
		return
	}

	code := apperr.Code(err)
	span.SetAttributes(attribute.String("error.code", code))
	if apperr.Status(err) < http.StatusInternalServerError {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
