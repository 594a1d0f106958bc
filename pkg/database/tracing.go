package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/sixty60/pkg/database"

// QueryTracer opens a span per statement and warns about statements slower
// than its threshold. The zero value traces without slow-query logging.
type QueryTracer struct {
	System        string
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

// NewQueryTracer returns a postgres tracer. A zero threshold or nil logger
// disables slow-query logging.
func NewQueryTracer(threshold time.Duration, logger *slog.Logger) *QueryTracer {
	return &QueryTracer{System: "postgresql", SlowThreshold: threshold, Logger: logger}
}

// Trace starts a span for a database operation. The returned function must be
// called when the operation completes:
//
//	ctx, end := tracer.Trace(ctx, "LoadState", "SELECT value FROM session_states WHERE key = $1")
//	defer func() { end(err) }()
func (q *QueryTracer) Trace(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	system := "postgresql"
	if q != nil && q.System != "" {
		system = q.System
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if q == nil || q.SlowThreshold <= 0 || q.Logger == nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed < q.SlowThreshold {
			return
		}
		attrs := []any{
			slog.String("operation", operation),
			slog.String("statement", statement),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		q.Logger.WarnContext(ctx, "slow query detected", attrs...)
	}
}

// TraceQuery traces one postgres statement without slow-query logging.
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	return (*QueryTracer)(nil).Trace(ctx, operation, statement)
}
