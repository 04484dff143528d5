package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	// Report scope: set while handling one error report
	if scope := ReportScopeFromContext(ctx); scope != nil {
		fields = append(fields,
			zap.String("report.service_id", scope.ServiceID),
			zap.String("report.error_class", scope.ErrorClass),
		)
	}

	// Request ID
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// Context key types
type reportScopeCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// ReportScope identifies the error report a code path is handling.
type ReportScope struct {
	ServiceID  string
	ErrorClass string
}

// WithReportScope tags the context with the report being handled. Every log
// entry below this point carries the reporting service and error class.
func WithReportScope(ctx context.Context, serviceID, errorClass string) context.Context {
	return context.WithValue(ctx, reportScopeCtxKey{}, &ReportScope{
		ServiceID:  serviceID,
		ErrorClass: errorClass,
	})
}

// ReportScopeFromContext extracts the report scope, or nil.
func ReportScopeFromContext(ctx context.Context) *ReportScope {
	if s, ok := ctx.Value(reportScopeCtxKey{}).(*ReportScope); ok {
		return s
	}
	return nil
}

// WithRequestID adds a request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
