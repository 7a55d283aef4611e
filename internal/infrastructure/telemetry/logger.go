package telemetry

import (
	"context"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var logVerbosity atomic.Int64

// SetLogVerbosity sets the global log verbosity level
func SetLogVerbosity(verbosity int) {
	logVerbosity.Store(int64(verbosity))
}

// GetLogVerbosity gets the current log verbosity level
func GetLogVerbosity() int {
	return int(logVerbosity.Load())
}

// shouldLogMessage reports whether level passes the verbosity filter.
// Errors always pass, warnings need 1, info needs 2.
func shouldLogMessage(level LogLevel) bool {
	verbosity := GetLogVerbosity()

	switch level {
	case LevelError:
		return true
	case LevelWarn:
		return verbosity >= 1
	default:
		return verbosity >= 2
	}
}

// Log logs a message with telemetry context at the given level.
// Span events are always recorded; slog output is subject to verbosity.
// Only LevelError marks the span as failed. Expected business outcomes
// such as "not found" should be logged at LevelWarn.
func Log(ctx context.Context, level LogLevel, msg string, err error, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)

	if span.IsRecording() {
		switch {
		case level == LevelError:
			span.SetStatus(codes.Error, msg)
			if err != nil {
				span.RecordError(err, trace.WithAttributes(attrs...))
			} else {
				span.AddEvent(msg, trace.WithAttributes(attrs...))
			}
		case err != nil:
			span.AddEvent(msg, trace.WithAttributes(append(attrs, attribute.String("error", err.Error()))...))
		default:
			span.AddEvent(msg, trace.WithAttributes(attrs...))
		}
	}

	if !shouldLogMessage(level) {
		return
	}

	logAttrs := attrsToLogAttrs(attrs)
	if err != nil {
		logAttrs = append(logAttrs, slog.String("error", err.Error()))
	}

	switch level {
	case LevelError:
		slog.ErrorContext(ctx, msg, logAttrs...)
	case LevelWarn:
		slog.WarnContext(ctx, msg, logAttrs...)
	default:
		slog.InfoContext(ctx, msg, logAttrs...)
	}
}

// attrsToLogAttrs converts OTel attributes to slog attributes
func attrsToLogAttrs(attrs []attribute.KeyValue) []any {
	logAttrs := make([]any, len(attrs), len(attrs)+1)
	for i, attr := range attrs {
		logAttrs[i] = slog.Any(string(attr.Key), attr.Value.AsInterface())
	}
	return logAttrs
}
