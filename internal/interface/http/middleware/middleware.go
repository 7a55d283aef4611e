package middleware

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Middleware represents a middleware function
type Middleware func(http.Handler) http.Handler

// responseRecorder captures the response status and, optionally, the body
type responseRecorder struct {
	http.ResponseWriter
	status      int
	captureBody bool
	body        bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.captureBody {
		r.body.Write(b)
	}
	return r.ResponseWriter.Write(b)
}

// LoggingMiddlewareWithConfig logs every request. Request and response
// bodies are only read and logged when logBodies is set.
func LoggingMiddlewareWithConfig(logBodies bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			}
			if logBodies && r.Body != nil {
				reqBody, _ := io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewBuffer(reqBody))
				attrs = append(attrs, "body", string(reqBody))
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK, captureBody: logBodies}

			slog.InfoContext(ctx, "Incoming request", attrs...)

			next.ServeHTTP(rec, r)

			done := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
				"status", rec.status,
			}
			if logBodies {
				done = append(done, "response_body", rec.body.String())
			}
			slog.InfoContext(ctx, "Request completed", done...)
		})
	}
}

// OtelHttpMiddleware adds OpenTelemetry tracing and metrics to requests.
// The otelhttp handler records the HTTP server metrics and creates the
// server span.
func OtelHttpMiddleware(operation string) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			operation,
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
	}
}

// RecoveryMiddleware recovers from panics and logs them
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			ctx := r.Context()
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", rec)
			}

			slog.ErrorContext(ctx, "Panic recovered",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
			)

			span := trace.SpanFromContext(ctx)
			if span.IsRecording() {
				span.SetStatus(codes.Error, "Internal Server Error")
				span.RecordError(err, trace.WithAttributes(
					attribute.String("panic", "recovered"),
				))
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"statusCode":500,"message":"Internal server error","error":"Internal Server Error"}` + "\n"))
		}()

		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware adds CORS headers
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ChainMiddleware chains multiple middleware functions. The first one
// listed is the outermost.
func ChainMiddleware(mw ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(mw) - 1; i >= 0; i-- {
			final = mw[i](final)
		}
		return final
	}
}
