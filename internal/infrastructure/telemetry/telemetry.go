package telemetry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"user-registry/internal/infrastructure/config"
)

// Telemetry bundles the tracer and metric instruments used across the service.
// Provider fields are nil when telemetry runs in noop mode.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	UserCounter    metric.Int64Counter
	UsersStored    metric.Int64UpDownCounter
	LogVerbosity   int
}

// NewNoop returns a Telemetry whose tracer and instruments discard everything.
func NewNoop() *Telemetry {
	meter := metricnoop.NewMeterProvider().Meter("noop")
	counter, _ := meter.Int64Counter("user_operations_total")
	stored, _ := meter.Int64UpDownCounter("users_stored")
	return &Telemetry{
		Tracer:      tracenoop.NewTracerProvider().Tracer("noop"),
		Meter:       meter,
		UserCounter: counter,
		UsersStored: stored,
	}
}

// Setup wires OTLP exporters for traces, metrics and logs and installs them
// as the global providers. The returned shutdown flushes and closes them in
// reverse order. When telemetry is disabled only slog is configured.
func Setup(ctx context.Context, cfg config.Config) (*Telemetry, func(context.Context) error, error) {
	var shutdowns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			err = errors.Join(err, shutdowns[i](ctx))
		}
		return err
	}
	handleErr := func(e error) (*Telemetry, func(context.Context) error, error) {
		return nil, shutdown, e
	}

	SetLogVerbosity(cfg.Otel.LogVerbosity)

	if !cfg.Otel.Enabled {
		setupSlog(cfg.Otel, nil)
		tel := NewNoop()
		tel.LogVerbosity = cfg.Otel.LogVerbosity
		slog.Info("OpenTelemetry export disabled")
		return tel, shutdown, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.Otel.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Otel.ServiceVersion),
			semconv.ServiceNamespaceKey.String(cfg.Otel.ServiceNamespace),
		),
		resource.WithSchemaURL(semconv.SchemaURL),
	)
	if err != nil {
		return handleErr(fmt.Errorf("failed to create resource: %w", err))
	}

	protocol := cfg.Otel.Protocol
	if protocol == "" {
		protocol = "http"
	}
	slog.Info("Using OTLP protocol", "protocol", protocol, "endpoint", cfg.Otel.Endpoint)

	var (
		spanExporter sdktrace.SpanExporter
		metricReader sdkmetric.Reader
		logProcessor sdklog.Processor
	)

	switch protocol {
	case "grpc":
		conn, err := grpc.NewClient(cfg.Otel.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return handleErr(fmt.Errorf("otlp grpc connection: %w", err))
		}
		shutdowns = append(shutdowns, func(context.Context) error { return conn.Close() })

		spanExporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return handleErr(fmt.Errorf("trace exporter gRPC: %w", err))
		}
		metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
		if err != nil {
			return handleErr(fmt.Errorf("metric exporter gRPC: %w", err))
		}
		metricReader = newPeriodicReader(metricExp, cfg.Otel)

		logExp, err := otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(conn))
		if err != nil {
			return handleErr(fmt.Errorf("log exporter gRPC: %w", err))
		}
		logProcessor = newBatchProcessor(logExp, cfg.Otel)

	default:
		traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Otel.Endpoint)}
		metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Otel.Endpoint)}
		logOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Otel.Endpoint)}

		if headers := basicAuthHeaders(cfg.Otel); headers != nil {
			traceOpts = append(traceOpts, otlptracehttp.WithHeaders(headers))
			metricOpts = append(metricOpts, otlpmetrichttp.WithHeaders(headers))
			logOpts = append(logOpts, otlploghttp.WithHeaders(headers))
		}

		if cfg.Otel.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
			logOpts = append(logOpts, otlploghttp.WithInsecure())
			slog.Warn("Using insecure HTTP connection", "endpoint", cfg.Otel.Endpoint)
		}

		spanExporter, err = otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return handleErr(fmt.Errorf("trace exporter HTTP: %w", err))
		}
		metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return handleErr(fmt.Errorf("metric exporter HTTP: %w", err))
		}
		metricReader = newPeriodicReader(metricExp, cfg.Otel)

		logExp, err := otlploghttp.New(ctx, logOpts...)
		if err != nil {
			return handleErr(fmt.Errorf("log exporter HTTP: %w", err))
		}
		logProcessor = newBatchProcessor(logExp, cfg.Otel)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter,
			sdktrace.WithMaxQueueSize(cfg.Otel.MaxQueueSize),
			sdktrace.WithBatchTimeout(seconds(cfg.Otel.BatchTimeoutSecs)),
			sdktrace.WithExportTimeout(seconds(cfg.Otel.ExportTimeoutSecs))),
		sdktrace.WithResource(res),
	)
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricReader),
		sdkmetric.WithResource(res),
	)
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(logProcessor),
		sdklog.WithResource(res),
	)
	shutdowns = append(shutdowns, tracerProvider.Shutdown, meterProvider.Shutdown, loggerProvider.Shutdown)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	global.SetLoggerProvider(loggerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	setupSlog(cfg.Otel, loggerProvider)

	meter := meterProvider.Meter(cfg.Otel.MeterName)
	userCounter, err := meter.Int64Counter("user_operations_total",
		metric.WithDescription("Counts user registry operations by outcome"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return handleErr(fmt.Errorf("failed to create user counter: %w", err))
	}
	usersStored, err := meter.Int64UpDownCounter("users_stored",
		metric.WithDescription("Number of user records currently held in memory"),
		metric.WithUnit("{user}"))
	if err != nil {
		return handleErr(fmt.Errorf("failed to create users gauge: %w", err))
	}

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return handleErr(fmt.Errorf("failed to start runtime metrics: %w", err))
	}

	return &Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		LoggerProvider: loggerProvider,
		Tracer:         tracerProvider.Tracer(cfg.Otel.TracerName),
		Meter:          meter,
		UserCounter:    userCounter,
		UsersStored:    usersStored,
		LogVerbosity:   cfg.Otel.LogVerbosity,
	}, shutdown, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func basicAuthHeaders(cfg config.OtelConfig) map[string]string {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}
	auth := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
	return map[string]string{"Authorization": "Basic " + auth}
}

func newPeriodicReader(exp sdkmetric.Exporter, cfg config.OtelConfig) sdkmetric.Reader {
	return sdkmetric.NewPeriodicReader(exp,
		sdkmetric.WithInterval(seconds(cfg.ExportIntervalSecs)),
		sdkmetric.WithTimeout(seconds(cfg.ExportTimeoutSecs)),
	)
}

func newBatchProcessor(exp sdklog.Exporter, cfg config.OtelConfig) sdklog.Processor {
	return sdklog.NewBatchProcessor(exp,
		sdklog.WithMaxQueueSize(cfg.MaxQueueSize),
		sdklog.WithExportInterval(seconds(cfg.ExportIntervalSecs)),
		sdklog.WithExportTimeout(seconds(cfg.ExportTimeoutSecs)),
	)
}

// setupSlog installs the default slog logger: a console handler unless the
// output is "otel", plus the OTel bridge when a logger provider is given.
func setupSlog(cfg config.OtelConfig, loggerProvider *sdklog.LoggerProvider) {
	var handlers []slog.Handler

	if cfg.LogOutput != "otel" || loggerProvider == nil {
		output := os.Stdout
		if strings.EqualFold(cfg.LogOutput, "stderr") {
			output = os.Stderr
		}
		opts := &slog.HandlerOptions{Level: slog.LevelInfo}
		if strings.EqualFold(cfg.LogFormat, "json") {
			handlers = append(handlers, slog.NewJSONHandler(output, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(output, opts))
		}
	}

	if loggerProvider != nil {
		handlers = append(handlers, otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(loggerProvider)))
	}

	if len(handlers) == 1 {
		slog.SetDefault(slog.New(handlers[0]))
		return
	}
	slog.SetDefault(slog.New(multiHandler(handlers)))
}

// multiHandler fans a record out to every handler that accepts its level
type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	for _, h := range m {
		if h.Enabled(ctx, record.Level) {
			err = errors.Join(err, h.Handle(ctx, record.Clone()))
		}
	}
	return err
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}
