package handler

import (
	"net/http"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"user-registry/internal/domain/service"
	"user-registry/internal/infrastructure/telemetry"
)

// HealthHandler handles requests to the health endpoint
type HealthHandler struct {
	appService service.AppService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(appService service.AppService) *HealthHandler {
	return &HealthHandler{
		appService: appService,
	}
}

// Handle reports the health of the service and its dependencies. A failed
// dependency check turns the response into a 503.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("http.route", "/health"),
		attribute.String("handler", "health"),
	)
	span.AddEvent("Processing health check")

	telemetry.Log(ctx, telemetry.LevelInfo, "Processing health check", nil)

	report := h.appService.HealthCheck(ctx)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := map[string]interface{}{
		"status": report.Status,
		"checks": report.Checks,
		"memory": map[string]interface{}{
			"alloc":      m.Alloc,
			"totalAlloc": m.TotalAlloc,
			"sys":        m.Sys,
			"numGC":      m.NumGC,
		},
	}

	statusCode := http.StatusOK
	if !report.Healthy() {
		statusCode = http.StatusServiceUnavailable
	}

	span.AddEvent("Health check completed", trace.WithAttributes(
		attribute.String("health.status", report.Status),
	))

	writeJSON(ctx, w, response, statusCode)
}
