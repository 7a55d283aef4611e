package service

import (
	"context"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"user-registry/internal/domain/service"
	"user-registry/internal/infrastructure/telemetry"
)

const healthCheckTimeout = 2 * time.Second

// AppService handles application-level operations
type AppService struct {
	name    string
	version string
	checks  map[string]service.HealthChecker
	tracer  trace.Tracer
}

var _ service.AppService = (*AppService)(nil)

// NewAppService creates a new AppService
func NewAppService(name, version string, tel *telemetry.Telemetry) *AppService {
	return &AppService{
		name:    name,
		version: version,
		checks:  make(map[string]service.HealthChecker),
		tracer:  tel.Tracer,
	}
}

// RegisterCheck adds a dependency checked by HealthCheck
func (s *AppService) RegisterCheck(name string, checker service.HealthChecker) {
	s.checks[name] = checker
}

// HealthCheck pings every registered dependency. The in-memory store is
// always reported as ok.
func (s *AppService) HealthCheck(ctx context.Context) service.HealthReport {
	ctx, span := s.tracer.Start(ctx, "AppService.HealthCheck")
	defer span.End()

	report := service.HealthReport{
		Status: "healthy",
		Checks: map[string]string{"memory": "ok"},
	}

	for _, name := range slices.Sorted(maps.Keys(s.checks)) {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := s.checks[name].HealthCheck(checkCtx)
		cancel()

		if err != nil {
			report.Status = "degraded"
			report.Checks[name] = err.Error()
			telemetry.Log(ctx, telemetry.LevelWarn, "Dependency health check failed", err,
				attribute.String("dependency", name))
			continue
		}
		report.Checks[name] = "ok"
	}

	span.SetAttributes(attribute.String("health.status", report.Status))
	return report
}

// GetWelcomeMessage returns a welcome message
func (s *AppService) GetWelcomeMessage(ctx context.Context) (map[string]interface{}, error) {
	ctx, span := s.tracer.Start(ctx, "AppService.GetWelcomeMessage")
	defer span.End()

	telemetry.Log(ctx, telemetry.LevelInfo, "Getting welcome message", nil,
		attribute.String("operation", "get_welcome_message"),
	)

	return map[string]interface{}{
		"message":     "Welcome to the user registry",
		"application": s.name,
		"version":     s.version,
		"status":      "running",
	}, nil
}
