package service

import "context"

// AppService defines the interface for general application operations
type AppService interface {
	// GetWelcomeMessage returns a welcome message
	GetWelcomeMessage(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck pings every registered dependency
	HealthCheck(ctx context.Context) HealthReport
}

// HealthChecker is implemented by infrastructure clients that report their health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthReport summarises the state of the service and its dependencies
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every check passed
func (r HealthReport) Healthy() bool {
	return r.Status == "healthy"
}
