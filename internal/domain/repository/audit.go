package repository

import (
	"context"

	"user-registry/internal/domain/event"
)

// AuditRepository persists the trail of user events
type AuditRepository interface {
	// Record stores ev. Recording an event ID twice is a no-op.
	Record(ctx context.Context, ev event.UserEvent) error

	// ListByUser returns the events for one user, oldest first
	ListByUser(ctx context.Context, userID int) ([]event.UserEvent, error)
}
