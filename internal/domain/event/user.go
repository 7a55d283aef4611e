package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"user-registry/internal/domain/entity"
)

// Type names a user lifecycle event
type Type string

const (
	TypeUserCreated Type = "user.created"
	TypeUserUpdated Type = "user.updated"
	TypeUserDeleted Type = "user.deleted"
)

// UserEvent describes a committed change to the registry
type UserEvent struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	UserID     int       `json:"user_id"`
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewUserEvent builds an event for user. Deleted events carry only the ID.
func NewUserEvent(t Type, user entity.User, now time.Time) UserEvent {
	ev := UserEvent{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     int(user.ID()),
		OccurredAt: now.UTC(),
	}
	if t != TypeUserDeleted {
		ev.Name = user.Name().String()
		ev.Email = user.Email().String()
	}
	return ev
}

// Publisher delivers user events to interested consumers
type Publisher interface {
	Publish(ctx context.Context, ev UserEvent) error
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, UserEvent) error { return nil }
