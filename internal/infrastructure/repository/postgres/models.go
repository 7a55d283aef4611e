package postgres

import (
	"time"

	"user-registry/internal/domain/event"
)

// AuditEventModel represents the GORM model for the user_audit_events table
type AuditEventModel struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	EventID    string    `gorm:"size:36;not null;uniqueIndex"`
	Type       string    `gorm:"size:32;not null"`
	UserID     int       `gorm:"not null;index"`
	Name       string    `gorm:"size:255"`
	Email      string    `gorm:"size:255"`
	OccurredAt time.Time `gorm:"not null"`
	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AuditEventModel) TableName() string {
	return "user_audit_events"
}

// ToEvent converts the row back to a domain event
func (m AuditEventModel) ToEvent() event.UserEvent {
	return event.UserEvent{
		ID:         m.EventID,
		Type:       event.Type(m.Type),
		UserID:     m.UserID,
		Name:       m.Name,
		Email:      m.Email,
		OccurredAt: m.OccurredAt.UTC(),
	}
}

// NewAuditEventModel creates a row from a domain event
func NewAuditEventModel(ev event.UserEvent) AuditEventModel {
	return AuditEventModel{
		EventID:    ev.ID,
		Type:       string(ev.Type),
		UserID:     ev.UserID,
		Name:       ev.Name,
		Email:      ev.Email,
		OccurredAt: ev.OccurredAt,
	}
}
