package postgres

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"user-registry/internal/domain/errors"
	"user-registry/internal/domain/event"
	"user-registry/internal/domain/repository"
)

// AuditRepository implements repository.AuditRepository on top of GORM
type AuditRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
}

var _ repository.AuditRepository = (*AuditRepository)(nil)

// NewAuditRepository creates an AuditRepository
func NewAuditRepository(db *gorm.DB, tracer trace.Tracer) *AuditRepository {
	return &AuditRepository{db: db, tracer: tracer}
}

// Migrate creates or updates the audit table
func (r *AuditRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&AuditEventModel{}); err != nil {
		return errors.NewDomainErrorWithCause(errors.ErrCodeRepositoryError, "failed to migrate audit table", err)
	}
	return nil
}

// Record implements repository.AuditRepository. Redelivered events hit the
// unique event_id index and are skipped.
func (r *AuditRepository) Record(ctx context.Context, ev event.UserEvent) error {
	ctx, span := r.tracer.Start(ctx, "AuditRepository.Record")
	defer span.End()

	span.SetAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", string(ev.Type)),
		attribute.Int("user.id", ev.UserID),
	)

	model := NewAuditEventModel(ev)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&model).Error
	if err != nil {
		span.RecordError(err)
		return errors.NewDomainErrorWithCause(errors.ErrCodeRepositoryError, "failed to record audit event", err)
	}
	return nil
}

// ListByUser implements repository.AuditRepository
func (r *AuditRepository) ListByUser(ctx context.Context, userID int) ([]event.UserEvent, error) {
	ctx, span := r.tracer.Start(ctx, "AuditRepository.ListByUser")
	defer span.End()

	span.SetAttributes(attribute.Int("user.id", userID))

	var models []AuditEventModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at, id").
		Find(&models).Error
	if err != nil {
		span.RecordError(err)
		return nil, errors.NewDomainErrorWithCause(errors.ErrCodeRepositoryError, "failed to list audit events", err)
	}

	events := make([]event.UserEvent, len(models))
	for i, m := range models {
		events[i] = m.ToEvent()
	}
	return events, nil
}
