package worker

import (
	"context"
	"sync"

	kgopkg "github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"

	"user-registry/internal/domain/repository"
	"user-registry/internal/infrastructure/kafka"
	"user-registry/internal/infrastructure/telemetry"
)

// recordSource is the part of kafka.Consumer the worker drives
type recordSource interface {
	ConsumeWithTracing(ctx context.Context, handler func(ctx context.Context, record *kgopkg.Record) error) error
}

// AuditWorker consumes user events and appends them to the audit trail
type AuditWorker struct {
	consumer recordSource
	audit    repository.AuditRepository
	wg       sync.WaitGroup
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *kafka.Consumer, audit repository.AuditRepository) *AuditWorker {
	return &AuditWorker{
		consumer: consumer,
		audit:    audit,
	}
}

// Start runs the consumer loop in a separate goroutine until ctx is done
func (w *AuditWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.ConsumeWithTracing(ctx, w.handleRecord); err != nil && ctx.Err() == nil {
			telemetry.Log(ctx, telemetry.LevelError, "Audit consumer stopped", err)
		}
	}()
}

// Wait blocks until the consumer loop has returned
func (w *AuditWorker) Wait() {
	w.wg.Wait()
}

func (w *AuditWorker) handleRecord(ctx context.Context, record *kgopkg.Record) error {
	ev, err := kafka.DecodeUserEvent(record)
	if err != nil {
		// poison message, skip it
		telemetry.Log(ctx, telemetry.LevelWarn, "Dropping undecodable user event", err,
			attribute.String("kafka.topic", record.Topic),
			attribute.Int64("kafka.offset", record.Offset),
		)
		return nil
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "Recording user event", nil,
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", string(ev.Type)),
		attribute.Int("user.id", ev.UserID),
	)

	return w.audit.Record(ctx, ev)
}
