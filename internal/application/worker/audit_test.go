package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kgopkg "github.com/twmb/franz-go/pkg/kgo"

	"user-registry/internal/domain/event"
)

type memoryAudit struct {
	events []event.UserEvent
	err    error
}

func (m *memoryAudit) Record(_ context.Context, ev event.UserEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryAudit) ListByUser(_ context.Context, userID int) ([]event.UserEvent, error) {
	var out []event.UserEvent
	for _, ev := range m.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// staticSource replays records through the handler once and returns
type staticSource struct {
	records []*kgopkg.Record
	errs    []error
}

func (s *staticSource) ConsumeWithTracing(ctx context.Context, handler func(ctx context.Context, record *kgopkg.Record) error) error {
	for _, r := range s.records {
		s.errs = append(s.errs, handler(ctx, r))
	}
	return nil
}

func record(t *testing.T, ev event.UserEvent) *kgopkg.Record {
	t.Helper()
	value, err := json.Marshal(ev)
	require.NoError(t, err)
	return &kgopkg.Record{Topic: "user-events", Value: value}
}

func TestAuditWorker_RecordsEvents(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	created := event.UserEvent{ID: "e1", Type: event.TypeUserCreated, UserID: 1, Name: "Test User", Email: "testuser@email.com", OccurredAt: at}
	deleted := event.UserEvent{ID: "e2", Type: event.TypeUserDeleted, UserID: 1, OccurredAt: at.Add(time.Second)}

	audit := &memoryAudit{}
	src := &staticSource{records: []*kgopkg.Record{
		record(t, created),
		{Topic: "user-events", Value: []byte("garbage")},
		record(t, deleted),
	}}
	w := &AuditWorker{consumer: src, audit: audit}

	w.Start(context.Background())
	w.Wait()

	assert.Equal(t, []error{nil, nil, nil}, src.errs, "undecodable records are skipped")
	got, err := audit.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []event.UserEvent{created, deleted}, got)
}

func TestAuditWorker_StoreFailure(t *testing.T) {
	audit := &memoryAudit{err: stderrors.New("db down")}
	w := &AuditWorker{audit: audit}

	err := w.handleRecord(context.Background(), record(t, event.UserEvent{ID: "e1", Type: event.TypeUserCreated, UserID: 1}))
	assert.Error(t, err)
}
