package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/pkg/logger"
	"github.com/jwalitptl/trace-api/pkg/messaging"
	"github.com/jwalitptl/trace-api/pkg/metrics"
)

// promauto registers against the default registry, so the package shares
// one Metrics instance across tests.
var testMetrics = metrics.NewMetrics("trace_test", "worker")

type fakeOutboxRepo struct {
	pending  []*model.OutboxEvent
	statuses map[uuid.UUID]model.OutboxStatus
	errors   map[uuid.UUID]string
}

func newFakeOutboxRepo(events ...*model.OutboxEvent) *fakeOutboxRepo {
	return &fakeOutboxRepo{
		pending:  events,
		statuses: make(map[uuid.UUID]model.OutboxStatus),
		errors:   make(map[uuid.UUID]string),
	}
}

func (f *fakeOutboxRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	f.pending = append(f.pending, event)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	return f.pending[:limit], nil
}

func (f *fakeOutboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	f.statuses[id] = status
	if errorMessage != nil {
		f.errors[id] = *errorMessage
	}
	return nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeBroker struct {
	published map[string][]messaging.Message
	err       error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: make(map[string][]messaging.Message)}
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.published[channel] = append(f.published[channel], message.(messaging.Message))
	return nil
}

func (f *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeBroker) Close() error { return nil }

func outboxEvent(eventType string, retries int) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Payload:    []byte(`{"reason":"defect"}`),
		Status:     string(model.OutboxStatusPending),
		RetryCount: retries,
	}
}

func newProcessor(repo *fakeOutboxRepo, broker *fakeBroker, maxRetries int) *OutboxProcessor {
	return NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:    10,
		PollInterval: time.Second,
		MaxRetries:   maxRetries,
	}, logger.NewLogger(&logger.Config{Output: io.Discard}), testMetrics)
}

func TestProcessEventsPublishesAndMarksProcessed(t *testing.T) {
	ev := outboxEvent(model.EventRecallExecuted, 0)
	repo := newFakeOutboxRepo(ev)
	broker := newFakeBroker()

	p := newProcessor(repo, broker, 3)
	require.NoError(t, p.processEvents(context.Background()))

	require.Len(t, broker.published[messaging.ChannelRecallExecuted], 1)
	msg := broker.published[messaging.ChannelRecallExecuted][0]
	assert.Equal(t, model.EventRecallExecuted, msg.Type)
	assert.Equal(t, model.OutboxStatusProcessed, repo.statuses[ev.ID])
}

func TestProcessEventsRoutesByEventType(t *testing.T) {
	treat := outboxEvent(model.EventTreatmentCreated, 0)
	custom := outboxEvent("trace.lot.created", 0)
	repo := newFakeOutboxRepo(treat, custom)
	broker := newFakeBroker()

	p := newProcessor(repo, broker, 3)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Len(t, broker.published[messaging.ChannelTreatmentCreated], 1)
	// Unknown types publish under their own name.
	assert.Len(t, broker.published["trace.lot.created"], 1)
}

func TestPublishFailureSchedulesRetry(t *testing.T) {
	ev := outboxEvent(model.EventRecallExecuted, 0)
	repo := newFakeOutboxRepo(ev)
	broker := newFakeBroker()
	broker.err = errors.New("redis: connection refused")

	p := newProcessor(repo, broker, 3)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Equal(t, model.OutboxStatusRetry, repo.statuses[ev.ID])
	assert.Equal(t, "redis: connection refused", repo.errors[ev.ID])
}

func TestPublishFailureExhaustsRetries(t *testing.T) {
	ev := outboxEvent(model.EventRecallExecuted, 2)
	repo := newFakeOutboxRepo(ev)
	broker := newFakeBroker()
	broker.err = errors.New("redis: connection refused")

	p := newProcessor(repo, broker, 3)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Equal(t, model.OutboxStatusFailed, repo.statuses[ev.ID])
}

func TestNewOutboxProcessorRejectsZeroConfig(t *testing.T) {
	repo := newFakeOutboxRepo()
	broker := newFakeBroker()
	log := logger.NewLogger(&logger.Config{Output: io.Discard})

	assert.Panics(t, func() {
		NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
			PollInterval: time.Second, MaxRetries: 3,
		}, log, testMetrics)
	})
	assert.Panics(t, func() {
		NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
			BatchSize: 10, MaxRetries: 3,
		}, log, testMetrics)
	})
}
