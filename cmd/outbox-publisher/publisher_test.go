package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/config"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/metrics"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/outbox/payloads"
	"github.com/innocapforge/forge-backend/pkg/outbox/registry"
)

func TestDrainContinuesAfterTransientFailure(t *testing.T) {
	first, second := decidedEvent(t, 0), decidedEvent(t, 0)
	store := &fakeEventStore{batch: []models.OutboxEvent{first, second}}
	topic := &fakeTopic{results: []publishResult{
		fakeResult{err: errors.New("unavailable")},
		fakeResult{},
	}}
	reg := prometheus.NewRegistry()
	p := newTestPublisher(t, store, topic, &fakeResolver{}, &fakeDeadLetters{}, metrics.NewOutboxMetrics(reg))

	handled, err := p.drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, handled)
	assert.Equal(t, []uuid.UUID{first.ID}, store.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, store.published)
	require.Len(t, topic.messages, 2)
	assert.Equal(t, string(enums.EventMilestoneApproved), topic.messages[1].Attributes["event_type"])
	assert.Equal(t, second.AggregateID.String(), topic.messages[1].Attributes["aggregate_id"])

	gathered, err := testutil.GatherAndCount(reg, "forge_outbox_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, gathered)
}

func TestDrainDeadLettersUnresolvableEvent(t *testing.T) {
	event := decidedEvent(t, 0)
	store := &fakeEventStore{batch: []models.OutboxEvent{event}}
	dlq := &fakeDeadLetters{}
	resolver := &fakeResolver{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	topic := &fakeTopic{}
	p := newTestPublisher(t, store, topic, resolver, dlq, nil)

	_, err := p.drain(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
	assert.Equal(t, event.ID, dlq.entries[0].EventID)
	assert.Equal(t, []uuid.UUID{event.ID}, store.terminal)
	assert.Empty(t, topic.messages)
}

func TestDrainDeadLettersAfterMaxAttempts(t *testing.T) {
	event := decidedEvent(t, 2)
	store := &fakeEventStore{batch: []models.OutboxEvent{event}}
	dlq := &fakeDeadLetters{}
	topic := &fakeTopic{results: []publishResult{fakeResult{err: errors.New("deadline exceeded")}}}
	p := newTestPublisher(t, store, topic, &fakeResolver{}, dlq, nil)
	p.maxAttempts = 3

	_, err := p.drain(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	require.NotNil(t, dlq.entries[0].ErrorMessage)
	assert.Contains(t, *dlq.entries[0].ErrorMessage, "deadline exceeded")
	assert.Empty(t, store.failed)
}

func TestDrainAbortsWhenMarkFails(t *testing.T) {
	event := decidedEvent(t, 0)
	store := &fakeEventStore{batch: []models.OutboxEvent{event}, markErr: errors.New("db gone")}
	p := newTestPublisher(t, store, &fakeTopic{}, &fakeResolver{}, &fakeDeadLetters{}, nil)

	_, err := p.drain(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark published")
}

func TestMissingTopicIsPermanent(t *testing.T) {
	event := decidedEvent(t, 0)
	store := &fakeEventStore{batch: []models.OutboxEvent{event}}
	dlq := &fakeDeadLetters{}
	p := newTestPublisher(t, store, nil, &fakeResolver{}, dlq, nil)
	p.topics = func(string) topicPublisher { return nil }

	_, err := p.drain(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestNewPublisherAppliesDefaults(t *testing.T) {
	p, err := NewPublisher(PublisherParams{
		Logger:     testLogger(),
		DB:         fakeDB{},
		PubSub:     fakePubSub{},
		Events:     &fakeEventStore{},
		DeadLetter: &fakeDeadLetters{},
		Registry:   &fakeResolver{},
	})
	require.NoError(t, err)
	assert.Equal(t, defaultBatchSize, p.batchSize)
	assert.Equal(t, defaultMaxAttempts, p.maxAttempts)
	assert.Equal(t, defaultPollInterval, p.pollInterval)

	_, err = NewPublisher(PublisherParams{Logger: testLogger()})
	require.Error(t, err)
}

func newTestPublisher(t *testing.T, store eventStore, topic *fakeTopic, resolver eventResolver, dlq deadLetterStore, m *metrics.OutboxMetrics) *Publisher {
	t.Helper()
	p, err := NewPublisher(PublisherParams{
		Outbox:     config.OutboxConfig{BatchSize: 10, MaxAttempts: 5, PollIntervalMS: 10},
		Logger:     testLogger(),
		DB:         fakeDB{},
		PubSub:     fakePubSub{},
		Events:     store,
		DeadLetter: dlq,
		Registry:   resolver,
		Metrics:    m,
		Topics: func(string) topicPublisher {
			if topic == nil {
				return nil
			}
			return topic
		},
	})
	require.NoError(t, err)
	return p
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard})
}

func decidedEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	data, err := json.Marshal(payloads.MilestoneDecidedEvent{})
	require.NoError(t, err)
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventMilestoneApproved,
		AggregateType: enums.AggregateMilestone,
		AggregateID:   uuid.New(),
		Payload:       raw,
		CreatedAt:     time.Now().UTC(),
		AttemptCount:  attempts,
	}
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error { return nil }

func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type fakeEventStore struct {
	batch     []models.OutboxEvent
	markErr   error
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeEventStore) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.batch, nil
}

func (f *fakeEventStore) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeEventStore) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeEventStore) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDeadLetters struct {
	entries []models.OutboxDLQ
}

func (f *fakeDeadLetters) BuryTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, at time.Time) error {
	msg := cause.Error()
	f.entries = append(f.entries, models.OutboxDLQ{
		EventID:      event.ID,
		EventType:    event.EventType,
		ErrorReason:  reason,
		ErrorMessage: &msg,
		AttemptCount: event.AttemptCount,
		FailedAt:     at,
	})
	return nil
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         "forge-domain-events",
		},
		Envelope: envelope,
		Payload:  &payloads.MilestoneDecidedEvent{},
	}, nil
}

type fakeTopic struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakeTopic) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return fakeResult{}
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next
}

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}
