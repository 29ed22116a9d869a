package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innocapforge/forge-backend/pkg/config"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)
	milestoneID := uuid.New()

	event := models.OutboxEvent{
		EventType:     enums.EventFundsReleased,
		AggregateType: enums.AggregateEscrow,
		AggregateID:   uuid.New(),
		Payload: mustEnvelope(t, payloads.FundsReleasedEvent{
			MilestoneID: milestoneID,
			Amount:      decimal.RequireFromString("2500.00"),
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "domain-topic", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.FundsReleasedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, milestoneID, payload.MilestoneID)
	assert.True(t, payload.Amount.Equal(decimal.RequireFromString("2500")))
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestEventRegistryResolveFailuresAreNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("order_created"),
			AggregateType: enums.AggregateProject,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, map[string]string{"a": "b"}),
		},
		"aggregate mismatch": {
			EventType:     enums.EventProjectCreated,
			AggregateType: enums.AggregateMilestone,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, payloads.ProjectCreatedEvent{}),
		},
		"missing aggregate id": {
			EventType:     enums.EventProjectCreated,
			AggregateType: enums.AggregateProject,
			Payload:       mustEnvelope(t, payloads.ProjectCreatedEvent{}),
		},
		"null data": {
			EventType:     enums.EventProjectCreated,
			AggregateType: enums.AggregateProject,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, nil),
		},
		"broken envelope": {
			EventType:     enums.EventProjectCreated,
			AggregateType: enums.AggregateProject,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry))
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "  "})
	assert.Error(t, err)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "domain-topic"})
	require.NoError(t, err)
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return env
}
