package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/innocapforge/forge-backend/pkg/config"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// Descriptors lists every domain event with its aggregate and payload type.
// All of them publish to the domain topic.
func Descriptors(topic string) []EventDescriptor {
	return []EventDescriptor{
		{
			EventType:      enums.EventProjectCreated,
			AggregateType:  enums.AggregateProject,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.ProjectCreatedEvent{} },
		},
		{
			EventType:      enums.EventProjectReviewed,
			AggregateType:  enums.AggregateProject,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.ProjectReviewedEvent{} },
		},
		{
			EventType:      enums.EventMilestoneSubmitted,
			AggregateType:  enums.AggregateMilestone,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.MilestoneSubmittedEvent{} },
		},
		{
			EventType:      enums.EventMilestoneApproved,
			AggregateType:  enums.AggregateMilestone,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.MilestoneDecidedEvent{} },
		},
		{
			EventType:      enums.EventMilestoneRejected,
			AggregateType:  enums.AggregateMilestone,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.MilestoneDecidedEvent{} },
		},
		{
			EventType:      enums.EventFundsReleased,
			AggregateType:  enums.AggregateEscrow,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.FundsReleasedEvent{} },
		},
		{
			EventType:      enums.EventInvestmentCreated,
			AggregateType:  enums.AggregateInvestment,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.InvestmentCreatedEvent{} },
		},
		{
			EventType:      enums.EventReleaseRuleTriggered,
			AggregateType:  enums.AggregateReleaseRule,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.ReleaseRuleTriggeredEvent{} },
		},
		{
			EventType:      enums.EventMessageSent,
			AggregateType:  enums.AggregateMessage,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.MessageSentEvent{} },
		},
	}
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range Descriptors(topic) {
		reg.register(desc)
	}
	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
