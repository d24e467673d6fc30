package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
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

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.EventingConfig) (*EventRegistry, error) {
	topics := map[string]string{
		"connection requested": cfg.ConnectionRequestedTopic,
		"connection accepted":  cfg.ConnectionAcceptedTopic,
		"post created":         cfg.PostCreatedTopic,
		"post liked":           cfg.PostLikedTopic,
		"user created":         cfg.UserCreatedTopic,
	}
	for name, topic := range topics {
		if topic == "" {
			return nil, fmt.Errorf("%s topic is required", name)
		}
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventConnectionRequested,
			AggregateType:  enums.AggregateConnectionRequest,
			Topic:          cfg.ConnectionRequestedTopic,
			PayloadFactory: func() interface{} { return &payloads.ConnectionRequestedEvent{} },
		},
		{
			EventType:      enums.EventConnectionAccepted,
			AggregateType:  enums.AggregateConnectionRequest,
			Topic:          cfg.ConnectionAcceptedTopic,
			PayloadFactory: func() interface{} { return &payloads.ConnectionAcceptedEvent{} },
		},
		{
			EventType:      enums.EventPostCreated,
			AggregateType:  enums.AggregatePost,
			Topic:          cfg.PostCreatedTopic,
			PayloadFactory: func() interface{} { return &payloads.PostCreatedEvent{} },
		},
		{
			EventType:      enums.EventPostLiked,
			AggregateType:  enums.AggregatePost,
			Topic:          cfg.PostLikedTopic,
			PayloadFactory: func() interface{} { return &payloads.PostLikedEvent{} },
		},
		{
			EventType:      enums.EventUserCreated,
			AggregateType:  enums.AggregateUser,
			Topic:          cfg.UserCreatedTopic,
			PayloadFactory: func() interface{} { return &payloads.UserCreatedEvent{} },
		},
	} {
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

// Topics returns the distinct topics the registry publishes to.
func (r *EventRegistry) Topics() []string {
	seen := make(map[string]struct{}, len(r.entries))
	var topics []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		topics = append(topics, desc.Topic)
	}
	return topics
}

// Descriptor returns the descriptor registered for eventType.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
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

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
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

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
