package registry

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	want := payloads.ConnectionAcceptedEvent{
		RequestID:  uuid.New(),
		SenderID:   uuid.New(),
		ReceiverID: uuid.New(),
	}
	event := models.OutboxEvent{
		EventType:     enums.EventConnectionAccepted,
		AggregateType: enums.AggregateConnectionRequest,
		AggregateID:   want.RequestID,
		Payload:       mustEnvelope(t, mustMarshal(t, want)),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "accept-connection-request-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.ConnectionAcceptedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if diff := cmp.Diff(want, *payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
	if resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope missing occurred_at")
	}
}

func TestEventRegistryTopics(t *testing.T) {
	reg := newTestEventRegistry(t)
	got := reg.Topics()
	sort.Strings(got)
	want := []string{
		"accept-connection-request-topic",
		"post-created-topic",
		"post-liked-topic",
		"send-connection-request-topic",
		"user-created-topic",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("topics mismatch (-want +got):\n%s", diff)
	}
}

func TestEventRegistryResolveFailures(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "connection_rejected",
			AggregateType: enums.AggregateConnectionRequest,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventPostLiked,
			AggregateType: enums.AggregateUser,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventPostCreated,
			AggregateType: enums.AggregatePost,
			AggregateID:   uuid.Nil,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventUserCreated,
			AggregateType: enums.AggregateUser,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"malformed envelope": {
			EventType:     enums.EventUserCreated,
			AggregateType: enums.AggregateUser,
			AggregateID:   uuid.New(),
			Payload:       []byte("{"),
		},
		"payload shape": {
			EventType:     enums.EventPostCreated,
			AggregateType: enums.AggregatePost,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{"postId":42}`)),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			if err == nil {
				t.Fatalf("expected error")
			}
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %T", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	cfg := testEventingConfig()
	cfg.PostLikedTopic = ""
	if _, err := NewEventRegistry(cfg); err == nil {
		t.Fatal("expected missing topic to fail")
	}
}

func testEventingConfig() config.EventingConfig {
	return config.EventingConfig{
		ConnectionRequestedTopic: "send-connection-request-topic",
		ConnectionAcceptedTopic:  "accept-connection-request-topic",
		PostCreatedTopic:         "post-created-topic",
		PostLikedTopic:           "post-liked-topic",
		UserCreatedTopic:         "user-created-topic",
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(testEventingConfig())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
