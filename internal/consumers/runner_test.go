package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/eventbus"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
)

type fakeHandler struct {
	types  []enums.OutboxEventType
	handle func(ctx context.Context, event Event) error
	calls  int
}

func (h *fakeHandler) Name() string                        { return "test-consumer" }
func (h *fakeHandler) EventTypes() []enums.OutboxEventType { return h.types }
func (h *fakeHandler) Handle(ctx context.Context, event Event) error {
	h.calls++
	if h.handle == nil {
		return nil
	}
	return h.handle(ctx, event)
}

type fakeIdempotency struct {
	mu      sync.Mutex
	seen    map[uuid.UUID]bool
	err     error
	deleted []uuid.UUID
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{seen: map[uuid.UUID]bool{}}
}

func (f *fakeIdempotency) CheckAndMarkProcessed(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen[id] {
		return true, nil
	}
	f.seen[id] = true
	return false, nil
}

func (f *fakeIdempotency) Delete(_ context.Context, _ string, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func mustRunner(t *testing.T, h Handler, idem idempotencyChecker) *Runner {
	t.Helper()
	r, err := NewRunner(RunnerParams{Handler: h, Idempotency: idem, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func buildMessage(t *testing.T, eventType enums.OutboxEventType, eventID uuid.UUID, data any) *eventbus.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &eventbus.Message{
		ID:         "m-1",
		Topic:      "send-connection-request-topic",
		Data:       body,
		Attributes: map[string]string{eventbus.AttrEventType: string(eventType), eventbus.AttrEventID: eventID.String()},
	}
}

func TestProcessDeliversTypedPayload(t *testing.T) {
	sender, receiver := uuid.New(), uuid.New()
	var got *payloads.ConnectionRequestedEvent
	h := &fakeHandler{
		types: []enums.OutboxEventType{enums.EventConnectionRequested},
		handle: func(_ context.Context, event Event) error {
			got = event.Payload.(*payloads.ConnectionRequestedEvent)
			return nil
		},
	}
	r := mustRunner(t, h, newFakeIdempotency())

	msg := buildMessage(t, enums.EventConnectionRequested, uuid.New(), payloads.ConnectionRequestedEvent{SenderID: sender, ReceiverID: receiver})
	if res := r.Process(context.Background(), msg); res != eventbus.Ack {
		t.Fatalf("expected ack, got %s", res)
	}
	if got == nil || got.SenderID != sender || got.ReceiverID != receiver {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestProcessDuplicateIsAckedWithoutHandling(t *testing.T) {
	h := &fakeHandler{types: []enums.OutboxEventType{enums.EventPostLiked}}
	r := mustRunner(t, h, newFakeIdempotency())
	msg := buildMessage(t, enums.EventPostLiked, uuid.New(), payloads.PostLikedEvent{PostID: uuid.New()})

	r.Process(context.Background(), msg)
	if res := r.Process(context.Background(), msg); res != eventbus.Ack {
		t.Fatalf("expected ack for duplicate, got %s", res)
	}
	if h.calls != 1 {
		t.Fatalf("expected handler called once, got %d", h.calls)
	}
}

func TestProcessSkipsOtherEventTypes(t *testing.T) {
	h := &fakeHandler{types: []enums.OutboxEventType{enums.EventPostLiked}}
	idem := newFakeIdempotency()
	r := mustRunner(t, h, idem)

	msg := buildMessage(t, enums.EventPostCreated, uuid.New(), payloads.PostCreatedEvent{})
	if res := r.Process(context.Background(), msg); res != eventbus.Ack {
		t.Fatalf("expected ack, got %s", res)
	}
	msg.Attributes[eventbus.AttrEventType] = "not_an_event"
	if res := r.Process(context.Background(), msg); res != eventbus.Ack {
		t.Fatalf("expected ack for unknown type, got %s", res)
	}
	if h.calls != 0 || len(idem.seen) != 0 {
		t.Fatal("skipped events must not reach the handler or the idempotency store")
	}
}

func TestProcessMalformedEnvelopeIsAcked(t *testing.T) {
	h := &fakeHandler{types: []enums.OutboxEventType{enums.EventPostLiked}}
	r := mustRunner(t, h, newFakeIdempotency())
	msg := &eventbus.Message{Data: []byte("{not json"), Attributes: map[string]string{eventbus.AttrEventType: "post_liked"}}
	if res := r.Process(context.Background(), msg); res != eventbus.Ack {
		t.Fatalf("expected ack, got %s", res)
	}
	if h.calls != 0 {
		t.Fatal("handler must not run")
	}
}

func TestProcessMalformedPayloadIsAcked(t *testing.T) {
	h := &fakeHandler{types: []enums.OutboxEventType{enums.EventPostLiked}}
	r := mustRunner(t, h, newFakeIdempotency())
	msg := buildMessage(t, enums.EventPostLiked, uuid.New(), "just a string")
	if res := r.Process(context.Background(), msg); res != eventbus.Ack {
		t.Fatalf("expected ack, got %s", res)
	}
	if h.calls != 0 {
		t.Fatal("handler must not run")
	}
}

func TestProcessIdempotencyStoreErrorNacks(t *testing.T) {
	h := &fakeHandler{types: []enums.OutboxEventType{enums.EventPostLiked}}
	idem := newFakeIdempotency()
	idem.err = errors.New("redis down")
	r := mustRunner(t, h, idem)
	msg := buildMessage(t, enums.EventPostLiked, uuid.New(), payloads.PostLikedEvent{})
	if res := r.Process(context.Background(), msg); res != eventbus.Nack {
		t.Fatalf("expected nack, got %s", res)
	}
}

func TestProcessTransientErrorReleasesMarkerAndNacks(t *testing.T) {
	h := &fakeHandler{
		types: []enums.OutboxEventType{enums.EventConnectionAccepted},
		handle: func(context.Context, Event) error {
			return pkgerrors.New(pkgerrors.CodeTransient, "dispatcher unavailable")
		},
	}
	idem := newFakeIdempotency()
	r := mustRunner(t, h, idem)
	eventID := uuid.New()
	msg := buildMessage(t, enums.EventConnectionAccepted, eventID, payloads.ConnectionAcceptedEvent{})

	if res := r.Process(context.Background(), msg); res != eventbus.Nack {
		t.Fatalf("expected nack, got %s", res)
	}
	if len(idem.deleted) != 1 || idem.deleted[0] != eventID {
		t.Fatalf("expected marker for %s released, got %v", eventID, idem.deleted)
	}

	h.handle = nil
	if res := r.Process(context.Background(), msg); res != eventbus.Ack || h.calls != 2 {
		t.Fatalf("redelivery should be handled again, res=%s calls=%d", res, h.calls)
	}
}

func TestProcessPermanentErrorAndPanicAreAcked(t *testing.T) {
	h := &fakeHandler{
		types: []enums.OutboxEventType{enums.EventPostCreated},
		handle: func(context.Context, Event) error {
			return pkgerrors.New(pkgerrors.CodeInvalidRequest, "creator missing")
		},
	}
	idem := newFakeIdempotency()
	r := mustRunner(t, h, idem)
	if res := r.Process(context.Background(), buildMessage(t, enums.EventPostCreated, uuid.New(), payloads.PostCreatedEvent{})); res != eventbus.Ack {
		t.Fatalf("expected ack, got %s", res)
	}
	if len(idem.deleted) != 0 {
		t.Fatal("permanent failures keep the marker")
	}

	h.handle = func(context.Context, Event) error { panic("boom") }
	if res := r.Process(context.Background(), buildMessage(t, enums.EventPostCreated, uuid.New(), payloads.PostCreatedEvent{})); res != eventbus.Ack {
		t.Fatalf("expected ack after panic, got %s", res)
	}
}

func TestNewRunnerValidates(t *testing.T) {
	if _, err := NewRunner(RunnerParams{}); err == nil {
		t.Fatal("expected missing handler to fail")
	}
	if _, err := NewRunner(RunnerParams{Handler: &fakeHandler{}, Idempotency: newFakeIdempotency(), Logger: logger.Nop()}); err == nil {
		t.Fatal("expected handler without event types to fail")
	}
}

func TestRunDeliversThroughBus(t *testing.T) {
	bus := eventbus.NewMemory()
	handled := make(chan struct{}, 1)
	h := &fakeHandler{
		types: []enums.OutboxEventType{enums.EventPostLiked},
		handle: func(context.Context, Event) error {
			handled <- struct{}{}
			return nil
		},
	}
	r := mustRunner(t, h, newFakeIdempotency())
	sub := eventbus.Subscription{Topic: "post-liked-topic", Name: "content-notifier-post-liked"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, bus, []Binding{{Subscription: sub, Runner: r}}, logger.Nop()) }()

	deadline := time.Now().Add(2 * time.Second)
	for bus.Subscribers(sub.Topic) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	msg := buildMessage(t, enums.EventPostLiked, uuid.New(), payloads.PostLikedEvent{PostID: uuid.New()})
	msg.Topic = sub.Topic
	if _, err := bus.Publish(ctx, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not handled")
	}
	cancel()
	<-done
}
