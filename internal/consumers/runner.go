// Package consumers runs domain event handlers on top of the event bus. The
// runner owns the delivery contract shared by every consumer: envelope
// decoding, event-type filtering, per-consumer idempotency and the mapping of
// handler outcomes to Ack/Nack.
package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/eventbus"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/metrics"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/registry"
)

// Handler turns one decoded event into side effects. Returning an error
// for which pkgerrors.IsTransient holds asks for redelivery; any other error is
// logged and the message is dropped.
type Handler interface {
	Name() string
	EventTypes() []enums.OutboxEventType
	Handle(ctx context.Context, event Event) error
}

// Event is what a Handler receives.
type Event struct {
	ID       uuid.UUID
	Type     enums.OutboxEventType
	Envelope outbox.PayloadEnvelope
	// Payload is a pointer to the typed struct from pkg/outbox/payloads.
	Payload any
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

// Outcome labels recorded per message.
const (
	OutcomeHandled   = "handled"
	OutcomeSkipped   = "skipped"
	OutcomeDuplicate = "duplicate"
	OutcomeMalformed = "malformed"
	OutcomeRetry     = "retry"
	OutcomeFailed    = "failed"
	OutcomePanic     = "panic"
)

type RunnerParams struct {
	Handler     Handler
	Idempotency idempotencyChecker
	Decoders    payloadDecoder
	Metrics     *metrics.NotificationMetrics
	Logger      *logger.Logger
}

// Runner adapts a Handler to eventbus.Handler.
type Runner struct {
	handler     Handler
	accepts     map[enums.OutboxEventType]struct{}
	idempotency idempotencyChecker
	decoders    payloadDecoder
	metrics     *metrics.NotificationMetrics
	logg        *logger.Logger
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Handler == nil {
		return nil, fmt.Errorf("handler required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := params.Decoders
	if decoders == nil {
		decoders = registry.DefaultDecoders()
	}
	accepts := make(map[enums.OutboxEventType]struct{})
	for _, t := range params.Handler.EventTypes() {
		accepts[t] = struct{}{}
	}
	if len(accepts) == 0 {
		return nil, fmt.Errorf("handler %s accepts no event types", params.Handler.Name())
	}
	return &Runner{
		handler:     params.Handler,
		accepts:     accepts,
		idempotency: params.Idempotency,
		decoders:    decoders,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// Name returns the consumer name of the wrapped handler.
func (r *Runner) Name() string {
	return r.handler.Name()
}

// Process settles one delivery. It satisfies eventbus.Handler.
func (r *Runner) Process(ctx context.Context, msg *eventbus.Message) (result eventbus.Result) {
	consumer := r.handler.Name()
	logCtx := r.logg.WithConsumer(ctx, consumer)
	logCtx = r.logg.WithFields(logCtx, map[string]any{
		"message_id":       msg.ID,
		"topic":            msg.Topic,
		"event_type":       msg.Attr(eventbus.AttrEventType),
		"delivery_attempt": msg.DeliveryAttempt,
	})

	defer func() {
		if rec := recover(); rec != nil {
			r.logg.Error(logCtx, "consumer handler panicked", fmt.Errorf("panic: %v\n%s", rec, debug.Stack()))
			r.metrics.IncHandled(consumer, OutcomePanic)
			result = eventbus.Ack
		}
	}()

	envelope, eventID, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		r.logg.Error(logCtx, "failed to decode envelope", err)
		r.metrics.IncHandled(consumer, OutcomeMalformed)
		return eventbus.Ack
	}
	logCtx = r.logg.WithEventID(logCtx, eventID.String())

	eventType, err := enums.ParseOutboxEventType(msg.Attr(eventbus.AttrEventType))
	if err != nil {
		r.logg.Warn(logCtx, "skipping message with unknown event type")
		r.metrics.IncHandled(consumer, OutcomeSkipped)
		return eventbus.Ack
	}
	if _, ok := r.accepts[eventType]; !ok {
		r.logg.Debug(logCtx, "event not handled by consumer")
		r.metrics.IncHandled(consumer, OutcomeSkipped)
		return eventbus.Ack
	}

	already, err := r.idempotency.CheckAndMarkProcessed(ctx, consumer, eventID)
	if err != nil {
		r.logg.Error(logCtx, "idempotency check failed", err)
		r.metrics.IncHandled(consumer, OutcomeRetry)
		return eventbus.Nack
	}
	if already {
		r.logg.Info(logCtx, "event already processed")
		r.metrics.IncHandled(consumer, OutcomeDuplicate)
		return eventbus.Ack
	}

	payload, err := r.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		r.logg.Error(logCtx, "failed to decode payload", err)
		r.metrics.IncHandled(consumer, OutcomeMalformed)
		return eventbus.Ack
	}

	err = r.handler.Handle(logCtx, Event{
		ID:       eventID,
		Type:     eventType,
		Envelope: envelope,
		Payload:  payload,
	})
	switch {
	case err == nil:
		r.metrics.IncHandled(consumer, OutcomeHandled)
		return eventbus.Ack
	case pkgerrors.IsTransient(err):
		r.logg.Warn(logCtx, "transient handler failure; releasing event for redelivery: "+err.Error())
		// The marker must be released even when shutdown canceled ctx.
		if delErr := r.idempotency.Delete(context.WithoutCancel(ctx), consumer, eventID); delErr != nil {
			r.logg.Error(logCtx, "failed to release idempotency marker", delErr)
		}
		r.metrics.IncHandled(consumer, OutcomeRetry)
		return eventbus.Nack
	default:
		r.logg.Error(logCtx, "handler failed; dropping event", err)
		r.metrics.IncHandled(consumer, OutcomeFailed)
		return eventbus.Ack
	}
}

// Binding ties a runner to the subscription it consumes.
type Binding struct {
	Subscription eventbus.Subscription
	Runner       *Runner
}

// Run subscribes every binding and blocks until ctx is canceled or one
// subscription fails.
func Run(ctx context.Context, sub eventbus.Subscriber, bindings []Binding, logg *logger.Logger) error {
	if sub == nil {
		return fmt.Errorf("subscriber required")
	}
	if len(bindings) == 0 {
		return fmt.Errorf("no consumer bindings")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range bindings {
		b := b
		g.Go(func() error {
			subCtx := logg.WithFields(gctx, map[string]any{
				"consumer":     b.Runner.Name(),
				"subscription": b.Subscription.Name,
				"topic":        b.Subscription.Topic,
			})
			logg.Info(subCtx, "consumer subscribed")
			if err := sub.Subscribe(gctx, b.Subscription, b.Runner.Process); err != nil {
				return fmt.Errorf("%s on %s: %w", b.Runner.Name(), b.Subscription.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
