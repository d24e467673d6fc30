package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/internal/consumers"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
)

const connectionNotifierName = "connection-notifier"

// ConnectionNotifier tells the receiver about a new request and the original
// sender about an accepted one.
type ConnectionNotifier struct {
	fanout *Fanout
}

var _ consumers.Handler = (*ConnectionNotifier)(nil)

func NewConnectionNotifier(fanout *Fanout) (*ConnectionNotifier, error) {
	if fanout == nil {
		return nil, errors.New("fanout required")
	}
	return &ConnectionNotifier{fanout: fanout}, nil
}

func (n *ConnectionNotifier) Name() string { return connectionNotifierName }

func (n *ConnectionNotifier) EventTypes() []enums.OutboxEventType {
	return []enums.OutboxEventType{enums.EventConnectionRequested, enums.EventConnectionAccepted}
}

func (n *ConnectionNotifier) Handle(ctx context.Context, event consumers.Event) error {
	var job NotificationJob
	switch payload := event.Payload.(type) {
	case *payloads.ConnectionRequestedEvent:
		job = NotificationJob{
			EventID:     event.ID,
			RecipientID: payload.ReceiverID,
			Type:        enums.NotificationTypeConnectionRequest,
			Message:     connectionRequestedMessage(payload.SenderID),
		}
	case *payloads.ConnectionAcceptedEvent:
		job = NotificationJob{
			EventID:     event.ID,
			RecipientID: payload.SenderID,
			Type:        enums.NotificationTypeConnectionAccepted,
			Message:     connectionAcceptedMessage(payload.ReceiverID),
		}
	default:
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return dispatchOne(ctx, n.fanout, job)
}

// dispatchOne sends a single-recipient job. A transient or interrupted failure
// is surfaced so the event is redelivered; the inbox dedupes on (event, recipient).
func dispatchOne(ctx context.Context, fanout *Fanout, job NotificationJob) error {
	if job.RecipientID == uuid.Nil {
		return errors.New("recipient id missing from payload")
	}
	res := fanout.Dispatch(ctx, []NotificationJob{job})
	if res.Failed == 0 {
		return nil
	}
	if ctx.Err() != nil {
		return pkgerrors.Wrap(pkgerrors.CodeTransient, ctx.Err(), "dispatch notification interrupted")
	}
	if pkgerrors.IsTransient(res.Err) || errors.Is(res.Err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeTransient, res.Err, "dispatch notification")
	}
	return res.Err
}
