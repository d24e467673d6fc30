package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/linkedge-backend/internal/consumers"
	"github.com/angelmondragon/linkedge-backend/internal/graphclient"
	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/metrics"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
)

const (
	contentNotifierName = "content-notifier"

	defaultLookupAttempts = 4
	defaultLookupBackoff  = 250 * time.Millisecond
	defaultLookupCap      = 5 * time.Second
)

// ContentNotifierParams wires a ContentNotifier.
type ContentNotifierParams struct {
	Fanout        *Fanout
	Graph         graphclient.Lookup
	Metrics       *metrics.NotificationMetrics
	Logger        *logger.Logger
	LookupAttempt int
	LookupBackoff time.Duration
	LookupCap     time.Duration
}

// ContentNotifier fans new posts out to the creator's first-degree network
// and tells creators about likes.
type ContentNotifier struct {
	fanout        *Fanout
	graph         graphclient.Lookup
	metrics       *metrics.NotificationMetrics
	logg          *logger.Logger
	lookupAttempt int
	lookupBackoff time.Duration
	lookupCap     time.Duration
}

var _ consumers.Handler = (*ContentNotifier)(nil)

func NewContentNotifier(params ContentNotifierParams) (*ContentNotifier, error) {
	if params.Fanout == nil {
		return nil, errors.New("fanout required")
	}
	if params.Graph == nil {
		return nil, errors.New("graph lookup required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	n := &ContentNotifier{
		fanout:        params.Fanout,
		graph:         params.Graph,
		metrics:       params.Metrics,
		logg:          params.Logger,
		lookupAttempt: params.LookupAttempt,
		lookupBackoff: params.LookupBackoff,
		lookupCap:     params.LookupCap,
	}
	if n.lookupAttempt <= 0 {
		n.lookupAttempt = defaultLookupAttempts
	}
	if n.lookupBackoff <= 0 {
		n.lookupBackoff = defaultLookupBackoff
	}
	if n.lookupCap <= 0 {
		n.lookupCap = defaultLookupCap
	}
	return n, nil
}

// ContentNotifierFromConfig applies the lookup retry settings from cfg.
func ContentNotifierFromConfig(cfg config.NotificationsConfig, fanout *Fanout, graph graphclient.Lookup, m *metrics.NotificationMetrics, logg *logger.Logger) (*ContentNotifier, error) {
	return NewContentNotifier(ContentNotifierParams{
		Fanout:        fanout,
		Graph:         graph,
		Metrics:       m,
		Logger:        logg,
		LookupAttempt: cfg.LookupAttempts,
		LookupBackoff: cfg.LookupBackoff,
		LookupCap:     cfg.LookupBackoffLimit,
	})
}

func (n *ContentNotifier) Name() string { return contentNotifierName }

func (n *ContentNotifier) EventTypes() []enums.OutboxEventType {
	return []enums.OutboxEventType{enums.EventPostCreated, enums.EventPostLiked}
}

func (n *ContentNotifier) Handle(ctx context.Context, event consumers.Event) error {
	switch payload := event.Payload.(type) {
	case *payloads.PostCreatedEvent:
		return n.handlePostCreated(ctx, event.ID, payload)
	case *payloads.PostLikedEvent:
		return dispatchOne(ctx, n.fanout, NotificationJob{
			EventID:     event.ID,
			RecipientID: payload.CreatorID,
			Type:        enums.NotificationTypePostLiked,
			Message:     postLikedMessage(payload.PostID, payload.LikedByUserID),
		})
	default:
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
}

func (n *ContentNotifier) handlePostCreated(ctx context.Context, eventID uuid.UUID, payload *payloads.PostCreatedEvent) error {
	if payload.CreatorID == uuid.Nil {
		return errors.New("creator id missing from payload")
	}
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"post_id":    payload.PostID.String(),
		"creator_id": payload.CreatorID.String(),
	})

	people, err := n.lookup(ctx, payload.CreatorID)
	if err != nil {
		if ctx.Err() != nil {
			return pkgerrors.Wrap(pkgerrors.CodeTransient, ctx.Err(), "first-degree lookup interrupted")
		}
		if graphclient.IsTransient(err) {
			n.logg.Error(logCtx, "first-degree lookup exhausted; dropping post_created", err)
			n.metrics.IncDropped(string(enums.EventPostCreated))
			return nil
		}
		return fmt.Errorf("first-degree lookup: %w", err)
	}

	message := postCreatedMessage(payload.CreatorID)
	seen := make(map[uuid.UUID]struct{}, len(people))
	jobs := make([]NotificationJob, 0, len(people))
	for _, person := range people {
		if person.UserID == uuid.Nil || person.UserID == payload.CreatorID {
			continue
		}
		if _, dup := seen[person.UserID]; dup {
			continue
		}
		seen[person.UserID] = struct{}{}
		jobs = append(jobs, NotificationJob{
			EventID:     eventID,
			RecipientID: person.UserID,
			Type:        enums.NotificationTypePostCreated,
			Message:     message,
		})
	}
	n.metrics.ObserveRecipients(len(jobs))
	if len(jobs) == 0 {
		return nil
	}

	res := n.fanout.Dispatch(ctx, jobs)
	if res.Failed > 0 && ctx.Err() != nil {
		// Recipients already written are skipped on redelivery by the inbox unique index.
		return pkgerrors.Wrap(pkgerrors.CodeTransient, ctx.Err(), "post_created fan-out interrupted")
	}
	if res.Failed > 0 {
		n.logg.Warn(n.logg.WithFields(logCtx, map[string]any{
			"sent":   res.Sent,
			"failed": res.Failed,
		}), "post_created fan-out finished with failures")
		return nil
	}
	n.logg.Info(n.logg.WithField(logCtx, "recipients", res.Sent), "post_created fan-out complete")
	return nil
}

func (n *ContentNotifier) lookup(ctx context.Context, creatorID uuid.UUID) ([]graphclient.Person, error) {
	backoff := retry.NewExponential(n.lookupBackoff)
	backoff = retry.WithCappedDuration(n.lookupCap, backoff)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(uint64(n.lookupAttempt-1), backoff)

	var people []graphclient.Person
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		found, err := n.graph.FirstDegreeConnections(ctx, creatorID)
		if err != nil {
			if graphclient.IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		people = found
		return nil
	})
	return people, err
}
