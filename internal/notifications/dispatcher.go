package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
)

// NotificationJob is one message addressed to one recipient. EventID ties the
// job to the event that produced it so redeliveries do not duplicate it.
type NotificationJob struct {
	EventID     uuid.UUID
	RecipientID uuid.UUID
	Type        enums.NotificationType
	Message     string
}

// Dispatcher delivers notification jobs. A failure that may succeed on retry
// is returned as a CodeTransient error.
type Dispatcher interface {
	Send(ctx context.Context, job NotificationJob) error
}

// StoreDispatcher writes each job to the notifications inbox.
type StoreDispatcher struct {
	repo Repository
}

func NewStoreDispatcher(repo Repository) *StoreDispatcher {
	return &StoreDispatcher{repo: repo}
}

func (d *StoreDispatcher) Send(ctx context.Context, job NotificationJob) error {
	if job.RecipientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "recipient id required")
	}
	row := &models.Notification{
		UserID:  job.RecipientID,
		Type:    job.Type,
		Message: job.Message,
	}
	if job.EventID != uuid.Nil {
		eventID := job.EventID
		row.EventID = &eventID
	}
	if _, err := d.repo.Insert(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeTransient, err, "store notification")
	}
	return nil
}

// LogDispatcher only logs jobs. Useful locally and when another system owns
// delivery.
type LogDispatcher struct {
	logg *logger.Logger
}

func NewLogDispatcher(logg *logger.Logger) *LogDispatcher {
	return &LogDispatcher{logg: logg}
}

func (d *LogDispatcher) Send(ctx context.Context, job NotificationJob) error {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"recipient_id":      job.RecipientID.String(),
		"notification_type": job.Type,
	})
	d.logg.Info(logCtx, "notification: "+job.Message)
	return nil
}

// NewDispatcher selects the dispatcher named by cfg.Dispatcher.
func NewDispatcher(cfg config.NotificationsConfig, repo Repository, logg *logger.Logger) (Dispatcher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Dispatcher)) {
	case "", config.DispatcherStore:
		if repo == nil {
			return nil, fmt.Errorf("notifications repository required for %s dispatcher", config.DispatcherStore)
		}
		return NewStoreDispatcher(repo), nil
	case config.DispatcherLog:
		return NewLogDispatcher(logg), nil
	default:
		return nil, fmt.Errorf("unsupported notifications dispatcher %q", cfg.Dispatcher)
	}
}
