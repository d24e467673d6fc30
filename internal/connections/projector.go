package connections

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/internal/consumers"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
)

const peopleProjectorName = "people-projector"

// PeopleProjector keeps the people projection in step with user_created.
type PeopleProjector struct {
	repo   *Repository
	mirror PersonMirror
}

var _ consumers.Handler = (*PeopleProjector)(nil)

// NewPeopleProjector builds the projector. mirror may be nil.
func NewPeopleProjector(repo *Repository, mirror PersonMirror) (*PeopleProjector, error) {
	if repo == nil {
		return nil, errors.New("connections repository required")
	}
	return &PeopleProjector{repo: repo, mirror: mirror}, nil
}

func (p *PeopleProjector) Name() string { return peopleProjectorName }

func (p *PeopleProjector) EventTypes() []enums.OutboxEventType {
	return []enums.OutboxEventType{enums.EventUserCreated}
}

func (p *PeopleProjector) Handle(ctx context.Context, event consumers.Event) error {
	payload, ok := event.Payload.(*payloads.UserCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.UserID == uuid.Nil {
		return errors.New("user id missing from payload")
	}
	name := strings.TrimSpace(payload.Name)

	if err := p.repo.UpsertPerson(ctx, models.Person{UserID: payload.UserID, Name: name}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeTransient, err, "upsert person")
	}
	if p.mirror != nil {
		if err := p.mirror.UpsertPerson(ctx, payload.UserID, name); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeTransient, err, "mirror person")
		}
	}
	return nil
}
