// Package connections owns the connection-request state machine and the
// first-degree social graph built from accepted requests.
package connections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/linkedge-backend/pkg/db"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox"
	"github.com/angelmondragon/linkedge-backend/pkg/outbox/payloads"
)

// Service exposes the connection-request lifecycle and graph queries.
type Service interface {
	Send(ctx context.Context, input SendInput) (*models.ConnectionRequest, error)
	Accept(ctx context.Context, input DecisionInput) (*models.ConnectionRequest, error)
	Reject(ctx context.Context, input DecisionInput) (*models.ConnectionRequest, error)
	AcceptFrom(ctx context.Context, requesterID, actorID uuid.UUID) (*models.ConnectionRequest, error)
	RejectFrom(ctx context.Context, requesterID, actorID uuid.UUID) (*models.ConnectionRequest, error)
	FirstDegree(ctx context.Context, userID uuid.UUID) ([]Person, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.ConnectionRequest, error)
}

// SendInput asks TargetID to connect with RequesterID.
type SendInput struct {
	RequesterID uuid.UUID
	TargetID    uuid.UUID
}

// DecisionInput identifies a request and the user deciding it.
type DecisionInput struct {
	RequestID   uuid.UUID
	ActorUserID uuid.UUID
}

type ServiceParams struct {
	DB     db.TxRunner
	Repo   *Repository
	Outbox outbox.Emitter
	Graph  GraphReader
	// Mirror is optional.
	Mirror EdgeMirror
	Policy ReRequestPolicy
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	tx     db.TxRunner
	repo   *Repository
	outbox outbox.Emitter
	graph  GraphReader
	mirror EdgeMirror
	policy ReRequestPolicy
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("connections repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Graph == nil {
		return nil, fmt.Errorf("graph reader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	policy := params.Policy
	if policy == "" {
		policy = ReRequestAllow
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:     params.DB,
		repo:   params.Repo,
		outbox: params.Outbox,
		graph:  params.Graph,
		mirror: params.Mirror,
		policy: policy,
		logg:   params.Logger,
		now:    now,
	}, nil
}

func (s *service) Send(ctx context.Context, input SendInput) (*models.ConnectionRequest, error) {
	if input.RequesterID == uuid.Nil || input.TargetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "requester and target are required")
	}
	if input.RequesterID == input.TargetID {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "cannot send a connection request to yourself")
	}

	req := &models.ConnectionRequest{
		RequesterID: input.RequesterID,
		TargetID:    input.TargetID,
		State:       enums.ConnectionRequestPending,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		connected, err := repo.EdgeExists(ctx, input.RequesterID, input.TargetID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing connection")
		}
		if connected {
			return pkgerrors.New(pkgerrors.CodeConflict, "users are already connected")
		}
		pending, err := repo.PendingBetween(ctx, input.RequesterID, input.TargetID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check pending requests")
		}
		if pending {
			return pkgerrors.New(pkgerrors.CodeConflict, "a connection request is already pending")
		}
		if s.policy == ReRequestBlock {
			rejected, err := repo.HasRejected(ctx, input.RequesterID, input.TargetID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check rejected requests")
			}
			if rejected {
				return pkgerrors.New(pkgerrors.CodeConflict, "connection request was previously rejected")
			}
		}

		if err := repo.CreateRequest(ctx, req); err != nil {
			if db.IsUniqueViolation(err, pendingPairIndex) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a connection request is already pending")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create connection request")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventConnectionRequested,
			AggregateType: enums.AggregateConnectionRequest,
			AggregateID:   req.ID,
			PartitionKey:  outbox.PairKey(req.RequesterID, req.TargetID),
			Actor:         &outbox.ActorRef{UserID: req.RequesterID},
			Data: payloads.ConnectionRequestedEvent{
				RequestID:  req.ID,
				SenderID:   req.RequesterID,
				ReceiverID: req.TargetID,
			},
		})
	})
	if err != nil {
		return nil, asServiceError(err, "send connection request")
	}
	return req, nil
}

func (s *service) Accept(ctx context.Context, input DecisionInput) (*models.ConnectionRequest, error) {
	return s.decide(ctx, input, enums.ConnectionRequestAccepted)
}

func (s *service) Reject(ctx context.Context, input DecisionInput) (*models.ConnectionRequest, error) {
	return s.decide(ctx, input, enums.ConnectionRequestRejected)
}

func (s *service) AcceptFrom(ctx context.Context, requesterID, actorID uuid.UUID) (*models.ConnectionRequest, error) {
	id, err := s.pendingFrom(ctx, requesterID, actorID)
	if err != nil {
		return nil, err
	}
	return s.Accept(ctx, DecisionInput{RequestID: id, ActorUserID: actorID})
}

func (s *service) RejectFrom(ctx context.Context, requesterID, actorID uuid.UUID) (*models.ConnectionRequest, error) {
	id, err := s.pendingFrom(ctx, requesterID, actorID)
	if err != nil {
		return nil, err
	}
	return s.Reject(ctx, DecisionInput{RequestID: id, ActorUserID: actorID})
}

func (s *service) pendingFrom(ctx context.Context, requesterID, actorID uuid.UUID) (uuid.UUID, error) {
	if requesterID == uuid.Nil || actorID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "requester and actor are required")
	}
	req, err := s.repo.FindPending(ctx, requesterID, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "no pending connection request from this user")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find pending connection request")
	}
	return req.ID, nil
}

func (s *service) decide(ctx context.Context, input DecisionInput, to enums.ConnectionRequestState) (*models.ConnectionRequest, error) {
	if input.RequestID == uuid.Nil || input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "request id and actor are required")
	}

	var (
		decided  *models.ConnectionRequest
		mirrored bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		req, err := repo.FindRequestForUpdate(ctx, input.RequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "connection request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load connection request")
		}
		if req.TargetID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the target can decide a connection request")
		}
		if req.State != enums.ConnectionRequestPending {
			return invalidState(req.State)
		}

		now := s.now()
		affected, err := repo.Decide(ctx, req.ID, to, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update connection request")
		}
		if affected == 0 {
			return invalidState(req.State)
		}
		req.State = to
		req.DecidedAt = &now
		req.UpdatedAt = now
		decided = req

		if to != enums.ConnectionRequestAccepted {
			return nil
		}

		if err := repo.InsertEdge(ctx, models.NewConnectionEdge(req.RequesterID, req.TargetID, req.ID)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create connection edge")
		}
		if s.mirror != nil {
			if err := s.mirror.MirrorEdge(ctx, req.RequesterID, req.TargetID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeTransient, err, "mirror connection edge")
			}
			mirrored = true
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventConnectionAccepted,
			AggregateType: enums.AggregateConnectionRequest,
			AggregateID:   req.ID,
			PartitionKey:  outbox.PairKey(req.RequesterID, req.TargetID),
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID},
			Data: payloads.ConnectionAcceptedEvent{
				RequestID:  req.ID,
				SenderID:   req.RequesterID,
				ReceiverID: req.TargetID,
			},
		})
	})
	if err != nil {
		if mirrored {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"request_id": input.RequestID.String(),
				"actor_id":   input.ActorUserID.String(),
			})
			s.logg.Error(logCtx, "consistency defect: graph mirror holds an edge whose accept did not commit", err)
		}
		return nil, asServiceError(err, "decide connection request")
	}
	return decided, nil
}

func (s *service) FirstDegree(ctx context.Context, userID uuid.UUID) ([]Person, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id required")
	}
	people, err := s.graph.FirstDegree(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransient, err, "load first-degree connections")
	}
	if people == nil {
		people = []Person{}
	}
	return people, nil
}

func (s *service) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.ConnectionRequest, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id required")
	}
	rows, err := s.repo.ListIncoming(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list incoming requests")
	}
	if rows == nil {
		rows = []models.ConnectionRequest{}
	}
	return rows, nil
}

func invalidState(state enums.ConnectionRequestState) error {
	return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("connection request is %s", state)).
		WithDetails(map[string]any{"state": state})
}

// asServiceError keeps typed errors and wraps everything else, such as a
// failed commit or outbox write, as internal.
func asServiceError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
