package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/api/responses"
	"github.com/angelmondragon/linkedge-backend/api/validators"
	"github.com/angelmondragon/linkedge-backend/internal/connections"
	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
)

type connectionActionResponse struct {
	Success   bool      `json:"success"`
	RequestID uuid.UUID `json:"requestId"`
}

type connectionRequestView struct {
	ID          uuid.UUID  `json:"id"`
	RequesterID uuid.UUID  `json:"requesterId"`
	TargetID    uuid.UUID  `json:"targetId"`
	State       string     `json:"state"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toConnectionRequestView(req models.ConnectionRequest) connectionRequestView {
	return connectionRequestView{
		ID:          req.ID,
		RequesterID: req.RequesterID,
		TargetID:    req.TargetID,
		State:       string(req.State),
		DecidedAt:   req.DecidedAt,
		CreatedAt:   req.CreatedAt,
	}
}

// FirstDegreeConnections lists the acting user's direct connections.
func FirstDegreeConnections(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connections service unavailable"))
			return
		}
		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		people, err := svc.FirstDegree(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if people == nil {
			people = []connections.Person{}
		}
		responses.WriteSuccess(w, people)
	}
}

// IncomingConnectionRequests lists pending requests addressed to the acting user.
func IncomingConnectionRequests(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connections service unavailable"))
			return
		}
		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pending, err := svc.ListIncoming(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]connectionRequestView, 0, len(pending))
		for _, req := range pending {
			views = append(views, toConnectionRequestView(req))
		}
		responses.WriteSuccess(w, views)
	}
}

type userAction func(ctx context.Context, svc connections.Service, actor, other uuid.UUID) (*models.ConnectionRequest, error)

type requestAction func(ctx context.Context, svc connections.Service, input connections.DecisionInput) (*models.ConnectionRequest, error)

// SendConnectionRequest asks {userId} to connect with the acting user.
func SendConnectionRequest(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return byUser(svc, logg, func(ctx context.Context, svc connections.Service, actor, other uuid.UUID) (*models.ConnectionRequest, error) {
		return svc.Send(ctx, connections.SendInput{RequesterID: actor, TargetID: other})
	})
}

// AcceptConnectionFrom accepts the pending request {userId} sent to the acting user.
func AcceptConnectionFrom(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return byUser(svc, logg, func(ctx context.Context, svc connections.Service, actor, other uuid.UUID) (*models.ConnectionRequest, error) {
		return svc.AcceptFrom(ctx, other, actor)
	})
}

// RejectConnectionFrom rejects the pending request {userId} sent to the acting user.
func RejectConnectionFrom(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return byUser(svc, logg, func(ctx context.Context, svc connections.Service, actor, other uuid.UUID) (*models.ConnectionRequest, error) {
		return svc.RejectFrom(ctx, other, actor)
	})
}

func AcceptConnectionRequest(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return byRequest(svc, logg, func(ctx context.Context, svc connections.Service, input connections.DecisionInput) (*models.ConnectionRequest, error) {
		return svc.Accept(ctx, input)
	})
}

func RejectConnectionRequest(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return byRequest(svc, logg, func(ctx context.Context, svc connections.Service, input connections.DecisionInput) (*models.ConnectionRequest, error) {
		return svc.Reject(ctx, input)
	})
}

func byUser(svc connections.Service, logg *logger.Logger, action userAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connections service unavailable"))
			return
		}
		actor, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		other, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := action(r.Context(), svc, actor, other)
		writeConnectionAction(w, r, logg, req, err)
	}
}

func byRequest(svc connections.Service, logg *logger.Logger, action requestAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connections service unavailable"))
			return
		}
		actor, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := action(r.Context(), svc, connections.DecisionInput{RequestID: requestID, ActorUserID: actor})
		writeConnectionAction(w, r, logg, req, err)
	}
}

func writeConnectionAction(w http.ResponseWriter, r *http.Request, logg *logger.Logger, req *models.ConnectionRequest, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	if req == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connection request missing"))
		return
	}
	responses.WriteSuccess(w, connectionActionResponse{Success: true, RequestID: req.ID})
}
