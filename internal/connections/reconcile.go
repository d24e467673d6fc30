package connections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/linkedge-backend/pkg/db/models"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
)

const reconcileBatch = 500

// Reconciler re-materializes edges for accepted requests that lack one.
type Reconciler struct {
	repo   *Repository
	mirror EdgeMirror
	logg   *logger.Logger
}

// NewReconciler builds a reconciler. mirror may be nil.
func NewReconciler(repo *Repository, mirror EdgeMirror, logg *logger.Logger) (*Reconciler, error) {
	if repo == nil {
		return nil, errors.New("connections repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Reconciler{repo: repo, mirror: mirror, logg: logg}, nil
}

// Reconcile repairs requests decided at or after since. It keeps going past
// individual failures and returns them combined.
func (r *Reconciler) Reconcile(ctx context.Context, since time.Time) (int, error) {
	missing, err := r.repo.ListAcceptedWithoutEdge(ctx, since, reconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list accepted requests without edge: %w", err)
	}

	var (
		repaired int
		errs     error
	)
	for _, req := range missing {
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"request_id":   req.ID.String(),
			"requester_id": req.RequesterID.String(),
			"target_id":    req.TargetID.String(),
		})
		r.logg.Warn(logCtx, "consistency defect: accepted request without edge")

		if err := r.repo.InsertEdge(ctx, models.NewConnectionEdge(req.RequesterID, req.TargetID, req.ID)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("edge for request %s: %w", req.ID, err))
			continue
		}
		if r.mirror != nil {
			if err := r.mirror.MirrorEdge(ctx, req.RequesterID, req.TargetID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("mirror for request %s: %w", req.ID, err))
				continue
			}
		}
		repaired++
	}
	return repaired, errs
}
