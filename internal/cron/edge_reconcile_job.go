package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/linkedge-backend/pkg/logger"
)

const defaultReconcileLookback = 48 * time.Hour

type EdgeReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler edgeReconciler
	Lookback   time.Duration
}

type edgeReconciler interface {
	Reconcile(ctx context.Context, since time.Time) (int, error)
}

// NewEdgeReconcileJob repairs accepted connection requests decided within the
// lookback window that have no edge.
func NewEdgeReconcileJob(params EdgeReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("edge reconciler required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultReconcileLookback
	}
	return &edgeReconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		lookback:   lookback,
		now:        time.Now,
	}, nil
}

type edgeReconcileJob struct {
	logg       *logger.Logger
	reconciler edgeReconciler
	lookback   time.Duration
	now        func() time.Time
}

func (j *edgeReconcileJob) Name() string { return "edge-reconcile" }

func (j *edgeReconcileJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	repaired, err := j.reconciler.Reconcile(ctx, since)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"since":    since,
		"repaired": repaired,
	})
	if err != nil {
		return fmt.Errorf("edge reconcile (repaired %d): %w", repaired, err)
	}
	if repaired > 0 {
		j.logg.Warn(logCtx, "edge reconcile repaired missing edges")
		return nil
	}
	j.logg.Info(logCtx, "edge reconcile found nothing to repair")
	return nil
}
