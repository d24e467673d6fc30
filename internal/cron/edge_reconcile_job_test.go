package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/linkedge-backend/pkg/logger"
)

type fakeReconciler struct {
	since    time.Time
	repaired int
	err      error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, since time.Time) (int, error) {
	f.since = since
	return f.repaired, f.err
}

func TestEdgeReconcileJobUsesLookback(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &fakeReconciler{repaired: 2}
	jobIface, err := NewEdgeReconcileJob(EdgeReconcileJobParams{Logger: logger.Nop(), Reconciler: rec, Lookback: 6 * time.Hour})
	if err != nil {
		t.Fatalf("NewEdgeReconcileJob: %v", err)
	}
	job := jobIface.(*edgeReconcileJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-6 * time.Hour); !rec.since.Equal(want) {
		t.Fatalf("expected since %s, got %s", want, rec.since)
	}
}

func TestEdgeReconcileJobPropagatesError(t *testing.T) {
	jobIface, err := NewEdgeReconcileJob(EdgeReconcileJobParams{Logger: logger.Nop(), Reconciler: &fakeReconciler{err: errors.New("partial")}})
	if err != nil {
		t.Fatalf("NewEdgeReconcileJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
