package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	StartedAt    time.Time `json:"started_at"`
	Since        time.Time `json:"since"`
	RemoteSeen   int       `json:"remote_seen"`
	Applied      int       `json:"applied"`
	Skipped      int       `json:"skipped"`
	Conflicts    int       `json:"conflicts"`
	Failed       int       `json:"failed"`
	Duration     string    `json:"duration"`
}

// Reconciler periodically sweeps remote opportunities changed since the last
// pass and applies them to their linked deals. It is the safety net for
// partner-side changes that never produce a webhook.
type Reconciler struct {
	orchestrator *Orchestrator
	detector     *ConflictDetector
	logger       *zap.Logger
	now          func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(orchestrator *Orchestrator, detector *ConflictDetector, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		orchestrator: orchestrator,
		detector:     detector,
		logger:       logger,
		now:          time.Now,
	}
}

// Reconcile applies every remote change since the given time. Failures on
// individual opportunities are counted and logged but do not stop the sweep.
func (r *Reconciler) Reconcile(ctx context.Context, since time.Time) (*ReconcileReport, error) {
	start := r.now()
	report := &ReconcileReport{StartedAt: start.UTC(), Since: since.UTC()}

	opportunities, err := r.orchestrator.Remote().ListRecentlyUpdated(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list recently updated opportunities: %w", err)
	}
	report.RemoteSeen = len(opportunities)

	for _, summary := range opportunities {
		if err := r.reconcileOne(ctx, summary.ID, report); err != nil {
			report.Failed++
			r.logger.Error("reconciliation failed for opportunity",
				zap.String("opportunity_id", summary.ID),
				zap.Error(err),
			)
		}
	}

	report.Duration = r.now().Sub(start).String()
	r.logger.Info("reconciliation pass complete",
		zap.Int("remote_seen", report.RemoteSeen),
		zap.Int("applied", report.Applied),
		zap.Int("skipped", report.Skipped),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("failed", report.Failed),
		zap.String("duration", report.Duration),
	)
	return report, nil
}

// reconcileOne fetches the full remote record and applies it to the linked
// deal through the conflict detector.
func (r *Reconciler) reconcileOne(ctx context.Context, remoteID string, report *ReconcileReport) error {
	opp, err := r.orchestrator.Remote().GetOpportunity(ctx, remoteID)
	if err != nil {
		return err
	}

	deal, err := r.orchestrator.findLinkedDeal(ctx, remoteID)
	if err != nil {
		return err
	}
	if deal == nil {
		report.Skipped++
		return nil
	}

	outcome, err := r.detector.Apply(ctx, deal, opp, time.Time{})
	if err != nil {
		return err
	}
	report.Applied++
	report.Conflicts += len(outcome.Manual)
	return nil
}
