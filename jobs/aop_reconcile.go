package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/budgetdesk/budgetdesk/internal/aop"
	jobmetrics "github.com/budgetdesk/budgetdesk/internal/jobs"
)

// PlanReconciler is the subset of the AOP service the reconcile job needs.
type PlanReconciler interface {
	GetActiveAOP(ctx context.Context) (aop.AOP, error)
	ReconcileAOP(ctx context.Context, id int64) (aop.ReconcileReport, error)
}

// ReconcileJob checks an AOP against its active budgets and publishes the headroom.
type ReconcileJob struct {
	plans   PlanReconciler
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewReconcileJob initialises the reconcile handler.
func NewReconcileJob(plans PlanReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileJob{plans: plans, logger: logger, metrics: metrics}
}

// Handle executes TaskAOPReconcile.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.plans == nil {
		return errors.New("aop reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.metrics.Track(TaskAOPReconcile)
	_, err := j.Run(ctx, payload.AOPID)
	return tracker.End(err)
}

// Run reconciles one AOP, or the active one when aopID is zero. The returned report is
// nil when no AOP is active.
func (j *ReconcileJob) Run(ctx context.Context, aopID int64) (*aop.ReconcileReport, error) {
	if aopID == 0 {
		active, err := j.plans.GetActiveAOP(ctx)
		if errors.Is(err, aop.ErrNoActive) {
			j.logger.Info("aop reconcile skipped, no active AOP")
			return nil, nil
		}
		if err != nil {
			j.logger.Error("aop reconcile failed", slog.Any("error", err))
			return nil, err
		}
		aopID = active.ID
	}

	report, err := j.plans.ReconcileAOP(ctx, aopID)
	if err != nil {
		j.logger.Error("aop reconcile failed", slog.Int64("aop_id", aopID), slog.Any("error", err))
		return nil, err
	}
	j.metrics.SetHeadroom(aopID, report.Difference)

	logger := j.logger.With(
		slog.Int64("aop_id", aopID),
		slog.String("aop_amount", report.AOPAmount.StringFixed(2)),
		slog.String("total_budget", report.TotalBudget.StringFixed(2)),
	)
	if report.IsCompliant {
		logger.Info("aop reconciled")
	} else {
		logger.Warn("aop over-committed", slog.String("difference", report.Difference.StringFixed(2)))
	}
	return &report, nil
}
