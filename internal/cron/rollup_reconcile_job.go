package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/sitestock-backend/internal/rollup"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

type RollupReconcileJobParams struct {
	Logger   *logger.Logger
	Projects activeProjectLister
	Rollup   rollupReconciler
}

type activeProjectLister interface {
	ListActiveProjectIDs(ctx context.Context) ([]uuid.UUID, error)
}

type rollupReconciler interface {
	Reconcile(ctx context.Context, projectID uuid.UUID) ([]rollup.Drift, error)
}

// NewRollupReconcileJob compares every active project's rollup with its
// transaction log and reports drift. It never rewrites either side.
func NewRollupReconcileJob(params RollupReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Projects == nil {
		return nil, fmt.Errorf("project lister required")
	}
	if params.Rollup == nil {
		return nil, fmt.Errorf("rollup service required")
	}
	return &rollupReconcileJob{
		logg:     params.Logger,
		projects: params.Projects,
		rollup:   params.Rollup,
	}, nil
}

type rollupReconcileJob struct {
	logg     *logger.Logger
	projects activeProjectLister
	rollup   rollupReconciler
}

func (j *rollupReconcileJob) Name() string { return "rollup-reconcile" }

func (j *rollupReconcileJob) Run(ctx context.Context) error {
	ids, err := j.projects.ListActiveProjectIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active projects: %w", err)
	}

	var errs error
	drifted := 0
	for _, projectID := range ids {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		drift, err := j.rollup.Reconcile(ctx, projectID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("project %s: %w", projectID, err))
			continue
		}
		for _, d := range drift {
			drifted++
			logCtx := j.logg.WithFields(ctx, map[string]any{
				"project_id":      d.ProjectID.String(),
				"material_id":     d.MaterialID.String(),
				"rollup_quantity": d.RollupQuantity.String(),
				"ledger_quantity": d.LedgerQuantity.String(),
				"rollup_cost":     d.RollupCost.String(),
				"ledger_cost":     d.LedgerCost.String(),
			})
			j.logg.Warn(logCtx, "project material rollup drifted from transaction log")
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"projects":      len(ids),
		"drifted_lines": drifted,
	})
	j.logg.Info(logCtx, "rollup reconcile complete")
	return errs
}
