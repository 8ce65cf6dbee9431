package cli

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"bricksync/internal/domain"
	"bricksync/internal/service/syncrun"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		schedule string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Converge every configured sync",
		Long: "Run every sync definition once and print the per-object results. " +
			"With --schedule the run repeats on a cron schedule until interrupted; " +
			"a tick that arrives while the previous run is still going is skipped.",
		Example: `  bricksync run
  bricksync run --dry-run
  bricksync run --schedule "*/15 * * * *"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun && schedule != "" {
				return domain.ErrValidation("--dry-run and --schedule cannot be combined")
			}
			if dryRun {
				return a.plan(cmd.Context())
			}
			if schedule != "" {
				return a.runScheduled(cmd.Context(), schedule)
			}
			return a.runOnce(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression (5 fields or @every <duration>) to repeat the run on")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned targets without changing anything")
	return cmd
}

func (a *app) runOnce(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	e, err := a.openEnv(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer e.Close() //nolint:errcheck

	report, runErr := e.run(ctx, "")
	if report != nil {
		if err := printReport(a.stdout, a.output, report); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if report.HasFailures() {
		return errSyncFailed
	}
	return nil
}

func (a *app) runScheduled(ctx context.Context, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return domain.ErrValidation("invalid schedule %q: %v", schedule, err)
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	e, err := a.openEnv(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer e.Close() //nolint:errcheck

	launcher := syncrun.NewLauncher(ctx, e.run, a.logger)
	c, err := a.scheduleRuns(ctx, launcher, schedule)
	if err != nil {
		return err
	}

	a.logger.Info("sync scheduler started", "schedule", schedule, "syncs", len(cfg.Syncs))
	<-ctx.Done()
	<-c.Stop().Done()
	launcher.Wait()
	a.logger.Info("sync scheduler stopped")
	return nil
}

// scheduleRuns starts a cron scheduler that runs through launcher on every
// tick of schedule. Ticks that overlap a run in progress are skipped.
func (a *app) scheduleRuns(ctx context.Context, launcher *syncrun.Launcher, schedule string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		report, err := launcher.RunNow(ctx)
		var conflict *domain.ConflictError
		switch {
		case errors.As(err, &conflict):
			a.logger.Warn("scheduled run skipped", "reason", err)
		case err != nil:
			a.logger.Error("scheduled run failed", "error", err)
		default:
			converged, skipped, failed := report.Counts()
			a.logger.Info("scheduled run finished", "run_id", report.RunID,
				"converged", converged, "skipped", skipped, "failed", failed)
		}
	}); err != nil {
		return nil, domain.ErrValidation("invalid schedule %q: %v", schedule, err)
	}
	c.Start()
	return c, nil
}
