package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"bricksync/internal/db"
	"bricksync/internal/db/repository"
	"bricksync/internal/domain"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded runs",
		Long:  "List the most recent runs, or the per-object results of one run when RUN_ID is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return domain.ErrValidation("--limit must be at least 1")
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.History.Path == "-" {
				return domain.ErrConfig("run history is disabled (history.path is \"-\")")
			}
			conn, err := db.OpenHistory(cfg.History.Path)
			if err != nil {
				return err
			}
			defer conn.Close() //nolint:errcheck
			repo := repository.NewRunRepo(conn)

			if len(args) == 1 {
				return a.printRun(cmd, repo, args[0])
			}
			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return printJSON(a.stdout, runs)
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					string(r.Status),
					formatTime(&r.StartedAt),
					formatTime(r.FinishedAt),
					strconv.Itoa(r.Converged),
					strconv.Itoa(r.Skipped),
					strconv.Itoa(r.Failed),
				})
			}
			return printTable(a.stdout, []string{"RUN", "STATUS", "STARTED", "FINISHED", "CONVERGED", "SKIPPED", "FAILED"}, rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func (a *app) printRun(cmd *cobra.Command, repo *repository.RunRepo, id string) error {
	run, err := repo.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	results, err := repo.ListResults(cmd.Context(), id)
	if err != nil {
		return err
	}
	if a.output == "json" {
		return printJSON(a.stdout, struct {
			Run     *domain.RunRecord   `json:"run"`
			Results []domain.SyncResult `json:"results"`
		}{run, results})
	}
	return printReport(a.stdout, a.output, &domain.SyncReport{RunID: run.ID, Results: results})
}
