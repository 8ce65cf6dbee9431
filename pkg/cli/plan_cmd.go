package cli

import (
	"context"

	"github.com/spf13/cobra"

	"bricksync/internal/domain"
	"bricksync/internal/service/syncrun"
)

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would create or refresh",
		Long:  "Resolve every sync definition and print the planned target statements without executing them.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.plan(cmd.Context())
		},
	}
}

type planRow struct {
	Source    string `json:"source"`
	Target    string `json:"target,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Action    string `json:"action,omitempty"`
	Statement string `json:"statement,omitempty"`
	Skipped   string `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

func planRows(entries []syncrun.PlanEntry) []planRow {
	rows := make([]planRow, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Err != nil:
			rows = append(rows, planRow{Source: e.SourceName, Error: e.Err.Error()})
		case e.Skip != nil:
			rows = append(rows, planRow{Source: e.SourceName, Skipped: e.Skip.Reason})
		case e.Target != nil:
			e.Target.Walk(func(t *domain.Target) {
				stmt := t.DDL
				if t.Exists {
					stmt = t.RefreshStatement
				}
				src := e.SourceName
				if t.Source != nil {
					src = t.Source.Name().String()
				}
				rows = append(rows, planRow{
					Source:    src,
					Target:    t.Ident.String(),
					Kind:      string(t.Kind),
					Action:    string(t.Action()),
					Statement: stmt,
				})
			})
		}
	}
	return rows
}

// plan connects only what the plan touches: providers stay lazy and no
// history is written.
func (a *app) plan(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	cfg.History.Path = "-"
	e, err := a.openEnv(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer e.Close() //nolint:errcheck

	entries, err := e.orchestrator("").Plan(ctx, cfg.Syncs)
	if err != nil {
		return err
	}
	rows := planRows(entries)
	if a.output == "json" {
		return printJSON(a.stdout, rows)
	}
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		detail := r.Statement
		switch {
		case r.Error != "":
			detail = "error: " + r.Error
		case r.Skipped != "":
			detail = "skipped: " + r.Skipped
		}
		table = append(table, []string{r.Source, dash(r.Target), dash(r.Kind), dash(r.Action), dash(oneLine(detail))})
	}
	return printTable(a.stdout, []string{"SOURCE", "TARGET", "KIND", "ACTION", "DETAIL"}, table)
}
