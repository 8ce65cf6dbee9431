package ui

import (
	"fmt"
	"strconv"

	"bricksync/internal/domain"

	gomponents "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	html "maragu.dev/gomponents/html"
)

type runsListRowData struct {
	Filter    string
	ID        string
	URL       string
	Status    string
	Started   string
	Finished  string
	Converged int
	Skipped   int
	Failed    int
}

func runRows(runs []domain.RunRecord) []runsListRowData {
	rows := make([]runsListRowData, 0, len(runs))
	for i := range runs {
		run := runs[i]
		rows = append(rows, runsListRowData{
			Filter:    run.ID + " " + string(run.Status),
			ID:        run.ID,
			URL:       "/ui/runs/" + run.ID,
			Status:    string(run.Status),
			Started:   formatTime(run.StartedAt),
			Finished:  formatTimePtr(run.FinishedAt),
			Converged: run.Converged,
			Skipped:   run.Skipped,
			Failed:    run.Failed,
		})
	}
	return rows
}

func runsListPage(rows []runsListRowData) gomponents.Node {
	if len(rows) == 0 {
		return appPage("Runs", "runs", emptyStateCard("No sync runs have been recorded yet."))
	}
	tableRows := make([]gomponents.Node, 0, len(rows))
	for i := range rows {
		row := rows[i]
		tableRows = append(tableRows, html.Tr(
			data.Show(containsExpr(row.Filter)),
			html.Td(html.A(html.Href(row.URL), gomponents.Text(row.ID))),
			html.Td(statusLabel(row.Status)),
			html.Td(gomponents.Text(row.Started)),
			html.Td(gomponents.Text(row.Finished)),
			html.Td(gomponents.Text(strconv.Itoa(row.Converged))),
			html.Td(gomponents.Text(strconv.Itoa(row.Skipped))),
			html.Td(gomponents.Text(strconv.Itoa(row.Failed))),
		))
	}
	return appPage(
		"Runs",
		"runs",
		html.Div(
			data.Signals(map[string]any{"q": ""}),
			quickFilter("Filter by run ID or status"),
			html.Div(html.Class(cardClass("table-wrap")), html.Table(
				html.THead(html.Tr(
					html.Th(gomponents.Text("Run")),
					html.Th(gomponents.Text("Status")),
					html.Th(gomponents.Text("Started")),
					html.Th(gomponents.Text("Finished")),
					html.Th(gomponents.Text("Converged")),
					html.Th(gomponents.Text("Skipped")),
					html.Th(gomponents.Text("Failed")),
				)),
				html.TBody(gomponents.Group(tableRows)),
			)),
		),
	)
}

type runResultRowData struct {
	Filter   string
	Source   string
	Target   string
	Status   string
	Action   string
	Duration string
	Error    string
}

type runDetailPageData struct {
	Run     domain.RunRecord
	Results []runResultRowData
}

func resultRows(results []domain.SyncResult) []runResultRowData {
	rows := make([]runResultRowData, 0, len(results))
	for i := range results {
		res := results[i]
		target := res.Target
		if target == "" {
			target = "-"
		}
		action := string(res.Action)
		if action == "" {
			action = "-"
		}
		rows = append(rows, runResultRowData{
			Filter:   res.SourceName + " " + res.Target + " " + string(res.Status),
			Source:   res.SourceName,
			Target:   target,
			Status:   string(res.Status),
			Action:   action,
			Duration: formatDuration(res.Duration),
			Error:    res.ErrorDetail,
		})
	}
	return rows
}

func runDetailPage(d runDetailPageData) gomponents.Node {
	tableRows := make([]gomponents.Node, 0, len(d.Results))
	for i := range d.Results {
		r := d.Results[i]
		errNode := gomponents.Node(gomponents.Text("-"))
		if r.Error != "" {
			errNode = html.Div(html.Class("error-detail"), gomponents.Text(r.Error))
		}
		tableRows = append(tableRows, html.Tr(
			data.Show(containsExpr(r.Filter)),
			html.Td(gomponents.Text(r.Source)),
			html.Td(gomponents.Text(r.Target)),
			html.Td(statusLabel(r.Status)),
			html.Td(gomponents.Text(r.Action)),
			html.Td(gomponents.Text(r.Duration)),
			html.Td(errNode),
		))
	}

	results := gomponents.Node(emptyStateCard("This run recorded no results."))
	if len(tableRows) > 0 {
		results = html.Div(
			data.Signals(map[string]any{"q": ""}),
			quickFilter("Filter by source, target or status"),
			html.Div(html.Class(cardClass("table-wrap")), html.Table(
				html.THead(html.Tr(
					html.Th(gomponents.Text("Source")),
					html.Th(gomponents.Text("Target")),
					html.Th(gomponents.Text("Status")),
					html.Th(gomponents.Text("Action")),
					html.Th(gomponents.Text("Duration")),
					html.Th(gomponents.Text("Error")),
				)),
				html.TBody(gomponents.Group(tableRows)),
			)),
		)
	}

	return appPage(
		"Run "+d.Run.ID,
		"runs",
		html.Div(
			html.Class(cardClass()),
			html.P(statusLabel(string(d.Run.Status))),
			html.P(html.Class("muted"), gomponents.Text(fmt.Sprintf("Started %s, finished %s", formatTime(d.Run.StartedAt), formatTimePtr(d.Run.FinishedAt)))),
			html.Div(
				html.Class("stats"),
				html.Div(html.Strong(gomponents.Text(strconv.Itoa(d.Run.Converged))), gomponents.Text("converged")),
				html.Div(html.Strong(gomponents.Text(strconv.Itoa(d.Run.Skipped))), gomponents.Text("skipped")),
				html.Div(html.Strong(gomponents.Text(strconv.Itoa(d.Run.Failed))), gomponents.Text("failed")),
			),
		),
		results,
	)
}
