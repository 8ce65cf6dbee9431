package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"bricksync/internal/domain"
)

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes tab-aligned rows under an upper-case header.
func printTable(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// oneLine collapses whitespace so multi-line statements fit a table cell.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func printReport(w io.Writer, output string, report *domain.SyncReport) error {
	if output == "json" {
		return printJSON(w, report)
	}
	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		rows = append(rows, []string{
			r.SourceName,
			dash(r.Target),
			string(r.Status),
			dash(string(r.Action)),
			r.Duration.Round(time.Millisecond).String(),
			dash(r.ErrorDetail),
		})
	}
	if err := printTable(w, []string{"SOURCE", "TARGET", "STATUS", "ACTION", "DURATION", "ERROR"}, rows); err != nil {
		return err
	}
	converged, skipped, failed := report.Counts()
	_, err := fmt.Fprintf(w, "\nrun %s: %d converged, %d skipped, %d failed\n", report.RunID, converged, skipped, failed)
	return err
}
