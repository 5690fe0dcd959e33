package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/monctl/monctl/pkg/engine"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printResources(w io.Writer, resources []engine.Resource) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tTRACKING ID\tKIND\tNAME\tSOURCE")
	for i, res := range resources {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, res.TrackingID(), res.Kind, res.Name, res.Source)
	}
	return tw.Flush()
}

func printRun(w io.Writer, run *engine.Run) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tTRACKING ID\tKIND\tSTATUS\tACTION\tREMOTE ID\tDURATION\tERROR")
	for _, item := range run.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.Position+1,
			item.TrackingID,
			item.Kind,
			item.Status,
			dash(string(item.Action)),
			dash(item.RemoteID),
			item.Duration.Round(time.Millisecond),
			item.Error,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return printSummary(w, run)
}

func printSummary(w io.Writer, run *engine.Run) error {
	_, err := fmt.Fprintf(w, "\nRun %s %s: %d succeeded, %d failed, %d skipped (%s)\n",
		run.ID, run.Status, run.Summary.Succeeded, run.Summary.Failed, run.Summary.Skipped,
		run.Duration.Round(time.Millisecond))
	return err
}

func printRuns(w io.Writer, runs []engine.Run) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTATUS\tUSER\tDRY RUN\tTOTAL\tSUCCEEDED\tFAILED\tSKIPPED\tDURATION")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%d\t%d\t%d\t%d\t%s\n",
			run.ID,
			run.StartedAt.Local().Format(time.RFC3339),
			run.Status,
			dash(run.User),
			run.DryRun,
			run.Summary.Total,
			run.Summary.Succeeded,
			run.Summary.Failed,
			run.Summary.Skipped,
			run.Duration.Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
