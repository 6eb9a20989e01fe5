package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/andriantochan/signbench/pkg/models"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// WriteJSON writes the full report as indented JSON.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write report %s", path)
	}
	return nil
}

// WriteCSV writes the raw timing records as a table.
func (r *Report) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create csv %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Operation", "Start Time", "End Time", "Duration (s)", "Status", "Details"}); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, rec := range r.Timings {
		var details string
		if len(rec.Details) > 0 {
			raw, _ := json.Marshal(rec.Details)
			details = string(raw)
		}
		row := []string{
			rec.Operation,
			rec.StartTime.Format(models.ReportTimeLayout),
			rec.EndTime.Format(models.ReportTimeLayout),
			fmt.Sprintf("%.3f", rec.Seconds()),
			string(rec.Status),
			details,
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush csv")
}

// PrintSummary renders the per-operation statistics table to the console.
func (r *Report) PrintSummary(out io.Writer) {
	header := color.New(color.Bold, color.FgCyan)
	okColor := color.New(color.FgGreen)
	failColor := color.New(color.FgRed)

	header.Fprintf(out, "Run %s (request_id %s): %d files, %.3fs total\n",
		r.TestInfo.RunID, r.TestInfo.RequestID, r.TestInfo.NumberOfFiles, r.TestInfo.TotalDuration)
	header.Fprintf(out, "%-16s %6s %10s %10s %10s %10s\n", "Operation", "Count", "Total", "Avg", "Min", "Max")
	for _, op := range r.SortedOperations() {
		s := r.Summary[op]
		fmt.Fprintf(out, "%-16s %6d %10.3f %10.3f %10.3f %10.3f\n", op, s.Count, s.Total, s.Average, s.Min, s.Max)
	}

	failed := 0
	for _, rec := range r.Timings {
		if rec.Status == models.FailedTimingStatus {
			failed++
		}
	}
	if failed > 0 {
		failColor.Fprintf(out, "%d of %d operations failed\n", failed, len(r.Timings))
	} else {
		okColor.Fprintf(out, "All %d operations succeeded\n", len(r.Timings))
	}
}
