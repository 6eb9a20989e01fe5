package report

import (
	"sort"
	"time"

	"github.com/andriantochan/signbench/pkg/models"
)

// OperationSummary holds the aggregate statistics for one operation group.
type OperationSummary struct {
	Count   int     `json:"count"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// TestInfo describes the run the report belongs to.
type TestInfo struct {
	RunID         string  `json:"run_id"`
	RequestID     string  `json:"request_id"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	TotalDuration float64 `json:"total_duration"`
	NumberOfFiles int     `json:"number_of_files"`
}

// Report is the machine-readable result of one run.
type Report struct {
	TestInfo TestInfo                    `json:"test_info"`
	Timings  []models.TimingRecord       `json:"timings"`
	Summary  map[string]OperationSummary `json:"summary"`
}

// Build assembles a Report from the ordered timing sequence. Records group
// by base operation name, so uploads of different indices collapse into one
// "Upload" group.
func Build(runID, requestID string, numberOfFiles int, records []models.TimingRecord) *Report {
	rep := &Report{
		TestInfo: TestInfo{
			RunID:         runID,
			RequestID:     requestID,
			NumberOfFiles: numberOfFiles,
		},
		Timings: records,
		Summary: Summarize(records),
	}
	if len(records) > 0 {
		rep.TestInfo.StartTime = records[0].StartTime.Format(models.ReportTimeLayout)
		rep.TestInfo.EndTime = records[len(records)-1].EndTime.Format(models.ReportTimeLayout)
		var total time.Duration
		for _, r := range records {
			total += r.Duration
		}
		rep.TestInfo.TotalDuration = total.Seconds()
	}
	return rep
}

// Summarize computes per-group count, total, average, min and max seconds.
func Summarize(records []models.TimingRecord) map[string]OperationSummary {
	groups := make(map[string][]float64)
	for _, r := range records {
		base := r.BaseOperation()
		groups[base] = append(groups[base], r.Seconds())
	}

	summary := make(map[string]OperationSummary, len(groups))
	for op, durations := range groups {
		s := OperationSummary{Count: len(durations), Min: durations[0], Max: durations[0]}
		for _, d := range durations {
			s.Total += d
			if d < s.Min {
				s.Min = d
			}
			if d > s.Max {
				s.Max = d
			}
		}
		s.Average = s.Total / float64(s.Count)
		summary[op] = s
	}
	return summary
}

// SortedOperations returns the summary's group names in a stable order for
// tabular output.
func (r *Report) SortedOperations() []string {
	ops := make([]string, 0, len(r.Summary))
	for op := range r.Summary {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
