package report_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andriantochan/signbench/pkg/models"
	"github.com/andriantochan/signbench/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(op string, seconds float64) models.TimingRecord {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	d := time.Duration(seconds * float64(time.Second))
	return models.TimingRecord{
		Operation: op,
		StartTime: start,
		EndTime:   start.Add(d),
		Duration:  d,
		Status:    models.SuccessTimingStatus,
	}
}

func TestSummarize(t *testing.T) {
	records := []models.TimingRecord{
		record("Upload File 1", 2.0),
		record("Upload File 2", 4.0),
		record("Sign Request", 1.0),
	}

	summary := report.Summarize(records)
	require.Len(t, summary, 2)

	upload := summary["Upload"]
	assert.Equal(t, 2, upload.Count)
	assert.InDelta(t, 6.0, upload.Total, 1e-9)
	assert.InDelta(t, 3.0, upload.Average, 1e-9)
	assert.InDelta(t, 2.0, upload.Min, 1e-9)
	assert.InDelta(t, 4.0, upload.Max, 1e-9)

	sign := summary["Sign"]
	assert.Equal(t, 1, sign.Count)
	assert.InDelta(t, 1.0, sign.Total, 1e-9)
}

func TestBuild(t *testing.T) {
	records := []models.TimingRecord{
		record("Token Access", 0.5),
		record("Upload File 1", 2.0),
	}

	rep := report.Build("run-1", "abc123", 1, records)
	assert.Equal(t, "run-1", rep.TestInfo.RunID)
	assert.Equal(t, "abc123", rep.TestInfo.RequestID)
	assert.Equal(t, 1, rep.TestInfo.NumberOfFiles)
	assert.InDelta(t, 2.5, rep.TestInfo.TotalDuration, 1e-9)
	assert.NotEmpty(t, rep.TestInfo.StartTime)
	assert.NotEmpty(t, rep.TestInfo.EndTime)
	assert.Equal(t, []string{"Token", "Upload"}, rep.SortedOperations())
}

func TestBuildEmpty(t *testing.T) {
	rep := report.Build("run-1", "abc123", 0, nil)
	assert.Empty(t, rep.Summary)
	assert.Zero(t, rep.TestInfo.TotalDuration)
}

func TestWriteJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timing_results.json")

	rep := report.Build("run-1", "abc123", 2, []models.TimingRecord{
		record("Upload File 1", 2.0),
		record("Upload File 2", 4.0),
	})
	require.NoError(t, rep.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded report.Report
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, rep.TestInfo.RequestID, loaded.TestInfo.RequestID)
	assert.Equal(t, 2, loaded.Summary["Upload"].Count)
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timing_results.csv")

	rec := record("Upload File 1", 2.0)
	rec.Details = map[string]string{"filename": "a.pdf"}
	rep := report.Build("run-1", "abc123", 1, []models.TimingRecord{rec})
	require.NoError(t, rep.WriteCSV(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Operation", rows[0][0])
	assert.Equal(t, "Upload File 1", rows[1][0])
	assert.Equal(t, "2.000", rows[1][3])
	assert.Equal(t, "SUCCESS", rows[1][4])
	assert.Contains(t, rows[1][5], "a.pdf")
}

func TestPrintSummary(t *testing.T) {
	rep := report.Build("run-1", "abc123", 1, []models.TimingRecord{
		record("Upload File 1", 2.0),
	})

	var buf bytes.Buffer
	rep.PrintSummary(&buf)
	out := buf.String()
	assert.Contains(t, out, "Upload")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "succeeded")
}
