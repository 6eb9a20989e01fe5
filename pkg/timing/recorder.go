package timing

import (
	"time"

	"github.com/andriantochan/signbench/pkg/models"
)

// Logger defines the logging interface for the Recorder.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Recorder wraps operations with wall-clock instrumentation. Records are
// appended in execution order and never dropped: a failing operation still
// gets its record before the error is returned, so an aborted run keeps its
// timing data. The workflow is strictly sequential so no locking is needed.
type Recorder struct {
	records []models.TimingRecord
	now     func() time.Time
	logger  Logger
}

func NewRecorder(logger Logger) *Recorder {
	return &Recorder{now: time.Now, logger: logger}
}

// Record executes fn once, appends a TimingRecord with SUCCESS or FAILED
// status, and returns fn's error unchanged.
func (r *Recorder) Record(operation string, fn func() error) error {
	return r.RecordDetailed(operation, nil, fn)
}

// RecordDetailed is Record with optional structured detail attached to the
// record (e.g. which filename an upload produced).
func (r *Recorder) RecordDetailed(operation string, details map[string]string, fn func() error) error {
	start := r.now()
	r.logger.Infof("---- %s start at %s", operation, start.Format(models.ReportTimeLayout))

	err := fn()

	end := r.now()
	status := models.SuccessTimingStatus
	if err != nil {
		status = models.FailedTimingStatus
		r.logger.Errorf("Error in %s: %v", operation, err)
	}
	r.records = append(r.records, models.TimingRecord{
		Operation: operation,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Status:    status,
		Details:   details,
	})
	r.logger.Infof("---- %s end at %s (%.3fs)", operation, end.Format(models.ReportTimeLayout), end.Sub(start).Seconds())
	return err
}

// Append adds an externally measured record, preserving order.
func (r *Recorder) Append(rec models.TimingRecord) {
	r.records = append(r.records, rec)
}

// Records returns a copy of the recorded sequence.
func (r *Recorder) Records() []models.TimingRecord {
	return append([]models.TimingRecord(nil), r.records...)
}
