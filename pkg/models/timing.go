package models

import (
	"strings"
	"time"
)

type TimingStatus string

const (
	SuccessTimingStatus TimingStatus = "SUCCESS"
	FailedTimingStatus  TimingStatus = "FAILED"
)

// ReportTimeLayout matches the timestamp format of the original k6 reports
// so existing tooling keeps parsing the output.
const ReportTimeLayout = "2006-01-02 jam 15:04:05.000"

// TimingRecord captures one measured operation. Records are append-only and
// immutable once appended.
type TimingRecord struct {
	Operation string            `json:"operation"` // e.g. "Upload File 3"
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Duration  time.Duration     `json:"duration"`
	Status    TimingStatus      `json:"status"`
	Details   map[string]string `json:"details,omitempty"` // Optional, e.g. which filename
}

// BaseOperation collapses indexed operations into their group: "Upload
// File 3" aggregates under "Upload".
func (r TimingRecord) BaseOperation() string {
	op, _, _ := strings.Cut(r.Operation, " ")
	return op
}

// Seconds returns the duration as float seconds for reporting.
func (r TimingRecord) Seconds() float64 {
	return r.Duration.Seconds()
}
