package signing

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
)

// ResponseEntry is one recorded API exchange.
type ResponseEntry struct {
	Timestamp    time.Time       `json:"timestamp"`
	Operation    string          `json:"operation"`
	URL          string          `json:"url"`
	StatusCode   int             `json:"status_code"`
	RequestBody  interface{}     `json:"request_body,omitempty"`
	ResponseBody json.RawMessage `json:"response_body,omitempty"`
}

// ResponseLog collects API exchanges for post-run diagnostics. It is flushed
// to disk on completion and on failure, so the operator always has the last
// responses the service produced.
type ResponseLog struct {
	entries []ResponseEntry
	now     func() time.Time
}

func NewResponseLog() *ResponseLog {
	return &ResponseLog{now: time.Now}
}

func (l *ResponseLog) Log(operation, url string, statusCode int, requestBody interface{}, responseBody []byte) {
	entry := ResponseEntry{
		Timestamp:   l.now(),
		Operation:   operation,
		URL:         url,
		StatusCode:  statusCode,
		RequestBody: requestBody,
	}
	if json.Valid(responseBody) {
		entry.ResponseBody = json.RawMessage(responseBody)
	} else if len(responseBody) > 0 {
		raw, _ := json.Marshal(string(responseBody))
		entry.ResponseBody = raw
	}
	l.entries = append(l.entries, entry)
}

// Entries returns the recorded exchanges in order.
func (l *ResponseLog) Entries() []ResponseEntry {
	return append([]ResponseEntry(nil), l.entries...)
}

// SaveToFile writes all recorded exchanges as indented JSON.
func (l *ResponseLog) SaveToFile(path string) error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal response log")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write response log %s", path)
	}
	return nil
}
