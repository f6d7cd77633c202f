package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LogRecord is one entry destined for the database logs table.
type LogRecord struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	FileID    string                 `json:"file_id,omitempty"`
	AccountID string                 `json:"account_id,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Source    string                 `json:"source"`
	LoggedAt  time.Time              `json:"logged_at"`
}

// LogSink persists buffered log records, typically into the logs table.
type LogSink interface {
	InsertLogs(ctx context.Context, records []LogRecord) error
}

// AuditHook mirrors warn-and-above log entries into a durable sink so
// operators can inspect ingestion runs without access to process output.
// Entries are buffered and written on Flush; a sink failure is reported on
// stderr but never fails the logging call site.
type AuditHook struct {
	sink   LogSink
	source string
	levels []logrus.Level

	mu     sync.Mutex
	buffer []LogRecord
}

// NewAuditHook creates an audit hook writing to the given sink. The source
// tag identifies the pipeline emitting the records.
func NewAuditHook(sink LogSink, source string) *AuditHook {
	return &AuditHook{
		sink:   sink,
		source: source,
		levels: []logrus.Level{
			logrus.WarnLevel,
			logrus.ErrorLevel,
			logrus.FatalLevel,
			logrus.PanicLevel,
		},
	}
}

// Levels implements logrus.Hook
func (h *AuditHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook
func (h *AuditHook) Fire(entry *logrus.Entry) error {
	record := LogRecord{
		Level:    strings.ToUpper(entry.Level.String()),
		Message:  entry.Message,
		Source:   h.source,
		LoggedAt: entry.Time,
	}

	for key, value := range entry.Data {
		switch key {
		case "file_id":
			record.FileID = fmt.Sprint(value)
		case "account_id":
			record.AccountID = fmt.Sprint(value)
		default:
			if record.Context == nil {
				record.Context = make(map[string]interface{})
			}
			record.Context[key] = value
		}
	}

	h.mu.Lock()
	h.buffer = append(h.buffer, record)
	h.mu.Unlock()
	return nil
}

// Flush writes all buffered records to the sink. Records are retained on
// failure so a later flush can retry.
func (h *AuditHook) Flush(ctx context.Context) {
	h.mu.Lock()
	pending := h.buffer
	h.buffer = nil
	h.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	if err := h.sink.InsertLogs(ctx, pending); err != nil {
		fmt.Fprintf(os.Stderr, "[CRITICAL] failed to persist %d audit log records: %v\n", len(pending), err)
		h.mu.Lock()
		h.buffer = append(pending, h.buffer...)
		h.mu.Unlock()
	}
}

// Pending returns the number of buffered records, for tests.
func (h *AuditHook) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buffer)
}
