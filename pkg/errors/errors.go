// Package errors defines the error taxonomy used across the ingestion
// pipelines.
//
// Every failure that can abort an ingestion run is classified into a
// category and a code so that the orchestrator can persist a short
// user-facing message alongside full diagnostic detail, and so the CLI can
// map failures to meaningful exit codes. Individual cell parse failures are
// deliberately not represented here: value parsers are total functions and
// degrade to null instead of erroring.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of ingestion errors
type ErrorCategory string

const (
	CategorySheet         ErrorCategory = "sheet"
	CategoryStorage       ErrorCategory = "storage"
	CategoryBatch         ErrorCategory = "batch"
	CategoryStatus        ErrorCategory = "status"
	CategoryKpi           ErrorCategory = "kpi"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Sheet errors
	CodeMissingColumns    ErrorCode = "missing_columns"
	CodeMissingSheet      ErrorCode = "missing_sheet"
	CodeWorkbookCorrupted ErrorCode = "workbook_corrupted"
	CodeEmptySheet        ErrorCode = "empty_sheet"

	// Storage errors
	CodeDownloadFailed ErrorCode = "download_failed"
	CodeUploadFailed   ErrorCode = "upload_failed"

	// Batch errors
	CodeUpsertFailed ErrorCode = "upsert_failed"

	// Status errors
	CodeStatusWriteFailed ErrorCode = "status_write_failed"
	CodeFileNotFound      ErrorCode = "file_not_found"

	// KPI errors
	CodeRecalculateFailed ErrorCode = "recalculate_failed"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// IngestError is the base error type for all ingestion failures
type IngestError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *IngestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *IngestError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *IngestError) GetExitCode() int {
	switch e.Category {
	case CategorySheet:
		return 2
	case CategoryStorage:
		return 3
	case CategoryBatch, CategoryKpi:
		return 4
	case CategoryStatus:
		return 5
	case CategoryConfiguration:
		return 6
	default:
		return 1
	}
}

// ShortMessage returns the message truncated to max runes, suitable for the
// user-facing error_message column.
func (e *IngestError) ShortMessage(max int) string {
	msg := e.Error()
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max]) + "..."
}

// Details returns the full diagnostic blob: message, context and stack trace.
func (e *IngestError) Details() string {
	var b strings.Builder
	b.WriteString(e.Error())
	if len(e.Context) > 0 {
		b.WriteString("\n\nContext:\n")
		for key, value := range e.Context {
			fmt.Fprintf(&b, "  %s: %v\n", key, value)
		}
	}
	if e.StackTrace != nil {
		fmt.Fprintf(&b, "\nStack trace:%+v", e.StackTrace)
	}
	return b.String()
}

// WithContext adds context information to the error
func (e *IngestError) WithContext(key string, value interface{}) *IngestError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *IngestError) WithSuggestion(suggestion string) *IngestError {
	e.Suggestion = suggestion
	return e
}

// New creates a new IngestError
func New(category ErrorCategory, code ErrorCode, message string) *IngestError {
	return &IngestError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with IngestError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *IngestError {
	if err == nil {
		return nil
	}
	return &IngestError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// AsIngestError extracts an *IngestError from an error chain
func AsIngestError(err error) (*IngestError, bool) {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// Specific error constructors

// SheetFormatError signals that the uploaded file does not look like the
// expected report type. Non-retryable without a corrected file.
func SheetFormatError(code ErrorCode, fileName string, missing []string, err error) *IngestError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingColumns:
		message = fmt.Sprintf("file %s is missing required columns: %s", fileName, strings.Join(missing, ", "))
		suggestion = "export the report again from the iFood portal and verify the report type"
	case CodeMissingSheet:
		message = fmt.Sprintf("file %s does not contain the expected worksheet", fileName)
		suggestion = "conciliation exports carry the data on the second worksheet; verify the file"
	case CodeWorkbookCorrupted:
		message = fmt.Sprintf("file %s could not be opened as a spreadsheet", fileName)
		suggestion = "verify the file is a valid .xlsx export"
	case CodeEmptySheet:
		message = fmt.Sprintf("file %s contains no data rows", fileName)
		suggestion = "verify the exported period actually has transactions"
	default:
		message = fmt.Sprintf("file %s does not match the expected report format", fileName)
		suggestion = "verify the report type and export format"
	}

	var result *IngestError
	if err != nil {
		result = Wrap(err, CategorySheet, code, message)
	} else {
		result = New(CategorySheet, code, message)
	}

	result = result.WithSuggestion(suggestion).WithContext("file_name", fileName)
	if len(missing) > 0 {
		result = result.WithContext("missing_columns", missing)
	}
	return result
}

// StorageIOError signals a failure fetching or writing blob bytes.
// Transient in principle, but the pipeline does not auto-retry.
func StorageIOError(code ErrorCode, bucket, path string, err error) *IngestError {
	var message string
	switch code {
	case CodeDownloadFailed:
		message = fmt.Sprintf("failed to download %s from bucket %s", path, bucket)
	case CodeUploadFailed:
		message = fmt.Sprintf("failed to upload %s to bucket %s", path, bucket)
	default:
		message = fmt.Sprintf("storage I/O failure for %s/%s", bucket, path)
	}

	return Wrap(err, CategoryStorage, code, message).
		WithSuggestion("check storage connectivity and that the object exists").
		WithContext("bucket", bucket).
		WithContext("path", path)
}

// BatchWriteError signals a failed batch upsert. Remaining batches of the
// same file are aborted; already-committed batches stay persisted.
func BatchWriteError(batch, total int, sample string, err error) *IngestError {
	message := fmt.Sprintf("batch %d/%d failed to upsert", batch, total)
	return Wrap(err, CategoryBatch, CodeUpsertFailed, message).
		WithSuggestion("inspect the sample record for constraint or serialization problems").
		WithContext("batch", batch).
		WithContext("total_batches", total).
		WithContext("sample_record", sample)
}

// StatusUpdateError signals a failure to write the ReceivedFile status
// itself. The most severe class: the file may be stuck in 'processing'.
func StatusUpdateError(fileID, status string, err error) *IngestError {
	message := fmt.Sprintf("failed to update status of file %s to '%s'", fileID, status)
	return Wrap(err, CategoryStatus, CodeStatusWriteFailed, message).
		WithSuggestion("the audit trail is compromised; reconcile the received_files row manually").
		WithContext("file_id", fileID).
		WithContext("target_status", status)
}

// KpiError signals a failure triggering daily KPI recomputation.
func KpiError(accountID string, dates []string, err error) *IngestError {
	message := fmt.Sprintf("failed to recalculate daily KPIs for account %s", accountID)
	return Wrap(err, CategoryKpi, CodeRecalculateFailed, message).
		WithContext("account_id", accountID).
		WithContext("dates", dates)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, err error) *IngestError {
	var message string
	switch code {
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
	default:
		message = fmt.Sprintf("invalid configuration: %s", setting)
	}

	var result *IngestError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}
	return result.
		WithSuggestion("provide this setting via flag, config file or INGESTOR_* environment variable").
		WithContext("setting", setting)
}

// InternalError creates an internal error for unexpected failures
func InternalError(operation string, err error) *IngestError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	var result *IngestError
	if err != nil {
		result = Wrap(err, CategoryInternal, CodeUnexpectedError, message)
	} else {
		result = New(CategoryInternal, CodeUnexpectedError, message)
	}
	return result.WithContext("operation", operation)
}
