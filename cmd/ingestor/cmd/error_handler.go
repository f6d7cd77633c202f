package cmd

import (
	"fmt"
	"os"
	"strings"

	"ifood-ingestion-service/pkg/errors"
	"ifood-ingestion-service/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError handles errors and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if ingestErr, ok := errors.AsIngestError(err); ok {
		return h.handleIngestError(ingestErr)
	}
	return h.handleGenericError(err)
}

// handleIngestError handles IngestError with detailed context
func (h *CLIErrorHandler) handleIngestError(err *errors.IngestError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-IngestError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if h.verbose {
		fmt.Fprintf(os.Stderr, "\nFor more details, check the logs table or run with --verbose\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategorySheet:
		return `Sheet error help:
• Verify the file is the expected iFood report type (financial vs conciliation)
• Conciliation exports carry the data on the second worksheet
• Re-export the report from the iFood portal if columns are missing
• Ensure the file is a valid .xlsx workbook`

	case errors.CategoryStorage:
		return `Storage error help:
• Check connectivity to the storage bucket
• Verify the object exists under {account_id}/{file_name}
• Confirm Application Default Credentials are configured`

	case errors.CategoryBatch:
		return `Batch error help:
• Inspect the sample record in the error context for constraint problems
• Batches committed before the failure remain persisted
• Re-running the command after a fix is safe: writes are idempotent`

	case errors.CategoryStatus:
		return `Status error help:
• The received_files row could not be read or updated
• The file may be stuck in 'processing'; reconcile the row manually
• Verify database connectivity and the file id`

	case errors.CategoryKpi:
		return `KPI error help:
• The transaction rows were persisted; only the recomputation failed
• Verify the recalculate_daily_kpis_for_dates function exists
• KPIs can be recomputed later for the affected dates`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Settings can also come from INGESTOR_* environment variables
• Use 'ingestor --help' to see all available options`

	default:
		return `For more help:
• Use 'ingestor --help' for general help
• Use 'ingestor process-financial --help' for command-specific help
• Check the logs table for the full diagnostic trail`
	}
}

// FormatMissingColumns renders a missing-column list for display
func FormatMissingColumns(missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	return fmt.Sprintf("Missing columns: %s", strings.Join(missing, ", "))
}
