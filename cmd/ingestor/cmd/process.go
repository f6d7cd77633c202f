package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ifood-ingestion-service/cmd/ingestor/config"
	"ifood-ingestion-service/internal/ingest"
	"ifood-ingestion-service/internal/kpi"
	"ifood-ingestion-service/internal/models"
	"ifood-ingestion-service/internal/storage"
	"ifood-ingestion-service/internal/store/postgres"
	"ifood-ingestion-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the process commands
var (
	fileID       string
	outputFormat string
	timeout      time.Duration
)

// processFinancialCmd ingests a financial (sales) report
var processFinancialCmd = &cobra.Command{
	Use:   "process-financial",
	Short: "Ingest an uploaded iFood financial report",
	Long: `Process-financial downloads an uploaded financial report from storage,
normalizes it and persists the rows idempotently into sales_data.

The file is identified by its received_files id; the account and storage
path are read from the tracking record.

Examples:
  ingestor process-financial --file-id 5f3a1c2e-...
  ingestor process-financial --file-id 5f3a1c2e-... --output-format json`,

	PreRunE: validateProcessFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(processFinancial)
	},
}

// processConciliationCmd ingests a conciliation report
var processConciliationCmd = &cobra.Command{
	Use:   "process-conciliation",
	Short: "Ingest an uploaded iFood conciliation report",
	Long: `Process-conciliation downloads an uploaded conciliation report from
storage, normalizes the second worksheet and persists the rows idempotently
into ifood_conciliation.

Examples:
  ingestor process-conciliation --file-id 9c21d4b7-...
  ingestor process-conciliation --file-id 9c21d4b7-... --output-format json`,

	PreRunE: validateProcessFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(processConciliation)
	},
}

type processKind int

const (
	processFinancial processKind = iota
	processConciliation
)

func init() {
	for _, c := range []*cobra.Command{processFinancialCmd, processConciliationCmd} {
		rootCmd.AddCommand(c)

		c.Flags().StringVar(&fileID, "file-id", "", "received file id (required)")
		c.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json")
		c.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall processing timeout")

		c.MarkFlagRequired("file-id")
	}
}

func validateProcessFlags(cmd *cobra.Command, args []string) error {
	if fileID == "" {
		return fmt.Errorf("file-id is required")
	}
	if outputFormat != "console" && outputFormat != "json" {
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
	return nil
}

func runProcess(kind processKind) error {
	settings, err := config.Load()
	if err != nil {
		os.Exit(NewCLIErrorHandler().HandleError(err))
	}

	log, err := logger.NewLogger(settings.CreateLoggerConfig(viper.GetBool("verbose")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetGlobalLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := postgres.New(ctx, settings.DatabaseURL, log)
	if err != nil {
		os.Exit(NewCLIErrorHandler().HandleError(err))
	}
	defer db.Close()

	blobs, err := storage.NewGCSStore(ctx, log)
	if err != nil {
		os.Exit(NewCLIErrorHandler().HandleError(err))
	}
	defer blobs.Close()

	// Warnings and errors of this run are mirrored into the logs table.
	hook := logger.NewAuditHook(db, "ingestor")
	logger.AddHook(log, hook)

	deps := ingest.Deps{
		Files: db,
		Rows:  db,
		Blobs: blobs,
		Kpis:  db,
		Buckets: ingest.Buckets{
			Financial:    settings.FinancialBucket,
			Conciliation: settings.ConciliationBucket,
		},
		Log:       log,
		AuditHook: hook,
	}
	if settings.LocalKpiFallback {
		deps.Calculator = kpi.NewCalculator(db, log)
	}
	orchestrator := ingest.NewOrchestrator(deps)

	var result *models.Result
	switch kind {
	case processFinancial:
		result, err = orchestrator.ProcessFinancialReport(ctx, fileID)
	case processConciliation:
		result, err = orchestrator.ProcessConciliationFile(ctx, fileID)
	}
	if err != nil {
		os.Exit(NewCLIErrorHandler().HandleError(err))
	}

	printResult(result)
	if result.Status != "success" {
		os.Exit(1)
	}
	return nil
}

func printResult(result *models.Result) {
	if outputFormat == "json" {
		data, err := json.Marshal(result)
		if err == nil {
			fmt.Println(string(data))
			return
		}
	}

	fmt.Printf("Status:  %s\n", result.Status)
	fmt.Printf("File:    %s\n", result.FileID)
	fmt.Printf("Message: %s\n", result.Message)
}
