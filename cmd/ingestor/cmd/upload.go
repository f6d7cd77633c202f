package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ifood-ingestion-service/cmd/ingestor/config"
	"ifood-ingestion-service/internal/models"
	"ifood-ingestion-service/internal/storage"
	"ifood-ingestion-service/internal/store/postgres"
	"ifood-ingestion-service/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Flags for the upload command
var (
	uploadAccountID  string
	uploadReportType string
)

// uploadCmd registers a local spreadsheet for later processing
var uploadCmd = &cobra.Command{
	Use:   "upload <file.xlsx>",
	Short: "Upload a report spreadsheet and register it for processing",
	Long: `Upload stores a local spreadsheet in the report bucket under
{account_id}/{file_name}, creates its received_files tracking record and
prints the file id to pass to process-financial or process-conciliation.

Examples:
  ingestor upload --account-id acct-1 --type financial relatorio.xlsx
  ingestor upload --account-id acct-1 --type conciliation conciliacao.xlsx`,

	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVar(&uploadAccountID, "account-id", "", "tenant account id (required)")
	uploadCmd.Flags().StringVar(&uploadReportType, "type", "", "report type: financial, conciliation (required)")

	uploadCmd.MarkFlagRequired("account-id")
	uploadCmd.MarkFlagRequired("type")
}

func runUpload(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		os.Exit(NewCLIErrorHandler().HandleError(err))
	}

	var bucket string
	switch uploadReportType {
	case "financial":
		bucket = settings.FinancialBucket
	case "conciliation":
		bucket = settings.ConciliationBucket
	default:
		return fmt.Errorf("unsupported report type: %s", uploadReportType)
	}

	log, err := logger.NewLogger(settings.CreateLoggerConfig(viper.GetBool("verbose")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetGlobalLogger(log)

	filePath := args[0]
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
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

	fileName := filepath.Base(filePath)
	file := &models.ReceivedFile{
		ID:               uuid.NewString(),
		AccountID:        uploadAccountID,
		OriginalFileName: fileName,
		StoragePath:      storage.ObjectPath(uploadAccountID, fileName),
		Status:           models.StatusReceived,
	}

	if err := blobs.Upload(ctx, bucket, file.StoragePath, data, xlsxContentType); err != nil {
		os.Exit(NewCLIErrorHandler().HandleError(err))
	}
	if err := db.CreateReceivedFile(ctx, file); err != nil {
		os.Exit(NewCLIErrorHandler().HandleError(err))
	}

	fmt.Printf("Uploaded %s (%d bytes)\n", file.StoragePath, len(data))
	fmt.Printf("File ID: %s\n", file.ID)
	return nil
}
