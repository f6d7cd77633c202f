// Package ingest implements the two spreadsheet ingestion pipelines and the
// orchestration around them: download, normalize, key, write, recompute and
// report status.
package ingest

import (
	"context"
	"fmt"
	"time"

	"ifood-ingestion-service/internal/kpi"
	"ifood-ingestion-service/internal/models"
	"ifood-ingestion-service/internal/storage"
	"ifood-ingestion-service/internal/store"
	ingerrors "ifood-ingestion-service/pkg/errors"
	"ifood-ingestion-service/pkg/logger"
)

// Limits for the error columns on received_files.
const (
	maxErrorMessageLen = 500
)

// Orchestrator runs ingestion end to end for one file at a time. It is the
// only writer of ReceivedFile status, which is what keeps the lifecycle
// invariant (processed_at set exactly on success, error fields exactly on
// failure) enforceable in one place.
type Orchestrator struct {
	files   store.FileStore
	blobs   storage.BlobStore
	buckets Buckets
	writer  *Writer
	recalc  *kpi.Recalculator
	calc    *kpi.Calculator
	log     logger.Logger
	hook    *logger.AuditHook
	now     func() time.Time
}

// Buckets names the storage buckets per pipeline.
type Buckets struct {
	Financial    string
	Conciliation string
}

// Deps carries the orchestrator's collaborators. Hook and Calculator are
// optional; unset bucket names fall back to the defaults.
type Deps struct {
	Files      store.FileStore
	Rows       store.RowStore
	Blobs      storage.BlobStore
	Kpis       store.KpiStore
	Buckets    Buckets
	Log        logger.Logger
	AuditHook  *logger.AuditHook
	Calculator *kpi.Calculator
}

// NewOrchestrator wires an Orchestrator from its dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	buckets := deps.Buckets
	if buckets.Financial == "" {
		buckets.Financial = storage.BucketFinancial
	}
	if buckets.Conciliation == "" {
		buckets.Conciliation = storage.BucketConciliation
	}

	return &Orchestrator{
		files:   deps.Files,
		blobs:   deps.Blobs,
		buckets: buckets,
		writer:  NewWriter(deps.Rows, deps.Log),
		recalc:  kpi.NewRecalculator(deps.Kpis, deps.Log),
		calc:    deps.Calculator,
		log:     deps.Log.WithComponent("ingest"),
		hook:    deps.AuditHook,
		now:     time.Now,
	}
}

// ProcessFinancialReport ingests a financial report by file id.
//
// The returned error is non-nil only when the file's status row itself could
// not be read or written; every other failure is fully reported through the
// status transition and the Result.
func (o *Orchestrator) ProcessFinancialReport(ctx context.Context, fileID string) (*models.Result, error) {
	return o.run(ctx, fileID, o.buckets.Financial, func(ctx context.Context, file *models.ReceivedFile, data []byte, log logger.Logger) (*models.WriteReport, error) {
		prep, err := prepareFinancial(file, data, log)
		if err != nil {
			return nil, err
		}

		report, err := o.writer.Write(ctx, &prep.Plan)
		if err != nil {
			return report, err
		}

		o.recomputeKpis(ctx, file, report.AffectedDates, prep.Rows, log)
		return report, nil
	})
}

// ProcessConciliationFile ingests a conciliation report by file id. Same
// error contract as ProcessFinancialReport.
func (o *Orchestrator) ProcessConciliationFile(ctx context.Context, fileID string) (*models.Result, error) {
	return o.run(ctx, fileID, o.buckets.Conciliation, func(ctx context.Context, file *models.ReceivedFile, data []byte, log logger.Logger) (*models.WriteReport, error) {
		plan, err := prepareConciliation(file, data, log)
		if err != nil {
			return nil, err
		}

		report, err := o.writer.Write(ctx, plan)
		if err != nil {
			return report, err
		}

		o.recomputeKpis(ctx, file, report.AffectedDates, nil, log)
		return report, nil
	})
}

type pipelineFunc func(ctx context.Context, file *models.ReceivedFile, data []byte, log logger.Logger) (*models.WriteReport, error)

func (o *Orchestrator) run(ctx context.Context, fileID, bucket string, pipeline pipelineFunc) (*models.Result, error) {
	defer o.flushAudit(ctx)

	file, err := o.files.GetReceivedFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	log := o.log.WithFields(logger.Fields{
		"file_id":    file.ID,
		"account_id": file.AccountID,
	})
	log.Infof("starting ingestion of %s", file.OriginalFileName)

	// Entering processing clears leftovers from any previous run of the
	// same file.
	if err := o.files.UpdateStatus(ctx, store.StatusUpdate{
		FileID: file.ID,
		Status: models.StatusProcessing,
	}); err != nil {
		return nil, err
	}

	path := file.StoragePath
	if path == "" {
		path = storage.ObjectPath(file.AccountID, file.OriginalFileName)
	}

	data, err := o.blobs.Download(ctx, bucket, path)
	if err != nil {
		return o.markError(ctx, file, err, log)
	}

	report, err := pipeline(ctx, file, data, log)
	if err != nil {
		return o.markError(ctx, file, err, log)
	}

	processedAt := o.now().UTC()
	if err := o.files.UpdateStatus(ctx, store.StatusUpdate{
		FileID:      file.ID,
		Status:      models.StatusProcessed,
		ProcessedAt: &processedAt,
	}); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("%d rows persisted in %d batches", report.RowsWritten, report.Batches)
	if report.Deduplicated > 0 {
		message += fmt.Sprintf(" (%d duplicates removed)", report.Deduplicated)
	}
	log.Info("ingestion finished: " + message)

	return &models.Result{
		Status:  "success",
		Message: message,
		FileID:  file.ID,
	}, nil
}

// markError transitions the file to its terminal error state. The short
// message goes in error_message for display; the full context and stack go
// in error_details.
func (o *Orchestrator) markError(ctx context.Context, file *models.ReceivedFile, cause error, log logger.Logger) (*models.Result, error) {
	log.WithError(cause).Error("ingestion failed")

	shortMsg := cause.Error()
	details := cause.Error()
	if ie, ok := ingerrors.AsIngestError(cause); ok {
		shortMsg = ie.ShortMessage(maxErrorMessageLen)
		details = ie.Details()
		if ie.Suggestion != "" {
			details += "\n\nSuggestion: " + ie.Suggestion
		}
	}

	if err := o.files.UpdateStatus(ctx, store.StatusUpdate{
		FileID:       file.ID,
		Status:       models.StatusError,
		ErrorMessage: &shortMsg,
		ErrorDetails: &details,
	}); err != nil {
		return nil, err
	}

	return &models.Result{
		Status:  "error",
		Message: shortMsg,
		FileID:  file.ID,
	}, nil
}

// recomputeKpis triggers the database-side recalculation for the affected
// dates. The rows are already committed at this point, so a recompute
// failure degrades to a warning (with a local fallback for financial rows)
// instead of failing the run.
func (o *Orchestrator) recomputeKpis(ctx context.Context, file *models.ReceivedFile, dates []string, rows []models.FinancialRow, log logger.Logger) {
	if len(dates) == 0 {
		return
	}

	err := o.recalc.Trigger(ctx, file.AccountID, dates)
	if err == nil {
		return
	}
	log.WithError(err).Warn("daily KPI recalculation failed")

	if o.calc == nil || len(rows) == 0 {
		return
	}
	if err := o.calc.Recompute(ctx, file.AccountID, rows); err != nil {
		log.WithError(err).Warn("local KPI fallback failed as well")
	}
}

func (o *Orchestrator) flushAudit(ctx context.Context) {
	if o.hook != nil {
		o.hook.Flush(ctx)
	}
}
