package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"ifood-ingestion-service/internal/models"
	"ifood-ingestion-service/internal/store"
	ingerrors "ifood-ingestion-service/pkg/errors"
	"ifood-ingestion-service/pkg/logger"
)

// Record aliases the store record type; pipelines build these directly.
type Record = store.Record

// BatchPlan is a pipeline's prepared output: deduplicated records plus the
// batching parameters and the dates whose KPIs the write invalidates.
type BatchPlan struct {
	Table          string
	ConflictColumn string
	BatchSize      int
	Records        []Record
	Deduplicated   int
	AffectedDates  []string
	SourceRows     int
}

// Writer persists batch plans through the row store.
type Writer struct {
	rows store.RowStore
	log  logger.Logger
}

// NewWriter creates a Writer.
func NewWriter(rows store.RowStore, log logger.Logger) *Writer {
	return &Writer{
		rows: rows,
		log:  log.WithComponent("writer"),
	}
}

// Write upserts the plan's records in sequential batches. Batches already
// committed stay committed; the first failing batch aborts the remainder and
// the returned report counts only what was persisted.
func (w *Writer) Write(ctx context.Context, plan *BatchPlan) (*models.WriteReport, error) {
	report := &models.WriteReport{
		Deduplicated:  plan.Deduplicated,
		AffectedDates: plan.AffectedDates,
	}
	if len(plan.Records) == 0 {
		return report, nil
	}

	totalBatches := (len(plan.Records) + plan.BatchSize - 1) / plan.BatchSize
	for start := 0; start < len(plan.Records); start += plan.BatchSize {
		end := start + plan.BatchSize
		if end > len(plan.Records) {
			end = len(plan.Records)
		}
		batch := plan.Records[start:end]
		for _, record := range batch {
			sanitizeRecord(record)
		}

		batchNum := start/plan.BatchSize + 1
		w.log.WithFields(logger.Fields{
			"table": plan.Table,
			"batch": batchNum,
			"total": totalBatches,
		}).Debugf("upserting batch of %d records", len(batch))

		if err := w.rows.UpsertBatch(ctx, plan.Table, batch, plan.ConflictColumn); err != nil {
			return report, ingerrors.BatchWriteError(batchNum, totalBatches, sampleRecord(batch), err)
		}

		report.RowsWritten += len(batch)
		report.Batches++
	}

	w.log.WithFields(logger.Fields{
		"table":   plan.Table,
		"rows":    report.RowsWritten,
		"batches": report.Batches,
	}).Info("all batches persisted")
	return report, nil
}

// sanitizeRecord replaces non-finite floats with null in place. Parsers
// never emit them, but records also carry values assembled elsewhere and a
// NaN would poison the whole batch at serialization time.
func sanitizeRecord(record Record) {
	for key, value := range record {
		switch v := value.(type) {
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				record[key] = nil
			}
		case *float64:
			if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
				record[key] = nil
			}
		}
	}
}

// sampleRecord renders the first record of a failed batch for diagnostics,
// truncated so the error context stays storable.
func sampleRecord(batch []Record) string {
	if len(batch) == 0 {
		return ""
	}
	sample := rawJSON(batch[0])
	const maxLen = 2000
	if len(sample) > maxLen {
		return sample[:maxLen] + "..."
	}
	return sample
}

// rawJSON serializes a record, falling back to a lossy string rendering if
// any value fails to encode. The audit copy must never abort a write.
func rawJSON(record Record) string {
	data, err := json.Marshal(record)
	if err == nil {
		return string(data)
	}

	lossy := make(map[string]string, len(record))
	for key, value := range record {
		lossy[key] = strings.ToValidUTF8(fmt.Sprint(value), "")
	}
	data, err = json.Marshal(lossy)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}
